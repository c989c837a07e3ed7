package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"evalo/internal/config"
	"evalo/internal/grading"
	"evalo/internal/history"
	"evalo/internal/logging"
	"evalo/internal/notifications"
	"evalo/internal/results"
	"evalo/internal/services"
)

type reportOutput struct {
	Path         string `json:"path"`
	SubmissionID string `json:"submission_id,omitempty"`
	HistoryID    int64  `json:"history_id,omitempty"`
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var output string
	var fromJSON string

	cmd := &cobra.Command{
		Use:   "report [HISTORY_ID|SUBMISSION_ID]",
		Short: "Download the PDF report for a graded submission",
		Long: `Download the PDF report for a graded submission.

Without an argument the most recent successful grading in the history is used.
--from-json generates the report from a result file instead (the "result"
object printed by 'evalo grade --json', or the raw service response).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}
			if _, err := ctx.principal(cmd); err != nil {
				return err
			}

			var (
				result grading.Result
				rec    *history.Record
			)
			switch {
			case strings.TrimSpace(fromJSON) != "":
				if len(args) > 0 {
					return errors.New("pass either a history reference or --from-json, not both")
				}
				result, err = readResultFile(fromJSON)
				if err != nil {
					return err
				}
			default:
				rec, err = lookupRecord(cmd, ctx, args)
				if err != nil {
					return err
				}
				if !rec.HasResult() {
					return fmt.Errorf("grading #%d failed and has no result to report on", rec.ID)
				}
				result = *rec.Result
			}

			dest, err := resolveReportDest(cfg, output)
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			out := reportOutput{}
			if rec != nil {
				runCtx = services.WithSubmissionID(runCtx, rec.SubmissionID)
				out.SubmissionID = rec.SubmissionID
				out.HistoryID = rec.ID
			}

			client := grading.NewFromConfig(cfg, logger)
			downloader := results.NewDownloader(client, cfg.Grading.ReportFilename, logger)
			path, err := downloader.Download(runCtx, result, dest)
			if err != nil {
				return fmt.Errorf("%s: %w", results.DownloadFailedNotice, err)
			}
			out.Path = path

			if err := notifications.NewService(cfg).Publish(runCtx, notifications.EventReportSaved, notifications.Payload{"path": path}); err != nil {
				logging.WarnWithContext(logger, "notification failed", "notification_failed", logging.Error(err))
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (default paths.report_dir)")
	cmd.Flags().StringVar(&fromJSON, "from-json", "", "Generate the report from a grading result JSON file")
	return cmd
}

func lookupRecord(cmd *cobra.Command, ctx *commandContext, args []string) (*history.Record, error) {
	store, err := ctx.openHistory()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if len(args) == 0 {
		rec, err := store.Latest(cmd.Context())
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, errors.New("no successful gradings in history yet; run `evalo grade` first")
		}
		return rec, nil
	}
	rec, err := store.Find(cmd.Context(), args[0])
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no grading matches %q (see `evalo history list`)", args[0])
	}
	return rec, nil
}

// resolveReportDest returns value, or the configured report directory
// (created on demand) when value is empty.
func resolveReportDest(cfg *config.Config, value string) (string, error) {
	dest := strings.TrimSpace(value)
	if dest != "" {
		return dest, nil
	}
	if err := os.MkdirAll(cfg.Paths.ReportDir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	return cfg.Paths.ReportDir, nil
}

// readResultFile accepts either a bare result or an object wrapping it under
// "result".
func readResultFile(path string) (grading.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return grading.Result{}, fmt.Errorf("read result file: %w", err)
	}
	if result, err := grading.DecodeResult(data); err == nil {
		return result, nil
	}
	var wrapped struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil || len(wrapped.Result) == 0 {
		return grading.Result{}, services.Wrap(services.ErrValidation, "report", "read result", path+" does not contain a grading result", nil)
	}
	return grading.DecodeResult(wrapped.Result)
}
