package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"evalo/internal/config"
	"evalo/internal/grading"
	"evalo/internal/history"
	"evalo/internal/intake"
	"evalo/internal/logging"
	"evalo/internal/notifications"
	"evalo/internal/results"
	"evalo/internal/services"
	"evalo/internal/upload"
)

type gradeOptions struct {
	subject    string
	paperID    string
	report     string
	saveReport bool
	details    bool
	noHistory  bool
	noNotify   bool
}

type gradeOutput struct {
	SubmissionID string          `json:"submission_id"`
	Student      intake.Summary  `json:"student_pdf"`
	AnswerKey    intake.Summary  `json:"answer_key_pdf"`
	Subject      string          `json:"subject,omitempty"`
	PaperID      string          `json:"paper_id,omitempty"`
	Result       grading.Result  `json:"result"`
	View         results.View    `json:"view"`
	ReportPath   string          `json:"report_path,omitempty"`
	ReportError  string          `json:"report_error,omitempty"`
	HistoryID    int64           `json:"history_id,omitempty"`
	Elapsed      string          `json:"elapsed"`
	GradedBy     principalOutput `json:"graded_by"`
}

type gradeFailureOutput struct {
	SubmissionID string        `json:"submission_id,omitempty"`
	Error        string        `json:"error"`
	ErrorKind    services.Kind `json:"error_kind"`
	Retryable    bool          `json:"retryable"`
	HistoryID    int64         `json:"history_id,omitempty"`
}

func newGradeCommand(ctx *commandContext) *cobra.Command {
	var opts gradeOptions

	cmd := &cobra.Command{
		Use:   "grade STUDENT_PDF ANSWER_KEY_PDF",
		Short: "Upload a student answer sheet and answer key for grading",
		Long: `Upload the student's answers and the answer key to the grading service,
show progress while it works, and print the score breakdown.

Use --report PATH to also download the PDF report to a file or directory, or
--save-report to write it to paths.report_dir.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrade(cmd, ctx, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.subject, "subject", "", "Subject label stored with the grading")
	cmd.Flags().StringVar(&opts.paperID, "paper-id", "", "Paper identifier stored with the grading")
	cmd.Flags().StringVar(&opts.report, "report", "", "Download the PDF report to this file or directory")
	cmd.Flags().BoolVar(&opts.saveReport, "save-report", false, "Download the PDF report into paths.report_dir")
	cmd.MarkFlagsMutuallyExclusive("report", "save-report")
	cmd.Flags().BoolVar(&opts.details, "details", false, "Print full feedback and justification for every question")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this grading in the local history")
	cmd.Flags().BoolVar(&opts.noNotify, "no-notify", false, "Skip push notifications for this grading")
	return cmd
}

func runGrade(cmd *cobra.Command, ctx *commandContext, args []string, opts gradeOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.loggerFor(cmd)
	if err != nil {
		return err
	}
	principal, err := ctx.principal(cmd)
	if err != nil {
		return err
	}

	client := grading.NewFromConfig(cfg, logger)
	workflow, err := upload.New(client, upload.WithLogger(logger))
	if err != nil {
		return err
	}

	var student, answerKey intake.Summary
	if len(args) > 0 {
		if student, err = intake.Inspect(args[0], logger); err != nil {
			return err
		}
		if err := workflow.SelectStudentAnswer(student.Document()); err != nil {
			return err
		}
	}
	if len(args) > 1 {
		if answerKey, err = intake.Inspect(args[1], logger); err != nil {
			return err
		}
		if err := workflow.SelectAnswerKey(answerKey.Document()); err != nil {
			return err
		}
	}

	stderr := cmd.ErrOrStderr()
	if !ctx.jsonOutput() {
		printSelection(stderr, "Student answers", student)
		printSelection(stderr, "Answer key", answerKey)
	}

	display := newProgressDisplay(stderr, isTerminal(stderr), shouldColorize(stderr))
	unsubscribe := workflow.Subscribe(display.Update)
	defer unsubscribe()
	defer display.Close()

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}
	done, err := workflow.Submit(runCtx)
	if err != nil {
		return err
	}
	<-done
	if err := runCtx.Err(); err != nil {
		return err
	}

	snap := workflow.Snapshot()
	labels := history.Labels{Subject: opts.subject, PaperID: opts.paperID}
	if principal != nil {
		labels.Email = principal.Email
	}

	var historyID int64
	if cfg.History.Enabled && !opts.noHistory {
		historyID = recordGrading(runCtx, ctx, logger, snap, labels)
	}
	if !opts.noNotify {
		notifyGrading(runCtx, cfg, logger, snap, opts.subject)
	}

	if snap.Phase != upload.PhaseSucceeded || snap.Result == nil {
		return reportGradeFailure(cmd, ctx, snap, historyID)
	}

	output := gradeOutput{
		SubmissionID: snap.SubmissionID,
		Student:      student,
		AnswerKey:    answerKey,
		Subject:      strings.TrimSpace(opts.subject),
		PaperID:      strings.TrimSpace(opts.paperID),
		Result:       *snap.Result,
		View:         results.Render(*snap.Result),
		HistoryID:    historyID,
		Elapsed:      snap.FinishedAt.Sub(snap.StartedAt).Round(time.Millisecond).String(),
		GradedBy:     toPrincipalOutput(principal),
	}

	var reportErr error
	if opts.report != "" || opts.saveReport {
		dest, err := resolveReportDest(cfg, opts.report)
		if err != nil {
			return err
		}
		downloader := results.NewDownloader(client, cfg.Grading.ReportFilename, logger)
		path, err := downloader.Download(services.WithSubmissionID(runCtx, snap.SubmissionID), *snap.Result, dest)
		if err != nil {
			reportErr = err
			output.ReportError = results.DownloadFailedNotice
		} else {
			output.ReportPath = path
		}
	}

	if ctx.jsonOutput() {
		if err := writeJSON(cmd, output); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		colorize := shouldColorize(out)
		if principal != nil {
			fmt.Fprintf(out, "Graded for %s\n", principal.Label())
		}
		renderResults(out, *snap.Result, opts.details, colorize)
		if output.ReportPath != "" {
			fmt.Fprintln(out, renderStatusLine("Report", statusOK, output.ReportPath, colorize))
		}
		if historyID > 0 {
			fmt.Fprintln(out, renderStatusLine("History", statusInfo, fmt.Sprintf("saved as #%d", historyID), colorize))
		}
	}

	if reportErr != nil {
		return fmt.Errorf("%s: %w", results.DownloadFailedNotice, reportErr)
	}
	return nil
}

func printSelection(out io.Writer, label string, summary intake.Summary) {
	if summary.Path == "" {
		fmt.Fprintln(out, renderStatusLine(label, statusWarn, "not selected", false))
		return
	}
	detail := fmt.Sprintf("%s (%s, %s pages)", summary.Name, summary.HumanSize(), summary.PageLabel())
	fmt.Fprintln(out, renderStatusLine(label, statusInfo, detail, false))
}

func reportGradeFailure(cmd *cobra.Command, ctx *commandContext, snap upload.Snapshot, historyID int64) error {
	message := snap.Error
	if message == "" {
		message = "Failed to process PDFs"
	}
	retryable := snap.ErrorKind.Retryable()
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, gradeFailureOutput{
			SubmissionID: snap.SubmissionID,
			Error:        message,
			ErrorKind:    snap.ErrorKind,
			Retryable:    retryable,
			HistoryID:    historyID,
		}); err != nil {
			return err
		}
	} else if retryable {
		fmt.Fprintln(cmd.ErrOrStderr(), "Run the same command again to retry.")
	}
	return errors.New(message)
}

func recordGrading(ctx context.Context, cmdCtx *commandContext, logger *slog.Logger, snap upload.Snapshot, labels history.Labels) int64 {
	rec, ok := history.FromSnapshot(snap, labels)
	if !ok {
		return 0
	}
	store, err := cmdCtx.openHistory()
	if err != nil {
		logging.WarnWithContext(logger, "grading history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
		)
		return 0
	}
	defer store.Close()
	saved, err := store.Insert(ctx, rec)
	if err != nil {
		logging.WarnWithContext(logger, "failed to record grading", "history_insert_failed",
			logging.String(logging.FieldSubmissionID, snap.SubmissionID),
			logging.Error(err),
		)
		return 0
	}
	return saved.ID
}

func notifyGrading(ctx context.Context, cfg *config.Config, logger *slog.Logger, snap upload.Snapshot, subject string) {
	svc := notifications.NewService(cfg)
	var (
		event   notifications.Event
		payload notifications.Payload
	)
	switch snap.Phase {
	case upload.PhaseSucceeded:
		if snap.Result == nil {
			return
		}
		view := results.Render(*snap.Result)
		event = notifications.EventGradingCompleted
		payload = notifications.Payload{
			"student":    filepath.Base(snap.StudentAnswer),
			"subject":    subject,
			"score":      view.TotalScore,
			"percentage": view.Percentage,
			"band":       string(view.Band),
		}
	case upload.PhaseFailed:
		event = notifications.EventGradingFailed
		payload = notifications.Payload{
			"student": filepath.Base(snap.StudentAnswer),
			"error":   snap.Error,
		}
	default:
		return
	}
	if err := svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String(logging.FieldSubmissionID, snap.SubmissionID),
			logging.Error(err),
		)
	}
}
