package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"evalo/internal/history"
	"evalo/internal/results"
)

type historyRecordOutput struct {
	ID            int64           `json:"id"`
	SubmissionID  string          `json:"submission_id"`
	Email         string          `json:"email,omitempty"`
	Subject       string          `json:"subject,omitempty"`
	PaperID       string          `json:"paper_id,omitempty"`
	StudentFile   string          `json:"student_pdf"`
	AnswerKeyFile string          `json:"answer_key_pdf"`
	Status        history.Status  `json:"status"`
	ErrorKind     string          `json:"error_kind,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	View          *results.View   `json:"view,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
}

func toHistoryOutput(rec *history.Record, withResult bool) historyRecordOutput {
	out := historyRecordOutput{
		ID:            rec.ID,
		SubmissionID:  rec.SubmissionID,
		Email:         rec.Email,
		Subject:       rec.Subject,
		PaperID:       rec.PaperID,
		StudentFile:   rec.StudentFile,
		AnswerKeyFile: rec.AnswerKeyFile,
		Status:        rec.Status,
		ErrorKind:     string(rec.ErrorKind),
		Error:         rec.ErrorMessage,
		CreatedAt:     rec.CreatedAt,
	}
	if !rec.FinishedAt.IsZero() {
		finished := rec.FinishedAt
		out.FinishedAt = &finished
	}
	if rec.HasResult() {
		view := results.Render(*rec.Result)
		out.View = &view
		if withResult {
			if data, err := json.Marshal(rec.Result); err == nil {
				out.Result = data
			}
		}
	}
	return out
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past gradings",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryRemoveCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFlag string
	var mine bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent gradings",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := history.ListOptions{Limit: limit}
			if statusFlag != "" {
				status, ok := history.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q (use completed or failed)", statusFlag)
				}
				opts.Status = status
			}
			if mine {
				principal, err := ctx.principal(cmd)
				if err != nil {
					return err
				}
				if principal == nil {
					return errors.New("--mine needs a signed-in user; run `evalo login`")
				}
				opts.Email = principal.Email
			}

			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				items := make([]historyRecordOutput, 0, len(records))
				for _, rec := range records {
					items = append(items, toHistoryOutput(rec, false))
				}
				return writeJSON(cmd, items)
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No gradings recorded yet")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					shortID(rec.SubmissionID),
					formatWhen(rec.CreatedAt),
					rec.StudentFile,
					valueOrDash(rec.Subject),
					scoreCell(rec),
					statusCell(rec.Status, colorize),
				})
			}
			fmt.Fprintln(out, renderTable(tableSpec{
				headers:   []string{"ID", "Submission", "When", "Student PDF", "Subject", "Score", "Status"},
				rows:      rows,
				aligns:    []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				maxWidths: []int{0, 0, 0, 32, 20, 0, 0},
			}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of gradings to list")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Only list gradings with this status (completed or failed)")
	cmd.Flags().BoolVar(&mine, "mine", false, "Only list gradings made by the signed-in user")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "show HISTORY_ID|SUBMISSION_ID",
		Short: "Show one grading with its score breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := lookupRecord(cmd, ctx, args)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, toHistoryOutput(rec, true))
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(fmt.Sprintf("Grading #%d", rec.ID), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Submission", statusInfo, rec.SubmissionID, colorize))
			fmt.Fprintln(out, renderStatusLine("Graded", statusInfo, rec.CreatedAt.Local().Format("2006-01-02 15:04:05")+" ("+formatWhen(rec.CreatedAt)+")", colorize))
			fmt.Fprintln(out, renderStatusLine("Graded by", statusInfo, valueOrDash(rec.Email), colorize))
			fmt.Fprintln(out, renderStatusLine("Student PDF", statusInfo, rec.StudentFile, colorize))
			fmt.Fprintln(out, renderStatusLine("Answer key PDF", statusInfo, rec.AnswerKeyFile, colorize))
			if rec.Subject != "" {
				fmt.Fprintln(out, renderStatusLine("Subject", statusInfo, rec.Subject, colorize))
			}
			if rec.PaperID != "" {
				fmt.Fprintln(out, renderStatusLine("Paper", statusInfo, rec.PaperID, colorize))
			}
			if rec.Status == history.StatusFailed {
				fmt.Fprintln(out, renderStatusLine("Status", statusError, rec.ErrorMessage, colorize))
				return nil
			}
			fmt.Fprintln(out)
			if rec.HasResult() {
				renderResults(out, *rec.Result, details, colorize)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&details, "details", false, "Print full feedback and justification for every question")
	return cmd
}

func newHistoryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove HISTORY_ID",
		Short: "Delete a grading from the local history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid history id %q", args[0])
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("grading #%d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed grading #%d\n", id)
			return nil
		},
	}
}

func scoreCell(rec *history.Record) string {
	if !rec.HasResult() {
		return "-"
	}
	view := results.Render(*rec.Result)
	return fmt.Sprintf("%s (%d%%)", view.TotalScore, view.RoundedScore)
}

func statusCell(status history.Status, colorize bool) string {
	switch status {
	case history.StatusCompleted:
		return paint(string(status), ansiGreen, colorize)
	case history.StatusFailed:
		return paint(string(status), ansiRed, colorize)
	default:
		return string(status)
	}
}
