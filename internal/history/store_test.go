package history_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"evalo/internal/grading"
	"evalo/internal/history"
	"evalo/internal/services"
	"evalo/internal/testsupport"
	"evalo/internal/upload"
)

func TestInsertAndGetRoundTripsResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	rec := testsupport.AddGrading(t, store, "3f0c2d4e-0000-4000-8000-000000000001", testsupport.SampleResult())
	if rec.ID == 0 {
		t.Fatal("expected record ID to be assigned")
	}
	if !rec.HasResult() {
		t.Fatalf("expected stored result, got %#v", rec)
	}
	if rec.Result.Questions[1].Feedback != "Missing the final comparison step." {
		t.Fatalf("unexpected question feedback %q", rec.Result.Questions[1].Feedback)
	}

	bySubmission, err := store.GetBySubmissionID(context.Background(), rec.SubmissionID)
	if err != nil {
		t.Fatalf("GetBySubmissionID failed: %v", err)
	}
	if bySubmission == nil || bySubmission.ID != rec.ID {
		t.Fatalf("expected to find record, got %#v", bySubmission)
	}
	if bySubmission.CreatedAt.IsZero() || bySubmission.FinishedAt.Before(bySubmission.CreatedAt) {
		t.Fatalf("unexpected timestamps %s / %s", bySubmission.CreatedAt, bySubmission.FinishedAt)
	}

	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		t.Fatalf("expected database at %s: %v", cfg.HistoryPath(), err)
	}
}

func TestInsertRejectsIncompleteRecords(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.Insert(ctx, history.Record{Status: history.StatusCompleted}); err == nil {
		t.Fatal("expected error when submission id missing")
	}
	if _, err := store.Insert(ctx, history.Record{SubmissionID: "x", Status: "uploading"}); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestListFiltersAndOrdersNewestFirst(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.AddGrading(t, store, "aaaa-1", testsupport.SampleResult())
	failed, err := store.Insert(ctx, history.Record{
		SubmissionID:  "bbbb-2",
		Email:         "other@example.com",
		StudentFile:   "student.pdf",
		AnswerKeyFile: "key.pdf",
		Status:        history.StatusFailed,
		ErrorKind:     services.KindTransport,
		ErrorMessage:  "Failed to process PDFs: Server responded with status: 502",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	third := testsupport.AddGrading(t, store, "cccc-3", testsupport.SampleResult())

	all, err := store.List(ctx, history.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != third.ID || all[2].ID != first.ID {
		t.Fatalf("expected newest first, got %d records", len(all))
	}

	onlyFailed, err := store.List(ctx, history.ListOptions{Status: history.StatusFailed})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(onlyFailed) != 1 || onlyFailed[0].ID != failed.ID || onlyFailed[0].ErrorKind != services.KindTransport {
		t.Fatalf("unexpected failed records %#v", onlyFailed)
	}
	if onlyFailed[0].Result != nil {
		t.Fatal("failed record should not carry a result")
	}

	byEmail, err := store.List(ctx, history.ListOptions{Email: "teacher@example.com", Limit: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byEmail) != 1 || byEmail[0].ID != third.ID {
		t.Fatalf("expected limit and email filter to apply, got %#v", byEmail)
	}
}

func TestFindResolvesIDsAndPrefixes(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.AddGrading(t, store, "deadbeef-1111", testsupport.SampleResult())
	testsupport.AddGrading(t, store, "deadbeef-2222", testsupport.SampleResult())
	c := testsupport.AddGrading(t, store, "cafe-3333", testsupport.SampleResult())

	byID, err := store.Find(ctx, "1")
	if err != nil || byID == nil || byID.ID != a.ID {
		t.Fatalf("Find by id: %#v, %v", byID, err)
	}
	byPrefix, err := store.Find(ctx, "cafe")
	if err != nil || byPrefix == nil || byPrefix.ID != c.ID {
		t.Fatalf("Find by prefix: %#v, %v", byPrefix, err)
	}
	if _, err := store.Find(ctx, "deadbeef"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("expected ambiguous prefix error, got %v", err)
	}
	missing, err := store.Find(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown reference, got %#v, %v", missing, err)
	}
}

func TestFindTreatsWildcardsLiterally(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.AddGrading(t, store, "abc-1111", testsupport.SampleResult())
	testsupport.AddGrading(t, store, "abd-2222", testsupport.SampleResult())
	literal := testsupport.AddGrading(t, store, "a_%-3333", testsupport.SampleResult())

	for _, ref := range []string{"%", "_", "ab_", "a%"} {
		got, err := store.Find(ctx, ref)
		if err != nil || got != nil {
			t.Fatalf("Find(%q): expected no match, got %#v, %v", ref, got, err)
		}
	}
	got, err := store.Find(ctx, "a_%")
	if err != nil || got == nil || got.ID != literal.ID {
		t.Fatalf("Find literal wildcard prefix: %#v, %v", got, err)
	}
}

func TestLatestSkipsFailures(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if latest, err := store.Latest(ctx); err != nil || latest != nil {
		t.Fatalf("expected no latest record in empty store, got %#v, %v", latest, err)
	}

	done := testsupport.AddGrading(t, store, "done-1", testsupport.SampleResult())
	if _, err := store.Insert(ctx, history.Record{
		SubmissionID:  "failed-2",
		StudentFile:   "s.pdf",
		AnswerKeyFile: "k.pdf",
		Status:        history.StatusFailed,
		ErrorMessage:  "Failed to process PDFs: boom",
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.ID != done.ID {
		t.Fatalf("expected latest completed record, got %#v", latest)
	}
}

func TestRemoveDeletesRecord(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := testsupport.AddGrading(t, store, "gone-1", testsupport.SampleResult())

	removed, err := store.Remove(ctx, rec.ID)
	if err != nil || !removed {
		t.Fatalf("Remove: %v, %v", removed, err)
	}
	removed, err = store.Remove(ctx, rec.ID)
	if err != nil || removed {
		t.Fatalf("second Remove: %v, %v", removed, err)
	}
}

func TestReopenPreservesRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.AddGrading(t, store, "keep-1", testsupport.SampleResult())
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	rec, err := reopened.GetBySubmissionID(context.Background(), "keep-1")
	if err != nil || rec == nil {
		t.Fatalf("expected record after reopen, got %#v, %v", rec, err)
	}
}

func TestFromSnapshot(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	result := grading.Result{TotalScore: 8, TotalPossible: 10, Percentage: 80}
	labels := history.Labels{Email: " t@example.com ", Subject: "Physics", PaperID: "P-1"}

	rec, ok := history.FromSnapshot(upload.Snapshot{
		Phase:         upload.PhaseSucceeded,
		Result:        &result,
		StudentAnswer: "student.pdf",
		AnswerKey:     "key.pdf",
		SubmissionID:  "sub-1",
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
	}, labels)
	if !ok || rec.Status != history.StatusCompleted || !rec.HasResult() || rec.Email != "t@example.com" {
		t.Fatalf("unexpected completed record %#v", rec)
	}
	result.TotalScore = 0
	if rec.Result.TotalScore != 8 {
		t.Fatal("expected record to own a copy of the result")
	}

	rec, ok = history.FromSnapshot(upload.Snapshot{
		Phase:     upload.PhaseFailed,
		Error:     "Failed to process PDFs: Server responded with status: 500",
		ErrorKind: services.KindTransport,
	}, labels)
	if !ok || rec.Status != history.StatusFailed || rec.ErrorKind != services.KindTransport || rec.HasResult() {
		t.Fatalf("unexpected failed record %#v", rec)
	}

	if _, ok := history.FromSnapshot(upload.Snapshot{Phase: upload.PhaseUploading}, labels); ok {
		t.Fatal("expected non-terminal snapshot to be rejected")
	}
}
