package testsupport

import (
	"context"
	"testing"
	"time"

	"evalo/internal/config"
	"evalo/internal/grading"
	"evalo/internal/history"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SampleResult returns a small graded result with two questions.
func SampleResult() grading.Result {
	return grading.Result{
		TotalScore:    14,
		TotalPossible: 20,
		Percentage:    70,
		Questions: []grading.Question{
			{Number: 1, PointsEarned: 9, PointsPossible: 10, Feedback: "Clear derivation with a minor sign slip."},
			{Number: 2, PointsEarned: 5, PointsPossible: 10, Feedback: "Missing the final comparison step."},
		},
	}
}

// AddGrading inserts a completed grading for tests.
func AddGrading(t testing.TB, store *history.Store, submissionID string, result grading.Result) *history.Record {
	t.Helper()

	now := time.Now()
	rec, err := store.Insert(context.Background(), history.Record{
		SubmissionID:  submissionID,
		Email:         "teacher@example.com",
		StudentFile:   "student.pdf",
		AnswerKeyFile: "key.pdf",
		Status:        history.StatusCompleted,
		Result:        &result,
		CreatedAt:     now.Add(-time.Second),
		FinishedAt:    now,
	})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return rec
}
