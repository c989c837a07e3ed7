package history

import (
	"strings"
	"time"

	"evalo/internal/grading"
	"evalo/internal/services"
	"evalo/internal/upload"
)

// Status is the terminal outcome of a recorded grading.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus converts a user-supplied string into a Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	}
	return "", false
}

// Record is one stored grading.
type Record struct {
	ID            int64
	SubmissionID  string
	Email         string
	Subject       string
	PaperID       string
	StudentFile   string
	AnswerKeyFile string
	Status        Status
	ErrorKind     services.Kind
	ErrorMessage  string
	Result        *grading.Result
	CreatedAt     time.Time
	FinishedAt    time.Time
}

// Labels carries the optional descriptive fields attached to a grading.
type Labels struct {
	Email   string
	Subject string
	PaperID string
}

// FromSnapshot builds a Record from a terminal upload snapshot. It reports
// false when the snapshot has not finished.
func FromSnapshot(snap upload.Snapshot, labels Labels) (Record, bool) {
	rec := Record{
		SubmissionID:  snap.SubmissionID,
		Email:         strings.TrimSpace(labels.Email),
		Subject:       strings.TrimSpace(labels.Subject),
		PaperID:       strings.TrimSpace(labels.PaperID),
		StudentFile:   snap.StudentAnswer,
		AnswerKeyFile: snap.AnswerKey,
		CreatedAt:     snap.StartedAt,
		FinishedAt:    snap.FinishedAt,
	}
	switch snap.Phase {
	case upload.PhaseSucceeded:
		rec.Status = StatusCompleted
		if snap.Result != nil {
			result := *snap.Result
			rec.Result = &result
		}
	case upload.PhaseFailed:
		rec.Status = StatusFailed
		rec.ErrorKind = snap.ErrorKind
		rec.ErrorMessage = snap.Error
	default:
		return Record{}, false
	}
	return rec, true
}

// HasResult reports whether the record can produce a report.
func (r Record) HasResult() bool {
	return r.Status == StatusCompleted && r.Result != nil
}
