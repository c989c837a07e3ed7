package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"evalo/internal/grading"
	"evalo/internal/services"
)

const recordColumns = "id, submission_id, email, subject, paper_id, student_file, answer_key_file, status, error_kind, error_message, result_json, created_at, finished_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id            int64
		submissionID  string
		email         sql.NullString
		subject       sql.NullString
		paperID       sql.NullString
		studentFile   string
		answerKeyFile string
		statusStr     string
		errorKind     sql.NullString
		errorMessage  sql.NullString
		resultJSON    sql.NullString
		createdRaw    sql.NullString
		finishedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&submissionID,
		&email,
		&subject,
		&paperID,
		&studentFile,
		&answerKeyFile,
		&statusStr,
		&errorKind,
		&errorMessage,
		&resultJSON,
		&createdRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:            id,
		SubmissionID:  submissionID,
		Email:         email.String,
		Subject:       subject.String,
		PaperID:       paperID.String,
		StudentFile:   studentFile,
		AnswerKeyFile: answerKeyFile,
		Status:        Status(statusStr),
		ErrorKind:     services.Kind(errorKind.String),
		ErrorMessage:  errorMessage.String,
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result grading.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("decode stored result for %s: %w", submissionID, err)
		}
		rec.Result = &result
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if finished, err := parseTimeString(finishedRaw.String); err == nil {
		rec.FinishedAt = finished
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
