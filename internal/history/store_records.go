package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ListOptions filters List results.
type ListOptions struct {
	Limit  int
	Status Status
	Email  string
}

const defaultListLimit = 20

// Insert stores a terminal grading and returns it with its assigned ID.
func (s *Store) Insert(ctx context.Context, rec Record) (*Record, error) {
	if strings.TrimSpace(rec.SubmissionID) == "" {
		return nil, errors.New("insert grading: submission id is required")
	}
	if rec.Status != StatusCompleted && rec.Status != StatusFailed {
		return nil, fmt.Errorf("insert grading: unsupported status %q", rec.Status)
	}

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	var (
		resultJSON                            any
		totalScore, totalPossible, percentage any
	)
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = string(data)
		totalScore = rec.Result.TotalScore
		totalPossible = rec.Result.TotalPossible
		percentage = rec.Result.Percentage
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO gradings (
            submission_id, email, subject, paper_id, student_file, answer_key_file,
            status, error_kind, error_message, total_score, total_possible, percentage,
            result_json, created_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SubmissionID,
		nullableString(rec.Email),
		nullableString(rec.Subject),
		nullableString(rec.PaperID),
		rec.StudentFile,
		rec.AnswerKeyFile,
		string(rec.Status),
		nullableString(string(rec.ErrorKind)),
		nullableString(rec.ErrorMessage),
		totalScore,
		totalPossible,
		percentage,
		resultJSON,
		created.UTC().Format(time.RFC3339Nano),
		nullableTime(rec.FinishedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert grading: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a record by its numeric ID. Missing records return nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM gradings WHERE id = ?", id)
	return scanOptional(row)
}

// GetBySubmissionID fetches a record by submission ID. Missing records return nil.
func (s *Store) GetBySubmissionID(ctx context.Context, submissionID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM gradings WHERE submission_id = ?", submissionID)
	return scanOptional(row)
}

// Find resolves a user-supplied reference: a numeric ID or a submission ID
// (full or unique prefix).
func (s *Store) Find(ctx context.Context, ref string) (*Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.GetByID(ctx, id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+` FROM gradings WHERE submission_id LIKE ? ESCAPE '\' ORDER BY id DESC LIMIT 2`,
		likePrefix(ref),
	)
	if err != nil {
		return nil, fmt.Errorf("find grading: %w", err)
	}
	records, err := collect(rows)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("submission prefix %q is ambiguous", ref)
	}
}

// Latest returns the newest record with a result, or nil when none exists.
func (s *Store) Latest(ctx context.Context) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM gradings WHERE status = ? AND result_json IS NOT NULL ORDER BY id DESC LIMIT 1",
		string(StatusCompleted),
	)
	return scanOptional(row)
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var (
		clauses []string
		args    []any
	)
	if opts.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(opts.Status))
	}
	if email := strings.TrimSpace(opts.Email); email != "" {
		clauses = append(clauses, "email = ?")
		args = append(args, email)
	}
	query := "SELECT " + recordColumns + " FROM gradings"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list gradings: %w", err)
	}
	return collect(rows)
}

// Remove deletes a record by ID and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM gradings WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete grading: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanOptional(row *sql.Row) (*Record, error) {
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan grading: %w", err)
	}
	return rec, nil
}

func collect(rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()
	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grading: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gradings: %w", err)
	}
	return records, nil
}

// likePrefix builds a LIKE pattern matching values that start with ref
// literally.
func likePrefix(ref string) string {
	return likeEscaper.Replace(ref) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
