package grading

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Question is one graded question as returned by the grading service.
type Question struct {
	Number         int     `json:"question_number"`
	PointsEarned   float64 `json:"points_earned"`
	PointsPossible float64 `json:"points_possible"`
	Feedback       string  `json:"feedback"`
	Justification  string  `json:"justification,omitempty"`
}

// Result is the grading outcome for one submission. It is treated as
// immutable once decoded; Percentage is trusted as sent by the service.
type Result struct {
	TotalScore    float64    `json:"total_score"`
	TotalPossible float64    `json:"total_possible"`
	Percentage    float64    `json:"percentage"`
	Questions     []Question `json:"questions"`
}

type wireResult struct {
	TotalScore    *float64        `json:"total_score"`
	TotalPossible *float64        `json:"total_possible"`
	Percentage    *float64        `json:"percentage"`
	Questions     *[]wireQuestion `json:"questions"`
}

type wireQuestion struct {
	Number         *int     `json:"question_number"`
	PointsEarned   *float64 `json:"points_earned"`
	PointsPossible *float64 `json:"points_possible"`
	Feedback       string   `json:"feedback"`
	Justification  string   `json:"justification"`
}

var errMissingField = errors.New("missing required field")

// DecodeResult parses a grading response body, rejecting payloads that do not
// carry the totals and the question list.
func DecodeResult(data []byte) (Result, error) {
	var wire wireResult
	if err := json.Unmarshal(data, &wire); err != nil {
		return Result{}, err
	}
	switch {
	case wire.TotalScore == nil:
		return Result{}, fmt.Errorf("%w: total_score", errMissingField)
	case wire.TotalPossible == nil:
		return Result{}, fmt.Errorf("%w: total_possible", errMissingField)
	case wire.Percentage == nil:
		return Result{}, fmt.Errorf("%w: percentage", errMissingField)
	case wire.Questions == nil:
		return Result{}, fmt.Errorf("%w: questions", errMissingField)
	}

	result := Result{
		TotalScore:    *wire.TotalScore,
		TotalPossible: *wire.TotalPossible,
		Percentage:    *wire.Percentage,
		Questions:     make([]Question, 0, len(*wire.Questions)),
	}
	for idx, q := range *wire.Questions {
		if q.Number == nil || q.PointsEarned == nil || q.PointsPossible == nil {
			return Result{}, fmt.Errorf("%w: questions[%d]", errMissingField, idx)
		}
		result.Questions = append(result.Questions, Question{
			Number:         *q.Number,
			PointsEarned:   *q.PointsEarned,
			PointsPossible: *q.PointsPossible,
			Feedback:       q.Feedback,
			Justification:  q.Justification,
		})
	}
	return result, nil
}
