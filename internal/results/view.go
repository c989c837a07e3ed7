package results

import (
	"math"
	"strconv"
	"unicode/utf8"

	"evalo/internal/grading"
)

// FeedbackPreviewLimit is the number of characters of feedback shown before
// truncation.
const FeedbackPreviewLimit = 100

// Band is the qualitative grade for the aggregate percentage.
type Band string

const (
	BandExcellent        Band = "Excellent"
	BandGood             Band = "Good"
	BandSatisfactory     Band = "Satisfactory"
	BandNeedsImprovement Band = "Needs Improvement"
)

// BandFor maps an aggregate percentage to its band.
func BandFor(percentage float64) Band {
	switch {
	case percentage >= 90:
		return BandExcellent
	case percentage >= 75:
		return BandGood
	case percentage >= 60:
		return BandSatisfactory
	default:
		return BandNeedsImprovement
	}
}

// Tier colours a question by how much of it was earned.
type Tier string

const (
	TierFull Tier = "full"
	TierHigh Tier = "high"
	TierMid  Tier = "mid"
	TierLow  Tier = "low"
)

// TierFor maps a per-question percentage to its tier.
func TierFor(percent int) Tier {
	switch {
	case percent >= 100:
		return TierFull
	case percent >= 75:
		return TierHigh
	case percent >= 50:
		return TierMid
	default:
		return TierLow
	}
}

// QuestionCard is the display form of one graded question.
type QuestionCard struct {
	Number        int    `json:"question_number"`
	Score         string `json:"score"`
	Percent       int    `json:"percent"`
	Tier          Tier   `json:"tier"`
	Feedback      string `json:"feedback"`
	Preview       string `json:"feedback_preview"`
	Justification string `json:"justification,omitempty"`
}

// View is the display form of a grading result.
type View struct {
	TotalScore   string         `json:"total_score"`
	Percentage   float64        `json:"percentage"`
	RoundedScore int            `json:"rounded_percentage"`
	Band         Band           `json:"band"`
	Questions    []QuestionCard `json:"questions"`
}

// Render derives the view for result. The aggregate percentage is used as sent.
func Render(result grading.Result) View {
	view := View{
		TotalScore:   FormatPoints(result.TotalScore) + "/" + FormatPoints(result.TotalPossible),
		Percentage:   result.Percentage,
		RoundedScore: int(math.Round(result.Percentage)),
		Band:         BandFor(result.Percentage),
		Questions:    make([]QuestionCard, 0, len(result.Questions)),
	}
	for _, q := range result.Questions {
		percent := QuestionPercent(q)
		view.Questions = append(view.Questions, QuestionCard{
			Number:        q.Number,
			Score:         FormatPoints(q.PointsEarned) + "/" + FormatPoints(q.PointsPossible),
			Percent:       percent,
			Tier:          TierFor(percent),
			Feedback:      q.Feedback,
			Preview:       Preview(q.Feedback, FeedbackPreviewLimit),
			Justification: q.Justification,
		})
	}
	return view
}

// QuestionPercent returns round(earned/possible*100). A question worth zero
// points reports 0.
func QuestionPercent(q grading.Question) int {
	if q.PointsPossible == 0 {
		return 0
	}
	return int(math.Round(q.PointsEarned / q.PointsPossible * 100))
}

// FormatPoints prints points without a trailing ".0" for whole numbers.
func FormatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Preview cuts text to limit characters and appends "..." when it was longer.
func Preview(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
