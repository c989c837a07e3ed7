package upload

import (
	"errors"
	"fmt"
	"time"
)

// Stage is one step of the simulated progress display. Delay is measured from
// the previous stage.
type Stage struct {
	Percent int
	Label   string
	Delay   time.Duration
}

// Timeline is the ordered stage schedule played while a submission is in flight.
// The first stage is shown immediately on submit.
type Timeline []Stage

const (
	// CompleteLabel is shown once the grading response decodes.
	CompleteLabel = "Complete!"
	// FailedLabel is shown once the submission fails.
	FailedLabel = "Failed"
)

// DefaultTimeline returns the stage schedule shown during grading.
func DefaultTimeline() Timeline {
	return Timeline{
		{Percent: 0, Label: "Preparing documents..."},
		{Percent: 15, Label: "Extracting text from student PDF...", Delay: 1000 * time.Millisecond},
		{Percent: 30, Label: "Processing student answers...", Delay: 2000 * time.Millisecond},
		{Percent: 50, Label: "Extracting text from answer key...", Delay: 1500 * time.Millisecond},
		{Percent: 70, Label: "Analyzing responses...", Delay: 2000 * time.Millisecond},
		{Percent: 85, Label: "Generating grading results...", Delay: 1500 * time.Millisecond},
		{Percent: 95, Label: "Finalizing...", Delay: 1000 * time.Millisecond},
	}
}

// Validate checks that the timeline is non-empty, stays below 100 percent, and
// never moves backwards.
func (t Timeline) Validate() error {
	if len(t) == 0 {
		return errors.New("timeline must have at least one stage")
	}
	prev := -1
	for idx, stage := range t {
		if stage.Percent < 0 || stage.Percent >= 100 {
			return fmt.Errorf("stage %d: percent %d outside [0,100)", idx, stage.Percent)
		}
		if stage.Percent < prev {
			return fmt.Errorf("stage %d: percent %d below previous %d", idx, stage.Percent, prev)
		}
		if stage.Delay < 0 {
			return fmt.Errorf("stage %d: negative delay", idx)
		}
		if stage.Label == "" {
			return fmt.Errorf("stage %d: empty label", idx)
		}
		prev = stage.Percent
	}
	return nil
}

// Duration is the total time until the last stage is shown.
func (t Timeline) Duration() time.Duration {
	var total time.Duration
	for _, stage := range t {
		total += stage.Delay
	}
	return total
}
