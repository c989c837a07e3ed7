package main

import (
	"fmt"
	"io"
	"strings"

	"evalo/internal/grading"
	"evalo/internal/results"
)

const feedbackColumnWidth = 60

// renderResults prints the headline score and the per-question table. With
// details set, the full feedback and justification of every question follow.
func renderResults(out io.Writer, result grading.Result, details bool, colorize bool) {
	view := results.Render(result)

	headline := fmt.Sprintf("%s (%d%%) %s", view.TotalScore, view.RoundedScore, view.Band)
	fmt.Fprintln(out, renderStatusLine("Overall score", bandStatus(view.Band), headline, colorize))

	if len(view.Questions) == 0 {
		fmt.Fprintln(out, "No per-question breakdown was returned.")
		return
	}

	rows := make([][]string, 0, len(view.Questions))
	for _, card := range view.Questions {
		rows = append(rows, []string{
			fmt.Sprintf("Q%d", card.Number),
			card.Score,
			paint(fmt.Sprintf("%d%%", card.Percent), tierColor(card.Tier), colorize),
			card.Preview,
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		headers:   []string{"Question", "Score", "Percent", "Feedback"},
		rows:      rows,
		aligns:    []columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
		maxWidths: []int{0, 0, 0, feedbackColumnWidth},
		footer:    []string{"Total", view.TotalScore, fmt.Sprintf("%d%%", view.RoundedScore), string(view.Band)},
	}))

	if !details {
		return
	}
	for _, card := range view.Questions {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader(fmt.Sprintf("Question %d (%s)", card.Number, card.Score), colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, strings.TrimSpace(card.Feedback))
		if justification := strings.TrimSpace(card.Justification); justification != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Justification: "+justification)
		}
	}
}
