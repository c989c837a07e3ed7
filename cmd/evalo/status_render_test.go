package main

import (
	"bytes"
	"strings"
	"testing"

	"evalo/internal/results"
)

func TestRenderStatusLine(t *testing.T) {
	got := renderStatusLine("Report", statusOK, "/tmp/r.pdf", false)
	want := "  Report:          [OK] /tmp/r.pdf"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := renderStatusLine("Status", statusError, "", false); !strings.HasSuffix(got, "[ERROR]") {
		t.Fatalf("expected bare status, got %q", got)
	}
	colored := renderStatusLine("Status", statusWarn, "slow", true)
	if !strings.HasPrefix(colored, ansiYellow) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected yellow line, got %q", colored)
	}
}

func TestBandStatus(t *testing.T) {
	cases := map[results.Band]statusKind{
		results.BandExcellent:        statusOK,
		results.BandGood:             statusOK,
		results.BandSatisfactory:     statusWarn,
		results.BandNeedsImprovement: statusError,
	}
	for band, want := range cases {
		if got := bandStatus(band); got != want {
			t.Fatalf("%s: got %v want %v", band, got, want)
		}
	}
}

func TestShouldColorizeHonoursNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never colorized")
	}
	if isTerminal(&bytes.Buffer{}) {
		t.Fatal("buffer is not a terminal")
	}
}
