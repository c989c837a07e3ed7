package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"evalo/internal/logging"
	"evalo/internal/upload"
)

// progressDisplay mirrors workflow snapshots on the terminal. Update runs on
// workflow goroutines, one call at a time.
type progressDisplay interface {
	Update(snap upload.Snapshot)
	Close()
}

func newProgressDisplay(out io.Writer, interactive bool, colorize bool) progressDisplay {
	if interactive {
		return newBarDisplay(out, colorize)
	}
	return &lineDisplay{out: out, sampler: logging.NewProgressSampler(10)}
}

type barDisplay struct {
	mu   sync.Mutex
	out  io.Writer
	bar  *progressbar.ProgressBar
	done bool
}

func newBarDisplay(out io.Writer, colorize bool) *barDisplay {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetWidth(30),
		progressbar.OptionEnableColorCodes(colorize),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetDescription(upload.DefaultTimeline()[0].Label),
	)
	return &barDisplay{out: out, bar: bar}
}

func (d *barDisplay) Update(snap upload.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}
	switch snap.Phase {
	case upload.PhaseUploading:
		d.bar.Describe(snap.Status)
		_ = d.bar.Set(snap.Progress)
	case upload.PhaseSucceeded:
		d.bar.Describe(snap.Status)
		_ = d.bar.Set(100)
		_ = d.bar.Finish()
		fmt.Fprintln(d.out)
		d.done = true
	case upload.PhaseFailed:
		d.bar.Describe(snap.Status)
		_ = d.bar.Exit()
		fmt.Fprintln(d.out)
		d.done = true
	}
}

func (d *barDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.done {
		_ = d.bar.Exit()
		d.done = true
	}
}

// lineDisplay prints one line per progress bucket for pipes and log files.
type lineDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	sampler *logging.ProgressSampler
	done    bool
}

func (d *lineDisplay) Update(snap upload.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}
	switch snap.Phase {
	case upload.PhaseUploading:
		if d.sampler.ShouldLog(snap.Progress, snap.Status) {
			fmt.Fprintf(d.out, "%3d%% %s\n", snap.Progress, snap.Status)
		}
	case upload.PhaseSucceeded, upload.PhaseFailed:
		fmt.Fprintf(d.out, "%3d%% %s\n", snap.Progress, snap.Status)
		d.done = true
	}
}

func (d *lineDisplay) Close() {}
