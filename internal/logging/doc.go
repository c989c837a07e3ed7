// Package logging assembles structured slog loggers and formatting helpers used
// across evalo.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so grading code can tag log lines
// with submission IDs, components, and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
