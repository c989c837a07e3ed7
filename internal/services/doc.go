// Package services defines shared utilities consumed by the grading workflow
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp submission IDs, component names, and
//     correlation identifiers for logging and request tracing.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (validation vs transport vs decode) without string matching.
//
// Use these helpers when wiring new client code so operational behaviour
// (error handling, observability) stays uniform across the CLI and packages.
package services
