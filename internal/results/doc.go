// Package results turns a grading result into display values and downloads
// the rendered PDF report.
//
// Render is pure: it derives the overall band and per-question percentages
// without recomputing the service's aggregate percentage. Downloader fetches
// the report once at a time, staging it in a temporary file before moving it
// to its destination.
package results
