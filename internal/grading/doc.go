// Package grading talks to the remote grading service.
//
// Client.Submit uploads a student answer PDF and an answer key PDF as one
// multipart request and decodes the returned GradingResult. Client.GenerateReport
// posts a GradingResult back to the service and streams the rendered PDF report.
// Failures are tagged with the services error markers so callers can tell
// transport problems from malformed responses.
package grading
