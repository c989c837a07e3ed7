package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/google/uuid"

	"evalo/internal/config"
	"evalo/internal/logging"
	"evalo/internal/services"
)

const (
	// StudentPartName is the multipart field carrying the student answer PDF.
	StudentPartName = "student_pdf"
	// AnswerKeyPartName is the multipart field carrying the answer key PDF.
	AnswerKeyPartName = "answer_key_pdf"

	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 4096
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// StatusError reports a non-success HTTP response from the grading service.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s returned status %d", e.Endpoint, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client calls the grading and report endpoints.
type Client struct {
	processURL string
	reportURL  string
	http       HTTPDoer
	logger     *slog.Logger
}

// NewClient constructs a grading client. A nil doer uses http.DefaultClient.
func NewClient(processURL, reportURL string, doer HTTPDoer, logger *slog.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		processURL: processURL,
		reportURL:  reportURL,
		http:       doer,
		logger:     logging.NewComponentLogger(logger, "grading"),
	}
}

// NewFromConfig builds a client for the configured grading service.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}
	return NewClient(cfg.ProcessURL(), cfg.ReportURL(), httpClient, logger)
}

// Submit uploads both documents in a single multipart request and decodes the
// grading result.
func (c *Client) Submit(ctx context.Context, student, answerKey Document) (Result, error) {
	if student == nil || answerKey == nil {
		return Result{}, services.Wrap(services.ErrValidation, "grading", "submit", "both documents are required", nil)
	}

	body, contentType, err := buildMultipart(student, answerKey)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "grading", "submit", "read documents", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, body)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "grading", "submit", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	requestID := c.stampRequestID(ctx, req)

	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldCorrelationID, requestID))
	logger.Debug("submitting documents",
		logging.String("student_pdf", student.Name()),
		logging.String("answer_key_pdf", answerKey.Name()),
		logging.Int("bytes", body.Len()),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransport, "grading", "submit", "request failed", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "process-pdfs"); err != nil {
		return Result{}, services.Wrap(services.ErrTransport, "grading", "submit", "", err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransport, "grading", "submit", "read response", err)
	}
	result, err := DecodeResult(data)
	if err != nil {
		return Result{}, services.Wrap(services.ErrDecode, "grading", "submit", "decode result", err)
	}
	logger.Info("grading result received",
		logging.Int("questions", len(result.Questions)),
		slog.Float64("percentage", result.Percentage),
	)
	return result, nil
}

// GenerateReport posts the result to the report endpoint and returns the PDF
// body. The caller owns the returned reader and must close it.
func (c *Client) GenerateReport(ctx context.Context, result Result) (io.ReadCloser, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "grading", "report", "encode result", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.reportURL, bytes.NewReader(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "grading", "report", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")
	requestID := c.stampRequestID(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "grading", "report", "request failed", err)
	}
	if err := checkStatus(resp, "generate-report"); err != nil {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrTransport, "grading", "report", "", err)
	}
	logging.WithContext(ctx, c.logger).Debug("report stream opened",
		logging.String(logging.FieldCorrelationID, requestID),
		logging.Int64("content_length", resp.ContentLength),
	)
	return resp.Body, nil
}

func (c *Client) stampRequestID(ctx context.Context, req *http.Request) string {
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set(requestIDHeader, requestID)
	return requestID
}

func checkStatus(resp *http.Response, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(bodyBytes)),
	}
}

func buildMultipart(student, answerKey Document) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, part := range []struct {
		field string
		doc   Document
	}{
		{StudentPartName, student},
		{AnswerKeyPartName, answerKey},
	} {
		if err := writePDFPart(writer, part.field, part.doc); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func writePDFPart(writer *multipart.Writer, field string, doc Document) error {
	src, err := doc.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", doc.Name(), err)
	}
	defer src.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, doc.Name()))
	header.Set("Content-Type", "application/pdf")
	dst, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s: %w", doc.Name(), err)
	}
	return nil
}
