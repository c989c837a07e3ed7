package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"evalo/internal/config"
)

const userAgent = "evalo/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventGradingCompleted Event = "grading_completed"
	EventGradingFailed    Event = "grading_failed"
	EventReportSaved      Event = "report_saved"
	EventTest             Event = "test"
)

// Payload carries event fields. Known keys: student, answerKey, subject,
// score, percentage, band, error, path.
type Payload map[string]any

// Service defines the notification surface exposed to the CLI.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventGradingCompleted: cfg.Notifications.Completed,
			EventGradingFailed:    cfg.Notifications.Failed,
			EventReportSaved:      cfg.Notifications.Completed,
			EventTest:             true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventGradingCompleted:
		subject := payload.text("subject")
		title := "evalo - Graded"
		if subject != "" {
			title = fmt.Sprintf("evalo - Graded (%s)", subject)
		}
		body := fmt.Sprintf("✅ %s scored %s (%s%%)",
			fallback(payload.text("student"), "Submission"),
			payload.text("score"),
			payload.text("percentage"),
		)
		if band := payload.text("band"); band != "" {
			body = fmt.Sprintf("%s - %s", body, band)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"evalo", "grading", "completed"},
		}, true
	case EventGradingFailed:
		var builder strings.Builder
		builder.WriteString("❌ Grading failed")
		if student := payload.text("student"); student != "" {
			builder.WriteString(" for ")
			builder.WriteString(student)
		}
		builder.WriteString(": ")
		builder.WriteString(fallback(payload.text("error"), "unknown"))
		return message{
			title:    "evalo - Grading Failed",
			body:     builder.String(),
			tags:     []string{"evalo", "grading", "error"},
			priority: "high",
		}, true
	case EventReportSaved:
		return message{
			title: "evalo - Report Saved",
			body:  fmt.Sprintf("📄 Report saved: %s", payload.text("path")),
			tags:  []string{"evalo", "report"},
		}, true
	case EventTest:
		return message{
			title:    "evalo - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"evalo", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
