package logging

import (
	"context"
	"log/slog"
	"time"

	"evalo/internal/services"
)

type Attr = slog.Attr

// FieldErrorKind carries the services.Kind of a logged error.
const FieldErrorKind = "error_kind"

const defaultErrorHint = `set logging.level = "debug" for details`

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error records err under "error". The value keeps the error itself so
// WarnWithContext can classify it.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component name. A nil logger falls
// back to NewNop.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WarnWithContext logs a warning carrying event_type and error_hint. When the
// attrs include an error, its classification is added as error_kind.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	var (
		hasEvent, hasHint, hasKind bool
		logged                     error
	)
	for _, a := range attrs {
		switch a.Key {
		case FieldEventType:
			hasEvent = true
		case FieldErrorHint:
			hasHint = true
		case FieldErrorKind:
			hasKind = true
		case "error":
			logged, _ = a.Value.Any().(error)
		}
	}
	if !hasEvent {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasHint {
		attrs = append(attrs, String(FieldErrorHint, defaultErrorHint))
	}
	if logged != nil && !hasKind {
		attrs = append(attrs, String(FieldErrorKind, string(services.Classify(logged))))
	}
	logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}
