package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrTransport     = errors.New("transport error")
	ErrDecode        = errors.New("decode error")
	ErrAuthorization = errors.New("authorization error")
	ErrConfiguration = errors.New("configuration error")
	ErrBusy          = errors.New("operation in progress")
)

// Kind is a coarse failure classification persisted with history records and
// used to pick CLI wording.
type Kind string

const (
	KindNone          Kind = ""
	KindValidation    Kind = "validation"
	KindTransport     Kind = "transport"
	KindDecode        Kind = "decode"
	KindAuthorization Kind = "authorization"
	KindConfiguration Kind = "configuration"
	KindCanceled      Kind = "canceled"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its failure kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrAuthorization):
		return KindAuthorization
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case isCanceled(err):
		return KindCanceled
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}

// Retryable reports whether the user can reasonably retry the same action.
// Decode failures are displayed like transport failures, so both qualify.
func Retryable(err error) bool {
	return Classify(err).Retryable()
}

// Retryable reports whether a failure of this kind is worth retrying as is.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransport, KindDecode, KindUnknown:
		return true
	default:
		return false
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
