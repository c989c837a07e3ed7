package services_test

import (
	"context"
	"testing"

	"evalo/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSubmissionID(ctx, "sub-42")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SubmissionIDFromContext(ctx); !ok || id != "sub-42" {
		t.Fatalf("unexpected submission id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSubmissionID(ctx, "")
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request value")
	}
	if _, ok := services.SubmissionIDFromContext(ctx); ok {
		t.Fatal("expected no submission value")
	}
}
