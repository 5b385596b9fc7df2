package logger

import (
	"context"
	"testing"
)

func TestLoggerRoundTrip(t *testing.T) {
	l, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := WithLogger(context.Background(), l)
	if got := FromContext(ctx); got != l {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestFromContextDefault(t *testing.T) {
	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext on empty context returned nil")
	}
}

func TestConnIDRoundTrip(t *testing.T) {
	ctx := WithConnID(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if got := ConnIDFromContext(ctx); got != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Errorf("ConnIDFromContext = %q", got)
	}
}

func TestConnIDMissing(t *testing.T) {
	if got := ConnIDFromContext(context.Background()); got != "" {
		t.Errorf("ConnIDFromContext on empty context = %q, want empty", got)
	}
}
