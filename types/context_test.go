package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithRequestID(ctx, "req-1")
	if got, ok := RequestID(ctx); !ok || got != "req-1" {
		t.Fatalf("RequestID mismatch: %v %v", got, ok)
	}

	ctx = WithUserID(ctx, "user")
	if got, ok := UserID(ctx); !ok || got != "user" {
		t.Fatalf("UserID mismatch: %v %v", got, ok)
	}

	ctx = WithRole(ctx, "ADMIN")
	if got, ok := Role(ctx); !ok || got != "ADMIN" {
		t.Fatalf("Role mismatch: %v %v", got, ok)
	}

	ctx = WithBranchID(ctx, "b1")
	if got, ok := BranchID(ctx); !ok || got != "b1" {
		t.Fatalf("BranchID mismatch: %v %v", got, ok)
	}
}

func TestContextHelpers_EmptyValues(t *testing.T) {
	t.Parallel()

	ctx := WithUserID(context.Background(), "")
	if _, ok := UserID(ctx); ok {
		t.Fatalf("empty user id must report not ok")
	}
	if _, ok := Role(context.Background()); ok {
		t.Fatalf("missing role must report not ok")
	}
}
