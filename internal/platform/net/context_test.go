package net_test

import (
	"context"
	"testing"

	pnet "ralcore/internal/platform/net"
)

func TestWithRequest_And_Getters(t *testing.T) {
	base := context.Background()

	t.Run("sets request id", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "req-123")

		if got := pnet.RequestID(ctx); got != "req-123" {
			t.Fatalf("RequestID got %q want %q", got, "req-123")
		}
	})

	t.Run("empty id returns same ctx", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "")

		// should be the same reference since nothing was set
		if ctx != base {
			t.Fatalf("expected ctx to be unchanged when id empty")
		}
		if got := pnet.RequestID(ctx); got != "" {
			t.Fatalf("RequestID got %q want empty", got)
		}
	})
}

func TestWithUser_And_Getter(t *testing.T) {
	base := context.Background()

	t.Run("sets user id", func(t *testing.T) {
		ctx := pnet.WithUser(base, "user-1")

		if got := pnet.UserID(ctx); got != "user-1" {
			t.Fatalf("UserID got %q want %q", got, "user-1")
		}
	})

	t.Run("empty user returns same ctx", func(t *testing.T) {
		ctx := pnet.WithUser(base, "")

		if ctx != base {
			t.Fatalf("expected ctx to be unchanged when user empty")
		}
		if got := pnet.UserID(ctx); got != "" {
			t.Fatalf("UserID got %q want empty", got)
		}
	})
}
