package httpkit

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	perrs "ralcore/internal/platform/errors"
)

func TestHeaderPort_Parse_MissingHeaderFallsBack(t *testing.T) {
	t.Parallel()

	p := NewHeaderPort("", "", func(string) (string, error) {
		t.Fatalf("mapper should not be called when header is missing")
		return "", nil
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	uid, err := p.Parse(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != AnonymousUser {
		t.Fatalf("expected fallback %q, got %q", AnonymousUser, uid)
	}
}

func TestHeaderPort_Parse_CustomFallback(t *testing.T) {
	t.Parallel()

	p := NewHeaderPort(UserHeader, "guest", nil)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	uid, err := p.Parse(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "guest" {
		t.Fatalf("expected fallback guest, got %q", uid)
	}
}

func TestHeaderPort_Parse_HeaderValueTrimmed(t *testing.T) {
	t.Parallel()

	p := NewHeaderPort("", "", nil)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "   user-42   ")

	uid, err := p.Parse(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "user-42" {
		t.Fatalf("expected user-42, got %q", uid)
	}
}

func TestHeaderPort_Parse_TooLong(t *testing.T) {
	t.Parallel()

	p := NewHeaderPort("", "", nil)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, strings.Repeat("x", maxUserIDLen+1))

	_, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error for oversized user id")
	}
	var pe *perrs.Error
	if !errors.As(err, &pe) || pe.Code() != perrs.ErrorCodeInvalidArgument {
		t.Fatalf("expected invalid argument perrs error, got %#v", err)
	}
}

func TestHeaderPort_Parse_MapperApplied(t *testing.T) {
	t.Parallel()

	calls := 0
	p := NewHeaderPort("", "", func(raw string) (string, error) {
		calls++
		if raw != "Alice" {
			t.Fatalf("expected raw Alice, got %q", raw)
		}
		return strings.ToLower(raw), nil
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "Alice")

	uid, err := p.Parse(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "alice" {
		t.Fatalf("expected mapped id alice, got %q", uid)
	}
	if calls != 1 {
		t.Fatalf("expected mapper called once, got %d", calls)
	}
}

func TestHeaderPort_Parse_MapperError(t *testing.T) {
	t.Parallel()

	p := NewHeaderPort("", "", func(string) (string, error) {
		return "", errors.New("reject")
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "bad id")

	uid, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if uid != "" {
		t.Fatalf("expected empty id on mapper error, got %q", uid)
	}
}
