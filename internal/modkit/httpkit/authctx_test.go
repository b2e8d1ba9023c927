package httpkit

import (
	"context"
	"net/http"
	"testing"

	pnet "ralcore/internal/platform/net"
)

// req helper
func newReq() *http.Request {
	req, _ := http.NewRequest(http.MethodGet, "http://x.test/y", nil)
	return req
}

// anyValCtx returns a context that always yields a given value for any key
type anyValCtx struct {
	context.Context
	val any
}

func (c anyValCtx) Value(key any) any {
	return c.val
}

func TestUser_SuccessAndError(t *testing.T) {
	// success: force any ctx.Value(...) to return a non-empty user id
	{
		ctx := anyValCtx{Context: context.Background(), val: "u-123"}
		got, err := User(newReq().WithContext(ctx))
		if err != nil {
			t.Fatalf("User unexpected error: %v", err)
		}
		if got != "u-123" {
			t.Fatalf("User got %q want %q", got, "u-123")
		}
	}

	// error: empty/default context
	{
		_, err := User(newReq())
		if err == nil {
			t.Fatal("User expected error, got nil")
		}
		if got := err.Error(); got != "missing user identity" {
			t.Fatalf("User error = %q want %q", got, "missing user identity")
		}
	}
}

func TestMustUser_SuccessAndPanic(t *testing.T) {
	// success
	{
		ctx := anyValCtx{Context: context.Background(), val: "ok-user"}
		if got := MustUser(newReq().WithContext(ctx)); got != "ok-user" {
			t.Fatalf("MustUser got %q want %q", got, "ok-user")
		}
	}
	// panic
	{
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("MustUser expected panic, got none")
			}
		}()
		_ = MustUser(newReq())
	}
}

func TestEffectiveUser_Precedence(t *testing.T) {
	// header identity wins over body
	{
		req := newReq()
		req = req.WithContext(pnet.WithUser(req.Context(), "header-user"))
		if got := EffectiveUser(req, "body-user"); got != "header-user" {
			t.Fatalf("EffectiveUser got %q want %q", got, "header-user")
		}
	}

	// anonymous context falls back to body id
	{
		req := newReq()
		req = req.WithContext(pnet.WithUser(req.Context(), AnonymousUser))
		if got := EffectiveUser(req, "body-user"); got != "body-user" {
			t.Fatalf("EffectiveUser got %q want %q", got, "body-user")
		}
	}

	// neither yields anonymous
	{
		if got := EffectiveUser(newReq(), ""); got != AnonymousUser {
			t.Fatalf("EffectiveUser got %q want %q", got, AnonymousUser)
		}
	}
}

func TestIdentifiedUser_RejectsAnonymous(t *testing.T) {
	req := newReq()
	req = req.WithContext(pnet.WithUser(req.Context(), AnonymousUser))
	if _, err := IdentifiedUser(req); err == nil {
		t.Fatal("IdentifiedUser expected error for anonymous caller")
	}

	req2 := newReq()
	req2 = req2.WithContext(pnet.WithUser(req2.Context(), "alice"))
	got, err := IdentifiedUser(req2)
	if err != nil {
		t.Fatalf("IdentifiedUser unexpected error: %v", err)
	}
	if got != "alice" {
		t.Fatalf("IdentifiedUser got %q want %q", got, "alice")
	}
}
