package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	pnet "ralcore/internal/platform/net"
	phttp "ralcore/internal/platform/net/http"
)

func TestProtected_WiresGuardAndRoutes(t *testing.T) {
	t.Parallel()

	// Reuse the shared fakeRouter defined in routes_test.go
	root := &fakeRouter{}

	var h phttp.Handler = nil

	Protected(root, func(gr Router) {
		gr.Get("/memory", h)
		gr.Post("/sessions", h)
	})

	if root.useCalls != 1 || root.lastMWLen != 1 {
		t.Fatalf("expected guard middleware applied once, got calls=%d len=%d", root.useCalls, root.lastMWLen)
	}

	want := []struct {
		verb string
		path string
	}{
		{"GET", "/memory"},
		{"POST", "/sessions"},
	}
	if len(root.verbCalls) != len(want) {
		t.Fatalf("expected %d verb calls, got %d: %#v", len(want), len(root.verbCalls), root.verbCalls)
	}
	for i, w := range want {
		if root.verbCalls[i].verb != w.verb || root.verbCalls[i].path != w.path {
			t.Fatalf("call %d mismatch: want %s %s, got %s %s",
				i, w.verb, w.path, root.verbCalls[i].verb, root.verbCalls[i].path)
		}
	}
}

func TestRequireIdentified_RejectsAnonymous(t *testing.T) {
	t.Parallel()

	var nextCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(pnet.WithUser(req.Context(), AnonymousUser))
	rr := httptest.NewRecorder()
	requireIdentified(next).ServeHTTP(rr, req)

	if nextCalled {
		t.Fatalf("next should not run for anonymous caller")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestRequireIdentified_RejectsMissing(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	requireIdentified(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestRequireIdentified_PassesRealUser(t *testing.T) {
	t.Parallel()

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = pnet.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(pnet.WithUser(req.Context(), "alice"))
	rr := httptest.NewRecorder()
	requireIdentified(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if seen != "alice" {
		t.Fatalf("expected user alice got %q", seen)
	}
}
