// Package httpkit provides tiny HTTP helpers and adapters
package httpkit

import (
	"net/http"
	"strings"

	perrs "ralcore/internal/platform/errors"
)

const (
	// UserHeader carries the caller supplied user id
	UserHeader = "X-RAL-User"

	// AnonymousUser is the identity used when no user id is supplied
	AnonymousUser = "anonymous"

	maxUserIDLen = 128
)

// UserFunc validates or maps a raw header value to a user id
type UserFunc func(raw string) (string, error)

// HeaderPort implements middleware.IdentityPort by reading an identity header.
// Requests without the header resolve to the fallback identity.
type HeaderPort struct {
	header   string
	fallback string
	fn       UserFunc
}

// NewHeaderPort builds a HeaderPort
// empty header defaults to UserHeader, empty fallback to AnonymousUser
func NewHeaderPort(header, fallback string, fn UserFunc) *HeaderPort {
	if header == "" {
		header = UserHeader
	}
	if fallback == "" {
		fallback = AnonymousUser
	}
	return &HeaderPort{header: header, fallback: fallback, fn: fn}
}

// Parse extracts the user id from the identity header
// absent headers fall back; malformed values are rejected
func (p *HeaderPort) Parse(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(p.header))
	if raw == "" {
		return p.fallback, nil
	}
	if len(raw) > maxUserIDLen {
		return "", perrs.InvalidArgf("user id exceeds %d characters", maxUserIDLen)
	}
	if p.fn != nil {
		uid, err := p.fn(raw)
		if err != nil {
			return "", perrs.InvalidArgf("invalid user id")
		}
		return uid, nil
	}
	return raw, nil
}
