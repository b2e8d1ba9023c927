package httpkit

import (
	"net/http"

	perrs "ralcore/internal/platform/errors"
	pnet "ralcore/internal/platform/net"
)

// User returns the user id from the request context
func User(r *http.Request) (string, error) {
	uid := pnet.UserID(r.Context())
	if uid == "" {
		return "", perrs.Unauthorizedf("missing user identity")
	}
	return uid, nil
}

// MustUser returns the user id or panics
// only use on routes behind the identity middleware
func MustUser(r *http.Request) string {
	uid, err := User(r)
	if err != nil {
		panic(err)
	}
	return uid
}

// EffectiveUser resolves the acting user for a request.
// The identity header wins over a body supplied id; with neither
// the anonymous identity applies.
func EffectiveUser(r *http.Request, bodyUserID string) string {
	uid := pnet.UserID(r.Context())
	if uid != "" && uid != AnonymousUser {
		return uid
	}
	if bodyUserID != "" {
		return bodyUserID
	}
	return AnonymousUser
}

// IdentifiedUser returns the user id, rejecting anonymous callers.
// Per-user state endpoints need a real identity to key on.
func IdentifiedUser(r *http.Request) (string, error) {
	uid, err := User(r)
	if err != nil {
		return "", err
	}
	if uid == AnonymousUser {
		return "", perrs.Unauthorizedf("user identity required")
	}
	return uid, nil
}
