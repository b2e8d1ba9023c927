package middleware

import (
	"net/http"

	"ralcore/internal/platform/logger"
	pnet "ralcore/internal/platform/net"
)

// IdentityPort resolves the calling user from a request
type IdentityPort interface {
	// Parse returns a user id from the request or an error
	Parse(r *http.Request) (userID string, err error)
}

// Identity attaches the resolved user id to the request context.
// A nil port passes requests through untouched.
func Identity(p IdentityPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			uid, err := p.Parse(r)
			if err != nil {
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			ctx := pnet.WithUser(r.Context(), uid)
			ctx = logger.WithRequest(ctx, pnet.RequestID(ctx), uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
