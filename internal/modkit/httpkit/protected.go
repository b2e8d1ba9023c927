package httpkit

import (
	"net/http"

	perrs "ralcore/internal/platform/errors"
	phttp "ralcore/internal/platform/net/http"
	pnet "ralcore/internal/platform/net"
)

// Protected groups routes that require an identified (non anonymous) user.
// Anonymous callers receive the mapped unauthorized envelope.
func Protected(r Router, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(requireIdentified)
		fn(gr)
	})
}

func requireIdentified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := pnet.UserID(r.Context())
		if uid == "" || uid == AnonymousUser {
			status, body := pnet.Error(
				perrs.Unauthorizedf("user identity required"),
				pnet.RequestID(r.Context()),
			)
			phttp.JSON(w, status, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}
