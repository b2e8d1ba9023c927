// Package http provides http transport for drift status
package http

import (
	stdhttp "net/http"

	"ralcore/internal/modkit/httpkit"
	pnet "ralcore/internal/platform/net"
	svc "ralcore/internal/services/api/drift/service"
)

// Register mounts drift endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.Get(r, "/status", h.status)
}

type handlers struct{ svc svc.Service }

// @Summary Drift status for the caller's stored context
// @Tags Drift
// @Produce json
// @Success 200 {object} domain.StatusOutput "ok"
// @Router /drift/status [get]
func (h *handlers) status(r *stdhttp.Request) (any, error) {
	return h.svc.Status(r.Context(), pnet.UserID(r.Context()))
}
