// Package http provides http transport for universal augmentation
package http

import (
	stdhttp "net/http"

	"ralcore/internal/modkit/httpkit"
	pnet "ralcore/internal/platform/net"
	"ralcore/internal/services/api/universal/domain"
	svc "ralcore/internal/services/api/universal/service"
)

// Register mounts universal endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.PostJSON[domain.AugmentInput](r, "/augment", h.augment)
	httpkit.Get(r, "/context", h.context)
}

type handlers struct{ svc svc.Service }

// @Summary Augment a prompt with composed context
// @Tags Universal
// @Accept json
// @Produce json
// @Param payload body domain.AugmentInput true "Prompt"
// @Success 200 {object} domain.AugmentOutput "ok"
// @Router /universal/augment [post]
func (h *handlers) augment(r *stdhttp.Request, in domain.AugmentInput) (any, error) {
	return h.svc.Augment(r.Context(), pnet.UserID(r.Context()), in)
}

// @Summary Fast-path context for the caller
// @Tags Universal
// @Produce json
// @Success 200 {object} domain.ContextOutput "ok"
// @Router /universal/context [get]
func (h *handlers) context(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	return h.svc.Context(r.Context(), q.Get("timezone"), q.Get("locale"))
}
