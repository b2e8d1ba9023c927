// Package http provides http transport for prompt augmentation
package http

import (
	stdhttp "net/http"

	"ralcore/internal/modkit/httpkit"
	pnet "ralcore/internal/platform/net"
	"ralcore/internal/services/api/prompt/domain"
	svc "ralcore/internal/services/api/prompt/service"
)

// Register mounts prompt endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.PostJSON[domain.AugmentInput](r, "/augment", h.augment)
}

type handlers struct{ svc svc.Service }

// @Summary Augment a prompt with decision detail
// @Tags Prompt
// @Accept json
// @Produce json
// @Param payload body domain.AugmentInput true "Prompt"
// @Success 200 {object} domain.AugmentOutput "ok"
// @Router /prompt/augment [post]
func (h *handlers) augment(r *stdhttp.Request, in domain.AugmentInput) (any, error) {
	return h.svc.Augment(r.Context(), pnet.UserID(r.Context()), in)
}
