// Package http provides http transport for the context API
package http

import (
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ralcore/internal/core/memory"
	"ralcore/internal/modkit/httpkit"
	pnet "ralcore/internal/platform/net"
	"ralcore/internal/services/api/contexts/domain"
	svc "ralcore/internal/services/api/contexts/service"
)

// Register mounts context endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	// anchor interpretation and quick references
	httpkit.PostJSON[domain.ResolveInput](r, "/resolve", h.resolve)

	// live state
	httpkit.Get(r, "/snapshot", h.snapshot)

	// user stated values
	httpkit.PostJSON[domain.UpdateInput](r, "/update", h.update)

	// stored memory
	httpkit.Get(r, "/memory", h.memory)
	httpkit.Post(r, "/memory/{id}/confirm", h.confirm)
	httpkit.PostJSON[domain.CorrectInput](r, "/memory/{id}/correct", h.correct)
	httpkit.Get(r, "/memory/{id}/history", h.history)
	httpkit.PostJSON[domain.RollbackInput](r, "/memory/{id}/rollback", h.rollback)

	// sessions
	httpkit.PostJSON[domain.SessionInput](r, "/sessions", h.startSession)
	httpkit.Delete(r, "/sessions/{id}", h.endSession)

	// snapshot timeline
	httpkit.Get(r, "/snapshots", h.snapshots)
	httpkit.PostJSON[domain.RestoreInput](r, "/snapshots/restore", h.restore)
}

type handlers struct{ svc svc.Service }

// @Summary Resolve temporal and spatial references at an instant
// @Tags Context
// @Accept json
// @Produce json
// @Param payload body domain.ResolveInput true "Anchor"
// @Success 200 {object} domain.ResolveOutput "ok"
// @Router /context/resolve [post]
func (h *handlers) resolve(r *stdhttp.Request, in domain.ResolveInput) (any, error) {
	return h.svc.Resolve(r.Context(), pnet.UserID(r.Context()), in)
}

// @Summary Live context snapshot
// @Tags Context
// @Produce json
// @Success 200 {object} domain.SnapshotOutput "ok"
// @Router /context/snapshot [get]
func (h *handlers) snapshot(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	return h.svc.Snapshot(r.Context(), pnet.UserID(r.Context()), q.Get("timezone"), q.Get("locale"))
}

// @Summary Store a user stated context value
// @Tags Context
// @Accept json
// @Produce json
// @Param payload body domain.UpdateInput true "Value"
// @Success 200 {object} memory.Record "ok"
// @Router /context/update [post]
func (h *handlers) update(r *stdhttp.Request, in domain.UpdateInput) (any, error) {
	return h.svc.Update(r.Context(), pnet.UserID(r.Context()), in)
}

// @Summary List stored context memory
// @Tags Context
// @Produce json
// @Success 200 {array} memory.Record "ok"
// @Router /context/memory [get]
func (h *handlers) memory(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	return h.svc.Memory(r.Context(), pnet.UserID(r.Context()), domain.MemoryInput{
		Type:      memory.Type(q.Get("type")),
		Tier:      memory.Tier(q.Get("tier")),
		SessionID: q.Get("session_id"),
		Limit:     limit,
	})
}

// @Summary Confirm a stored value as still correct
// @Tags Context
// @Produce json
// @Success 200 {object} memory.Record "ok"
// @Router /context/memory/{id}/confirm [post]
func (h *handlers) confirm(r *stdhttp.Request) (any, error) {
	return h.svc.Confirm(r.Context(), chi.URLParam(r, "id"))
}

// @Summary Record a user correction
// @Tags Context
// @Accept json
// @Produce json
// @Param payload body domain.CorrectInput true "Corrected value"
// @Success 200 {object} memory.Record "ok"
// @Router /context/memory/{id}/correct [post]
func (h *handlers) correct(r *stdhttp.Request, in domain.CorrectInput) (any, error) {
	return h.svc.Correct(r.Context(), chi.URLParam(r, "id"), in.Value)
}

// @Summary Version history for a stored value
// @Tags Context
// @Produce json
// @Success 200 {array} domain.Version "ok"
// @Router /context/memory/{id}/history [get]
func (h *handlers) history(r *stdhttp.Request) (any, error) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return h.svc.HistoryOf(r.Context(), chi.URLParam(r, "id"), limit)
}

// @Summary Roll a stored value back to an older version
// @Tags Context
// @Accept json
// @Produce json
// @Param payload body domain.RollbackInput true "Target version"
// @Success 200 {object} memory.Record "ok"
// @Router /context/memory/{id}/rollback [post]
func (h *handlers) rollback(r *stdhttp.Request, in domain.RollbackInput) (any, error) {
	return h.svc.Rollback(r.Context(), chi.URLParam(r, "id"), in.Version)
}

// @Summary Open a conversation session
// @Tags Context
// @Accept json
// @Produce json
// @Param payload body domain.SessionInput true "Client info"
// @Success 200 {object} domain.Session "ok"
// @Router /context/sessions [post]
func (h *handlers) startSession(r *stdhttp.Request, in domain.SessionInput) (any, error) {
	return h.svc.StartSession(r.Context(), pnet.UserID(r.Context()), in)
}

// @Summary End a conversation session
// @Tags Context
// @Produce json
// @Success 200 {object} map[string]string "ok"
// @Router /context/sessions/{id} [delete]
func (h *handlers) endSession(r *stdhttp.Request) (any, error) {
	id := chi.URLParam(r, "id")
	if err := h.svc.EndSession(r.Context(), pnet.UserID(r.Context()), id); err != nil {
		return nil, err
	}
	return map[string]string{"session_id": id, "status": "ended"}, nil
}

// @Summary Snapshot timeline, newest first
// @Tags Context
// @Produce json
// @Success 200 {array} snapshot.Snapshot "ok"
// @Router /context/snapshots [get]
func (h *handlers) snapshots(r *stdhttp.Request) (any, error) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return h.svc.Snapshots(r.Context(), pnet.UserID(r.Context()), limit)
}

// @Summary Restore a snapshot version
// @Tags Context
// @Accept json
// @Produce json
// @Param payload body domain.RestoreInput true "Target version"
// @Success 200 {object} domain.RestoreOutput "ok"
// @Router /context/snapshots/restore [post]
func (h *handlers) restore(r *stdhttp.Request, in domain.RestoreInput) (any, error) {
	return h.svc.RestoreSnapshot(r.Context(), pnet.UserID(r.Context()), in)
}
