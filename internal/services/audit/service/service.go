// Package service writes augmentation audit events to clickhouse
package service

import (
	"context"

	"ralcore/internal/core/privacy"
	"ralcore/internal/platform/logger"
	"ralcore/internal/platform/store"
	"ralcore/internal/services/audit/domain"
)

// Table is the append-only event stream
const Table = "augment_events"

// columns, positional, must match the table DDL
// (at, request_id, user_hash, surface, provider, included, excluded,
// context_tokens, fast_path_millis, slow_path_millis, slow_path_timeout)

// Svc records events best-effort; a nil clickhouse seam downgrades to
// a no-op so the API keeps working without the sink
type Svc struct {
	ch   store.Clickhouse
	anon *privacy.Anonymizer
	log  *logger.Logger
}

// New constructs the audit recorder
func New(ch store.Clickhouse, anon *privacy.Anonymizer) *Svc {
	if anon == nil {
		anon = privacy.NewAnonymizer("")
	}
	return &Svc{ch: ch, anon: anon, log: logger.Named("audit")}
}

// HashUser anonymizes a raw user id for the event stream
func (s *Svc) HashUser(userID string) string {
	if userID == "" {
		return ""
	}
	return s.anon.HashUserID(userID)
}

// Record implements domain.RecorderPort; failures log and are dropped
func (s *Svc) Record(ctx context.Context, e domain.Event) {
	if s == nil || s.ch == nil {
		return
	}
	row := []any{
		e.At, e.RequestID, e.UserHash, e.Surface, e.Provider,
		uint32(e.Included), uint32(e.Excluded), uint32(e.ContextTokens),
		e.FastPathMillis, e.SlowPathMillis, boolToUint8(e.SlowPathTimeout),
	}
	if err := s.ch.Insert(ctx, Table, [][]any{row}); err != nil {
		s.log.Warn().Err(err).Str("request_id", e.RequestID).Msg("audit: event dropped")
	}
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
