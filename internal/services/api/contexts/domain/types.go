// Package domain defines the context API surface types
package domain

import (
	"time"

	"ralcore/internal/core/atomic"
	"ralcore/internal/core/memory"
	"ralcore/internal/core/resolve"
	"ralcore/internal/core/snapshot"
	"ralcore/internal/core/spatial"
	"ralcore/internal/core/temporal"
	ctxdom "ralcore/internal/services/contexts/domain"
)

// ResolveInput asks for the interpreted context at an instant
type ResolveInput struct {
	// Timestamp is RFC 3339; empty means now
	Timestamp string `json:"timestamp,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Locale    string `json:"locale,omitempty"`
	// SessionStart is RFC 3339; enables midnight crossover handling
	SessionStart string `json:"session_start,omitempty"`
	// Query optionally carries text whose ambiguous references should
	// be resolved against the anchor
	Query string `json:"query,omitempty"`
}

// ResolvedReference is one quick-path binding
type ResolvedReference struct {
	Value       string  `json:"value"`
	WindowStart string  `json:"window_start,omitempty"`
	WindowEnd   string  `json:"window_end,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// ResolveOutput is the interpreted context plus quick-path references
type ResolveOutput struct {
	Timestamp  string                       `json:"timestamp"`
	Timezone   string                       `json:"timezone"`
	Temporal   temporal.Context             `json:"temporal"`
	Spatial    *spatial.Context             `json:"spatial,omitempty"`
	References map[string]ResolvedReference `json:"references"`
	Query      *resolve.Result              `json:"query,omitempty"`
	Confidence float64                      `json:"confidence"`
	Warnings   []string                     `json:"warnings,omitempty"`
}

// UpdateInput records a user-stated context value
type UpdateInput struct {
	Type  memory.Type `json:"type"            validate:"required"`
	Key   string      `json:"key"             validate:"required"`
	Value any         `json:"value"           validate:"required"`
	Tier  memory.Tier `json:"tier,omitempty"`
}

// SnapshotOutput is the live context state for a user
type SnapshotOutput struct {
	Atomic  atomic.Context             `json:"atomic"`
	Stored  map[string][]memory.Record `json:"stored"`
	Version string                     `json:"version,omitempty"`
	TakenAt time.Time                  `json:"taken_at"`
}

// MemoryInput narrows the memory listing
type MemoryInput struct {
	Type           memory.Type `json:"type,omitempty"`
	Tier           memory.Tier `json:"tier,omitempty"`
	SessionID      string      `json:"session_id,omitempty"`
	IncludeExpired bool        `json:"include_expired,omitempty"`
	Limit          int         `json:"limit,omitempty"`
}

// CorrectInput carries the corrected value for a record
type CorrectInput struct {
	Value any `json:"value" validate:"required"`
}

// RollbackInput names the version to reinstate
type RollbackInput struct {
	Version int `json:"version" validate:"required,min=1"`
}

// SessionInput opens a conversation window
type SessionInput struct {
	ClientInfo map[string]any `json:"client_info,omitempty"`
}

// RestoreInput names the snapshot version to restore
type RestoreInput struct {
	Version string `json:"version" validate:"required"`
}

// RestoreOutput is the snapshot produced by a restore
type RestoreOutput struct {
	Snapshot snapshot.Snapshot `json:"snapshot"`
	Restored string            `json:"restored_from"`
}

// Aliases so handlers need only this package
type (
	// Version is a stored context version row
	Version = ctxdom.Version
	// Session is a conversation window
	Session = ctxdom.Session
)
