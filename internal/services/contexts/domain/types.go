// Package domain defines the context memory service surface
package domain

import (
	"time"

	"ralcore/internal/core/memory"
)

// StoreInput creates or upserts one context record
type StoreInput struct {
	UserID         string         `json:"user_id"           validate:"required"`
	Type           memory.Type    `json:"type"              validate:"required"`
	Tier           memory.Tier    `json:"tier,omitempty"`
	Key            string         `json:"key"               validate:"required"`
	Value          any            `json:"value"             validate:"required"`
	Interpretation map[string]any `json:"interpretation,omitempty"`
	Confidence     float64        `json:"confidence,omitempty"`
	Source         memory.Source  `json:"source,omitempty"`
	SourceDetails  map[string]any `json:"source_details,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	// TTLSeconds overrides the ephemeral lifetime; ignored on other tiers
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// UpdateInput mutates an existing record and appends a version
type UpdateInput struct {
	ContextID      string         `json:"context_id"      validate:"required"`
	Value          any            `json:"value,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	Interpretation map[string]any `json:"interpretation,omitempty"`
	Source         memory.Source  `json:"source,omitempty"`
	ChangeReason   string         `json:"change_reason,omitempty"`
}

// ListFilter narrows List results
type ListFilter struct {
	UserID         string      `json:"user_id" validate:"required"`
	Type           memory.Type `json:"type,omitempty"`
	Tier           memory.Tier `json:"tier,omitempty"`
	SessionID      string      `json:"session_id,omitempty"`
	IncludeExpired bool        `json:"include_expired,omitempty"`
	Limit          int         `json:"limit,omitempty"`
}

// Version is one immutable history row for a context record
type Version struct {
	ContextID      string         `json:"context_id"`
	Version        int            `json:"version"`
	Value          any            `json:"value"`
	Interpretation map[string]any `json:"interpretation,omitempty"`
	Confidence     float64        `json:"confidence"`
	PreviousValue  any            `json:"previous_value,omitempty"`
	ChangedBy      string         `json:"changed_by"`
	ChangeReason   string         `json:"change_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Session is one conversation window for a user
type Session struct {
	SessionID      string         `json:"session_id"`
	UserID         string         `json:"user_id"`
	StartedAt      time.Time      `json:"started_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	ClientInfo     map[string]any `json:"client_info,omitempty"`
}

// User carries the per-user defaults and privacy switches the
// reasoners consult
type User struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id,omitempty"`
	ExternalID       string         `json:"external_id"`
	DisplayName      string         `json:"display_name,omitempty"`
	Timezone         string         `json:"timezone,omitempty"`
	Locale           string         `json:"locale,omitempty"`
	Country          string         `json:"country,omitempty"`
	AllowLocation    bool           `json:"allow_location"`
	AllowSituational bool           `json:"allow_situational"`
	Preferences      map[string]any `json:"preferences,omitempty"`
}

// DecaySweep reports one decay pass
type DecaySweep struct {
	Scanned int `json:"scanned"`
	Decayed int `json:"decayed"`
}
