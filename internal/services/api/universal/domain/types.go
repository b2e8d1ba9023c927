// Package domain defines the universal augmentation API types
package domain

import (
	"ralcore/internal/core/atomic"
	"ralcore/internal/core/compose"
	"ralcore/internal/core/telemetry"
)

// AugmentInput is a provider-agnostic augmentation request
type AugmentInput struct {
	Prompt string `json:"prompt" validate:"required"`
	// UserID is honored only when no identity header was supplied
	UserID    string `json:"user_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Format    string `json:"format,omitempty"` // system, prefix, suffix or raw
	Timezone  string `json:"timezone,omitempty"`
	Locale    string `json:"locale,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	// Device carries optional hardware telemetry; constraints shape the
	// instructions appended to the context
	Device *telemetry.Telemetry `json:"device,omitempty"`
}

// AugmentMetadata describes how the augmentation was produced
type AugmentMetadata struct {
	RequestID       string  `json:"request_id"`
	ContextVersion  string  `json:"context_version,omitempty"`
	Elements        int     `json:"elements_included"`
	Excluded        int     `json:"elements_excluded"`
	FastPathMillis  float64 `json:"fast_path_millis"`
	SlowPathMillis  float64 `json:"slow_path_millis,omitempty"`
	SlowPathTimeout bool    `json:"slow_path_timeout,omitempty"`
	Enriched        bool    `json:"enriched,omitempty"`
}

// AugmentOutput is the augmented prompt plus everything that went
// into it
type AugmentOutput struct {
	Prompt       string             `json:"prompt"`
	Atomic       atomic.Context     `json:"atomic_context"`
	SystemPrompt string             `json:"system_prompt,omitempty"`
	Context      string             `json:"context,omitempty"`
	Provider     string             `json:"provider"`
	Format       string             `json:"format"`
	Included     bool               `json:"context_included"`
	TokensUsed   int                `json:"context_tokens"`
	Decisions    []compose.Decision `json:"decisions,omitempty"`
	Metadata     AugmentMetadata    `json:"metadata"`
}

// ContextOutput is the fast-path context for a caller
type ContextOutput struct {
	Atomic atomic.Context `json:"context"`
	Prompt string         `json:"prompt_line,omitempty"`
}
