// Package domain defines the prompt augmentation API types
package domain

import "ralcore/internal/core/compose"

// AugmentInput is a prompt augmentation request with explicit control
// over which context types may be injected
type AugmentInput struct {
	Prompt   string `json:"prompt" validate:"required"`
	Provider string `json:"provider,omitempty"`
	// InjectionStyle is system, prefix, suffix or raw
	InjectionStyle string `json:"injection_style,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	Locale         string `json:"locale,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
	// Include forces context types in regardless of keyword detection
	Include []string `json:"include,omitempty"`
}

// TypeDecision explains whether one context type was injected
type TypeDecision struct {
	Type     string `json:"type"`
	Included bool   `json:"included"`
	Reason   string `json:"reason"`
}

// AugmentOutput is the augmented prompt with full decision detail
type AugmentOutput struct {
	Prompt       string             `json:"prompt"`
	SystemPrompt string             `json:"system_prompt,omitempty"`
	Context      string             `json:"context,omitempty"`
	Decisions    []TypeDecision     `json:"decisions"`
	Elements     []compose.Decision `json:"element_decisions,omitempty"`
	Metadata     compose.Metadata   `json:"metadata"`
	TokensUsed   int                `json:"context_tokens"`
	Truncated    bool               `json:"truncated,omitempty"`
	RequestID    string             `json:"request_id"`
}
