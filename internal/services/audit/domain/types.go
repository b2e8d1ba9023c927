// Package domain defines the augmentation audit event model
package domain

import (
	"context"
	"time"
)

// Event is one append-only augmentation record
type Event struct {
	At              time.Time `json:"at"`
	RequestID       string    `json:"request_id"`
	UserHash        string    `json:"user_hash"`
	Surface         string    `json:"surface"` // universal or prompt
	Provider        string    `json:"provider"`
	Included        int       `json:"included"`
	Excluded        int       `json:"excluded"`
	ContextTokens   int       `json:"context_tokens"`
	FastPathMillis  float64   `json:"fast_path_millis"`
	SlowPathMillis  float64   `json:"slow_path_millis"`
	SlowPathTimeout bool      `json:"slow_path_timeout"`
}

// RecorderPort writes events; implementations must never fail the
// request path
type RecorderPort interface {
	Record(ctx context.Context, e Event)
}
