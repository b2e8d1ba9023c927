// Package domain defines the drift status API types
package domain

import (
	"time"

	"ralcore/internal/core/drift"
)

// TypeStatus is the drift verdict for one context type
type TypeStatus struct {
	Status         string     `json:"status"` // fresh, stale or unknown
	DriftScore     float64    `json:"drift_score"`
	LastConfirmed  *time.Time `json:"last_confirmed,omitempty"`
	Recommendation string     `json:"recommendation,omitempty"`
}

// StatusOutput is the full drift picture for a user
type StatusOutput struct {
	Overall         string                `json:"overall"` // healthy, needs_refresh or stale
	DriftScore      float64               `json:"drift_score"`
	Health          float64               `json:"health"`
	Types           map[string]TypeStatus `json:"types"`
	Signals         []drift.Signal        `json:"signals,omitempty"`
	Recommendations []string              `json:"recommendations,omitempty"`
	CheckedAt       time.Time             `json:"checked_at"`
}
