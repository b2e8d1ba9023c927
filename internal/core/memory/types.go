// Package memory defines the context record model and the pure policy
// around its lifetime: TTLs, confidence decay, and conflict resolution.
package memory

import "time"

// Type partitions context records by what they describe
type Type string

const (
	// TypeTemporal is clock and calendar context
	TypeTemporal Type = "temporal"
	// TypeSpatial is location and locale context
	TypeSpatial Type = "spatial"
	// TypeSituational is task and conversation context
	TypeSituational Type = "situational"
	// TypeMeta is preference and profile context
	TypeMeta Type = "meta"
)

// Types lists all record types in a stable order
func Types() []Type {
	return []Type{TypeTemporal, TypeSpatial, TypeSituational, TypeMeta}
}

// Valid reports whether t is a known record type
func (t Type) Valid() bool {
	switch t {
	case TypeTemporal, TypeSpatial, TypeSituational, TypeMeta:
		return true
	}
	return false
}

// Tier selects a lifetime policy for a record
type Tier string

const (
	// TierLongTerm records persist and never decay
	TierLongTerm Tier = "long_term"
	// TierShortTerm records persist but decay once older than a threshold
	TierShortTerm Tier = "short_term"
	// TierEphemeral records expire outright at ExpiresAt
	TierEphemeral Tier = "ephemeral"
)

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	switch t {
	case TierLongTerm, TierShortTerm, TierEphemeral:
		return true
	}
	return false
}

// Source ranks where a value came from
type Source string

const (
	// SourceUserExplicit is a value the user stated outright
	SourceUserExplicit Source = "user_explicit"
	// SourceUserImplicit is a value inferred from user behavior
	SourceUserImplicit Source = "user_implicit"
	// SourceAPI is a value from an integrated service
	SourceAPI Source = "api"
	// SourceSensor is a value from device sensors
	SourceSensor Source = "sensor"
	// SourceInference is a model-derived value
	SourceInference Source = "inference"
	// SourceHistorical is a value carried over from old state
	SourceHistorical Source = "historical"
	// SourceUserCorrection marks a user fixing a wrong value
	SourceUserCorrection Source = "user_correction"
	// SourceRollback marks a value restored from version history
	SourceRollback Source = "rollback"
)

// DriftStatus describes how much a record is still to be trusted
type DriftStatus string

const (
	// DriftStable means the record is current
	DriftStable DriftStatus = "stable"
	// DriftDrifting means signals suggest the record is aging
	DriftDrifting DriftStatus = "drifting"
	// DriftConflicting means sources actively disagree
	DriftConflicting DriftStatus = "conflicting"
	// DriftStale means the record is past its expected lifetime
	DriftStale DriftStatus = "stale"
)

// Record is one piece of context a user has accumulated
type Record struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Type   Type   `json:"type"`
	Tier   Tier   `json:"tier"`
	Key    string `json:"key"`

	Value          any            `json:"value"`
	Interpretation map[string]any `json:"interpretation,omitempty"`

	Confidence    float64        `json:"confidence"`
	Source        Source         `json:"source"`
	SourceDetails map[string]any `json:"source_details,omitempty"`
	DriftStatus   DriftStatus    `json:"drift_status"`

	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastConfirmedAt *time.Time `json:"last_confirmed_at,omitempty"`
	CorrectionCount int        `json:"correction_count"`
	SessionID       string     `json:"session_id,omitempty"`

	Version   int       `json:"version"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether r is past its expiry at the given instant
func (r Record) Expired(at time.Time) bool {
	return r.ExpiresAt != nil && at.After(*r.ExpiresAt)
}

// Age is the time since the record was last written
func (r Record) Age(at time.Time) time.Duration {
	return at.Sub(r.UpdatedAt)
}

// Engine-wide defaults; env config may override the service-level copies
const (
	// DefaultConfidenceThreshold gates inclusion decisions
	DefaultConfidenceThreshold = 0.5
	// HighConfidenceThreshold marks values safe to state as facts
	HighConfidenceThreshold = 0.8
	// DefaultDecayHours is how old a short-term record gets before decay
	DefaultDecayHours = 24
	// DecayMultiplier shrinks confidence per decay sweep
	DecayMultiplier = 0.95
	// ConfidenceFloor is the hard lower bound after any decay
	ConfidenceFloor = 0.1
	// DefaultEphemeralTTL is the lifetime of ephemeral records
	DefaultEphemeralTTL = 3600 * time.Second
	// ConfirmationBoost is added to confidence when the user confirms
	ConfirmationBoost = 0.2
	// CorrectionPenalty is taken from confidence per user correction
	CorrectionPenalty = 0.2
	// CorrectionLimit is how many corrections flip a record to conflicting
	CorrectionLimit = 3
	// ConflictingConfidenceCap bounds confidence once a record is
	// conflicting; a value the user keeps correcting stays in the
	// clarify band no matter where it started
	ConflictingConfidenceCap = 0.25
)

// ClampConfidence bounds v to [0,1]
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Correct returns the confidence after one user correction has been
// recorded, given the new correction count
func Correct(confidence float64, count int) float64 {
	confidence = ClampConfidence(confidence - CorrectionPenalty)
	if count >= CorrectionLimit && confidence > ConflictingConfidenceCap {
		confidence = ConflictingConfidenceCap
	}
	return confidence
}

// Confirm returns the confidence after the user confirmed the value
func Confirm(confidence float64) float64 {
	return ClampConfidence(confidence + ConfirmationBoost)
}
