package memory

import (
	"math"
	"time"
)

// Curve names a confidence decay shape
type Curve string

const (
	// CurveLinear drops a fixed amount per hour
	CurveLinear Curve = "linear"
	// CurveExponential halves smoothly over hours
	CurveExponential Curve = "exponential"
	// CurveStep drops in six-hour steps
	CurveStep Curve = "step"
	// CurveNone leaves confidence alone (session-scoped data)
	CurveNone Curve = "none"
)

// TTLPolicy is the per-type lifetime contract
type TTLPolicy struct {
	Default time.Duration
	Min     time.Duration
	Max     time.Duration
	Curve   Curve
	// RefreshExtension is added to the deadline when the record is read
	RefreshExtension time.Duration
	// SessionScoped records have no deadline until the session ends
	SessionScoped bool
}

var ttlPolicies = map[Type]TTLPolicy{
	TypeTemporal: {
		Default: 60 * time.Second,
		Min:     30 * time.Second,
		Max:     300 * time.Second,
		Curve:   CurveStep,
	},
	TypeSpatial: {
		Default:          1800 * time.Second,
		Min:              300 * time.Second,
		Max:              7200 * time.Second,
		Curve:            CurveLinear,
		RefreshExtension: 300 * time.Second,
	},
	TypeSituational: {
		Curve:         CurveNone,
		SessionScoped: true,
	},
	TypeMeta: {
		Default:          86400 * time.Second,
		Min:              3600 * time.Second,
		Max:              604800 * time.Second,
		Curve:            CurveExponential,
		RefreshExtension: 3600 * time.Second,
	},
}

// PolicyFor returns the lifetime policy for a record type
func PolicyFor(t Type) TTLPolicy { return ttlPolicies[t] }

// TTLFor scales the default TTL by confidence and clamps into the
// policy's bounds; session-scoped types get no deadline
func TTLFor(t Type, confidence float64) time.Duration {
	p := ttlPolicies[t]
	if p.SessionScoped || p.Default == 0 {
		return 0
	}
	ttl := time.Duration(float64(p.Default) * ClampConfidence(confidence))
	if ttl < p.Min {
		return p.Min
	}
	if ttl > p.Max {
		return p.Max
	}
	return ttl
}

// Decay applies a curve to confidence given record age, floored so a
// record never decays into worthlessness
func Decay(curve Curve, confidence float64, age time.Duration) float64 {
	hours := age.Hours()
	if hours <= 0 {
		return ClampConfidence(confidence)
	}
	var out float64
	switch curve {
	case CurveLinear:
		out = confidence - 0.1*hours
	case CurveExponential:
		out = confidence * math.Exp(-0.1*hours)
	case CurveStep:
		out = confidence * math.Pow(0.7, hours/6)
	default:
		return ClampConfidence(confidence)
	}
	if out < ConfidenceFloor {
		return ConfidenceFloor
	}
	return ClampConfidence(out)
}

// DecayRecord applies r's type curve to its stored confidence at the
// given instant without mutating r
func DecayRecord(r Record, at time.Time) float64 {
	if r.Tier == TierLongTerm {
		return r.Confidence
	}
	return Decay(ttlPolicies[r.Type].Curve, r.Confidence, r.Age(at))
}
