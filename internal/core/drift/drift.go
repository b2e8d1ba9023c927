// Package drift inspects a user's context records for signals that they
// no longer reflect reality: staleness, repeated corrections, low
// confidence, and outright cross-record conflicts.
package drift

import (
	"fmt"
	"sort"
	"time"

	"ralcore/internal/core/memory"
)

// Kind names a drift signal family
type Kind string

const (
	// KindStaleness fires when a record outlives its stale window
	KindStaleness Kind = "staleness"
	// KindCorrectionPattern fires when the user keeps correcting a record
	KindCorrectionPattern Kind = "correction_pattern"
	// KindBehavioralMismatch fires when confidence has sunk too low
	KindBehavioralMismatch Kind = "behavioral_mismatch"
	// KindConflict fires when active records disagree with each other
	KindConflict Kind = "conflict"
)

// Signal is one detected drift indicator
type Signal struct {
	Kind              Kind      `json:"kind"`
	ContextID         string    `json:"context_id,omitempty"`
	Key               string    `json:"key,omitempty"`
	Severity          float64   `json:"severity"`
	Description       string    `json:"description"`
	DetectedAt        time.Time `json:"detected_at"`
	RecommendedAction string    `json:"recommended_action"`
}

// Report aggregates signals into a health verdict
type Report struct {
	Health          float64      `json:"health"`
	Counts          map[Kind]int `json:"counts"`
	Recommendations []string     `json:"recommendations,omitempty"`
}

// Options tune detection thresholds
type Options struct {
	StaleWindow        time.Duration
	LongTermMultiplier float64
	LowConfidence      float64
	CriticalConfidence float64
	CorrectionLimit    int
}

// DefaultOptions returns the standard thresholds
func DefaultOptions() Options {
	return Options{
		StaleWindow:        24 * time.Hour,
		LongTermMultiplier: 7,
		LowConfidence:      0.4,
		CriticalConfidence: 0.2,
		CorrectionLimit:    3,
	}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.StaleWindow <= 0 {
		o.StaleWindow = d.StaleWindow
	}
	if o.LongTermMultiplier <= 0 {
		o.LongTermMultiplier = d.LongTermMultiplier
	}
	if o.LowConfidence <= 0 {
		o.LowConfidence = d.LowConfidence
	}
	if o.CriticalConfidence <= 0 {
		o.CriticalConfidence = d.CriticalConfidence
	}
	if o.CorrectionLimit <= 0 {
		o.CorrectionLimit = d.CorrectionLimit
	}
	return o
}

func (o Options) windowFor(r memory.Record) time.Duration {
	if r.Tier == memory.TierLongTerm {
		return time.Duration(float64(o.StaleWindow) * o.LongTermMultiplier)
	}
	return o.StaleWindow
}

// Detect scans records and emits all drift signals found at the given
// instant; it never mutates its inputs
func Detect(records []memory.Record, at time.Time, opts Options) []Signal {
	opts = opts.normalize()
	var out []Signal

	for _, r := range records {
		if !r.IsActive {
			continue
		}
		out = append(out, perRecordSignals(r, at, opts)...)
	}
	out = append(out, conflictSignals(records, at)...)
	return out
}

func perRecordSignals(r memory.Record, at time.Time, opts Options) []Signal {
	var out []Signal

	window := opts.windowFor(r)
	if age := r.Age(at); age > window {
		overshoot := float64(age-window) / float64(window)
		if overshoot > 1 {
			overshoot = 1
		}
		out = append(out, Signal{
			Kind:              KindStaleness,
			ContextID:         r.ID,
			Key:               r.Key,
			Severity:          overshoot,
			Description:       fmt.Sprintf("record %q last written %.1fh ago (window %.0fh)", r.Key, age.Hours(), window.Hours()),
			DetectedAt:        at,
			RecommendedAction: "confirm",
		})
	}

	if r.CorrectionCount >= opts.CorrectionLimit {
		sev := float64(r.CorrectionCount) * 0.2
		if sev > 1 {
			sev = 1
		}
		out = append(out, Signal{
			Kind:              KindCorrectionPattern,
			ContextID:         r.ID,
			Key:               r.Key,
			Severity:          sev,
			Description:       fmt.Sprintf("record %q corrected %d times", r.Key, r.CorrectionCount),
			DetectedAt:        at,
			RecommendedAction: "review",
		})
	}

	if r.Confidence < opts.LowConfidence {
		action := "observe"
		if r.Confidence < opts.CriticalConfidence {
			action = "refresh"
		}
		sev := 1 - r.Confidence/opts.LowConfidence
		out = append(out, Signal{
			Kind:              KindBehavioralMismatch,
			ContextID:         r.ID,
			Key:               r.Key,
			Severity:          memory.ClampConfidence(sev),
			Description:       fmt.Sprintf("record %q confidence %.2f below %.2f", r.Key, r.Confidence, opts.LowConfidence),
			DetectedAt:        at,
			RecommendedAction: action,
		})
	}
	return out
}

// conflictSignals looks for active records of the same type asserting
// different values for fields that should agree
func conflictSignals(records []memory.Record, at time.Time) []Signal {
	tzSeen := map[string][]string{}
	countrySeen := map[string][]string{}

	for _, r := range records {
		if !r.IsActive {
			continue
		}
		value, ok := r.Value.(map[string]any)
		if !ok {
			continue
		}
		switch r.Type {
		case memory.TypeTemporal:
			if tz, ok := value["timezone"].(string); ok && tz != "" {
				tzSeen[tz] = append(tzSeen[tz], r.ID)
			}
		case memory.TypeSpatial:
			if c, ok := value["country"].(string); ok && c != "" {
				countrySeen[c] = append(countrySeen[c], r.ID)
			}
		}
	}

	var out []Signal
	if len(tzSeen) > 1 {
		out = append(out, Signal{
			Kind:              KindConflict,
			Key:               "timezone",
			Severity:          0.8,
			Description:       fmt.Sprintf("%d active temporal records disagree on timezone (%s)", countIDs(tzSeen), joinKeys(tzSeen)),
			DetectedAt:        at,
			RecommendedAction: "resolve",
		})
	}
	if len(countrySeen) > 1 {
		out = append(out, Signal{
			Kind:              KindConflict,
			Key:               "country",
			Severity:          0.7,
			Description:       fmt.Sprintf("%d active spatial records disagree on country (%s)", countIDs(countrySeen), joinKeys(countrySeen)),
			DetectedAt:        at,
			RecommendedAction: "resolve",
		})
	}
	return out
}

func countIDs(m map[string][]string) int {
	n := 0
	for _, ids := range m {
		n += len(ids)
	}
	return n
}

func joinKeys(m map[string][]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k
	}
	return out
}

// Touches reports whether the signal implicates the record. Conflict
// signals carry no record id; they apply to the type their key belongs
// to and nothing else.
func (s Signal) Touches(r memory.Record) bool {
	if s.ContextID != "" {
		return s.ContextID == r.ID
	}
	if s.Kind != KindConflict {
		return false
	}
	switch s.Key {
	case "timezone":
		return r.Type == memory.TypeTemporal
	case "country":
		return r.Type == memory.TypeSpatial
	}
	return false
}

// UpdateStatus derives the drift status a record should move to given
// the signals that reference it; callers persist the change
func UpdateStatus(r memory.Record, signals []Signal) memory.DriftStatus {
	var matched bool
	var maxStale float64
	for _, s := range signals {
		if !s.Touches(r) {
			continue
		}
		matched = true
		switch s.Kind {
		case KindConflict, KindCorrectionPattern:
			return memory.DriftConflicting
		case KindStaleness:
			if s.Severity > maxStale {
				maxStale = s.Severity
			}
		}
	}
	switch {
	case maxStale > 0.7:
		return memory.DriftStale
	case matched:
		return memory.DriftDrifting
	default:
		return memory.DriftStable
	}
}

// signal deduction weights per kind
var healthWeights = map[Kind]float64{
	KindConflict:           0.30,
	KindCorrectionPattern:  0.20,
	KindStaleness:          0.15,
	KindBehavioralMismatch: 0.10,
}

// BuildReport scores overall context health from records and signals
func BuildReport(records []memory.Record, signals []Signal) Report {
	health := 1.0
	counts := map[Kind]int{}
	recs := map[string]bool{}

	for _, s := range signals {
		counts[s.Kind]++
		w, ok := healthWeights[s.Kind]
		if !ok {
			w = 0.10
		}
		health -= w * s.Severity
		if s.RecommendedAction != "" {
			recs[s.RecommendedAction] = true
		}
	}

	if n := len(records); n > 0 {
		var sum float64
		for _, r := range records {
			sum += r.Confidence
		}
		health *= 0.5 + 0.5*(sum/float64(n))
	}
	if health < 0 {
		health = 0
	}
	if health > 1 {
		health = 1
	}

	out := Report{Health: health, Counts: counts}
	for _, a := range []string{"resolve", "refresh", "review", "confirm", "observe"} {
		if recs[a] {
			out.Recommendations = append(out.Recommendations, a)
		}
	}
	return out
}

// ShouldRefresh advises whether a record is too shaky to use as-is
func ShouldRefresh(r memory.Record, at time.Time, opts Options) bool {
	opts = opts.normalize()
	if r.Expired(at) {
		return true
	}
	if r.Age(at) > 2*opts.windowFor(r) {
		return true
	}
	if r.DriftStatus == memory.DriftConflicting {
		return true
	}
	if r.Confidence < opts.CriticalConfidence {
		return true
	}
	if r.DriftStatus == memory.DriftStale && r.Confidence < 0.7 {
		return true
	}
	return false
}
