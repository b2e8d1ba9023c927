// Package snapshot versions a user's context state with semver
// semantics: major for context shifts like a location change, minor
// for softer transitions, patch for everything else. Snapshots carry
// a content checksum so identical states hash identically regardless
// of map ordering.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// State is the snapshotted context, keyed by section
// (temporal, spatial, situational, meta)
type State map[string]any

// Version is a semantic context version
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion reads "1.2.3"
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version %q: want major.minor.patch", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("version %q: bad component %q", s, p)
		}
		nums[i] = n
	}
	return Version{nums[0], nums[1], nums[2]}, nil
}

// Bump names the magnitude of a version change
type Bump string

const (
	BumpNone  Bump = "none"
	BumpPatch Bump = "patch"
	BumpMinor Bump = "minor"
	BumpMajor Bump = "major"
)

// Next advances the version by the given bump
func (v Version) Next(b Bump) Version {
	switch b {
	case BumpMajor:
		return Version{v.Major + 1, 0, 0}
	case BumpMinor:
		return Version{v.Major, v.Minor + 1, 0}
	case BumpPatch:
		return Version{v.Major, v.Minor, v.Patch + 1}
	default:
		return v
	}
}

// Trigger names what caused a snapshot
type Trigger string

const (
	TriggerLocationChange   Trigger = "location_change"
	TriggerTimeTransition   Trigger = "time_transition"
	TriggerActivityChange   Trigger = "activity_change"
	TriggerSessionStart     Trigger = "session_start"
	TriggerSessionEnd       Trigger = "session_end"
	TriggerUserCorrection   Trigger = "user_correction"
	TriggerDriftDetected    Trigger = "drift_detected"
	TriggerConflictResolved Trigger = "conflict_resolved"
	TriggerManual           Trigger = "manual_snapshot"
	TriggerScheduled        Trigger = "scheduled"
)

// canonical sections hashed into the checksum
var checksumSections = []string{"temporal", "spatial", "situational", "meta"}

// Checksum hashes the canonical state; json.Marshal sorts map keys,
// so permuted inputs hash identically
func Checksum(s State) string {
	canonical := map[string]any{}
	for _, sec := range checksumSections {
		if v, ok := s[sec]; ok {
			canonical[sec] = v
		}
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:16]
}

// HaversineKm is the great-circle distance between two coordinates
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	toRad := math.Pi / 180

	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Change holds before and after values for one flattened key
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff is the flattened difference between two states
type Diff struct {
	Added    []string          `json:"added,omitempty"`
	Removed  []string          `json:"removed,omitempty"`
	Modified []string          `json:"modified,omitempty"`
	Changes  map[string]Change `json:"changes,omitempty"`
}

// Empty reports whether nothing changed
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Flatten turns nested maps into dot-joined leaf keys
func Flatten(s map[string]any) map[string]any {
	out := map[string]any{}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok && len(child) > 0 {
				walk(key, child)
				continue
			}
			out[key] = v
		}
	}
	walk("", s)
	return out
}

// Compare diffs two states on their flattened keys
func Compare(prev, next State) Diff {
	p := Flatten(prev)
	n := Flatten(next)
	d := Diff{Changes: map[string]Change{}}

	for k, pv := range p {
		nv, ok := n[k]
		if !ok {
			d.Removed = append(d.Removed, k)
			continue
		}
		if !reflect.DeepEqual(pv, nv) {
			d.Modified = append(d.Modified, k)
			d.Changes[k] = Change{Old: pv, New: nv}
		}
	}
	for k := range n {
		if _, ok := p[k]; !ok {
			d.Added = append(d.Added, k)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Modified)
	return d
}

// MajorShiftKm is how far a user must move before the shift counts
// as a new context rather than drift within the old one
const MajorShiftKm = 5.0

// Classification is the outcome of comparing two states
type Classification struct {
	Bump    Bump    `json:"bump"`
	Trigger Trigger `json:"trigger"`
	Reason  string  `json:"reason"`
}

// Classify decides how big a version bump the transition deserves
func Classify(prev, next State) Classification {
	if len(prev) == 0 {
		return Classification{BumpMajor, TriggerSessionStart, "initial snapshot"}
	}

	d := Compare(prev, next)
	if d.Empty() {
		return Classification{BumpNone, "", "no changes"}
	}

	if d.touches("spatial.city") || d.touches("spatial.region") {
		return Classification{BumpMajor, TriggerLocationChange, "location changed"}
	}
	if km, ok := movedKm(prev, next); ok && km > MajorShiftKm {
		return Classification{BumpMajor, TriggerLocationChange, fmt.Sprintf("moved %.1f km", km)}
	}
	if d.touches("temporal.day_of_week") || d.touches("temporal.time_of_day") {
		return Classification{BumpMinor, TriggerTimeTransition, "time context shifted"}
	}
	if d.touches("situational.current_task") || d.touches("situational.activity") {
		return Classification{BumpMinor, TriggerActivityChange, "activity changed"}
	}
	if d.touches("meta.drift_status") {
		if v, ok := Flatten(next)["meta.drift_status"].(string); ok && v == "conflicting" {
			return Classification{BumpMinor, TriggerDriftDetected, "drift detected"}
		}
	}
	return Classification{BumpPatch, TriggerManual, "state changed"}
}

func (d Diff) touches(key string) bool {
	for _, set := range [][]string{d.Added, d.Removed, d.Modified} {
		for _, k := range set {
			if k == key {
				return true
			}
		}
	}
	return false
}

func movedKm(prev, next State) (float64, bool) {
	p := Flatten(prev)
	n := Flatten(next)
	lat1, ok1 := toFloat(p["spatial.latitude"])
	lon1, ok2 := toFloat(p["spatial.longitude"])
	lat2, ok3 := toFloat(n["spatial.latitude"])
	lon2, ok4 := toFloat(n["spatial.longitude"])
	if !(ok1 && ok2 && ok3 && ok4) {
		return 0, false
	}
	return HaversineKm(lat1, lon1, lat2, lon2), true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
