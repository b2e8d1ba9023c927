package memory

import (
	"fmt"
	"reflect"
)

// Strategy selects how two records for the same key reconcile
type Strategy string

const (
	// StrategyUserWins prefers whichever side the user provided
	StrategyUserWins Strategy = "user_wins"
	// StrategySensorWins prefers fresh sensor or API data
	StrategySensorWins Strategy = "sensor_wins"
	// StrategyNewerWins prefers the most recently written side
	StrategyNewerWins Strategy = "newer_wins"
	// StrategyConfidenceWins prefers the more certain side
	StrategyConfidenceWins Strategy = "confidence_wins"
	// StrategyMerge combines both sides structurally
	StrategyMerge Strategy = "merge"
)

// DefaultStrategy applies when a caller states no preference
const DefaultStrategy = StrategyUserWins

// sourcePriority is the tiebreak ladder when a strategy cannot decide
var sourcePriority = map[Source]int{
	SourceUserExplicit:   100,
	SourceUserCorrection: 100,
	SourceUserImplicit:   80,
	SourceAPI:            60,
	SourceSensor:         50,
	SourceInference:      40,
	SourceHistorical:     20,
	SourceRollback:       60,
}

// SourcePriority exposes the ladder for diagnostics
func SourcePriority(s Source) int { return sourcePriority[s] }

// Resolution is the outcome of reconciling existing and incoming
type Resolution struct {
	Value         any      `json:"value"`
	Source        Source   `json:"source"`
	Confidence    float64  `json:"confidence"`
	Strategy      Strategy `json:"strategy"`
	IncomingWon   bool     `json:"incoming_won"`
	Merged        bool     `json:"merged"`
	Reason        string   `json:"reason"`
}

func userSide(s Source) bool {
	return s == SourceUserExplicit || s == SourceUserImplicit || s == SourceUserCorrection
}

func machineSide(s Source) bool {
	return s == SourceSensor || s == SourceAPI
}

// ResolveConflict reconciles two records for the same (user, type, key)
// under the given strategy, falling back to source priority on ties
func ResolveConflict(existing, incoming Record, strategy Strategy) Resolution {
	if strategy == "" {
		strategy = DefaultStrategy
	}

	switch strategy {
	case StrategyUserWins:
		if userSide(incoming.Source) && !userSide(existing.Source) {
			return pick(incoming, true, strategy, "user-provided value takes precedence")
		}
		if userSide(existing.Source) && !userSide(incoming.Source) {
			return pick(existing, false, strategy, "user-provided value takes precedence")
		}
	case StrategySensorWins:
		if machineSide(incoming.Source) && !machineSide(existing.Source) {
			return pick(incoming, true, strategy, "sensor data takes precedence")
		}
		if machineSide(existing.Source) && !machineSide(incoming.Source) {
			return pick(existing, false, strategy, "sensor data takes precedence")
		}
	case StrategyNewerWins:
		if incoming.UpdatedAt.After(existing.UpdatedAt) || incoming.UpdatedAt.Equal(existing.UpdatedAt) {
			return pick(incoming, true, strategy, "newer value accepted")
		}
		return pick(existing, false, strategy, "existing value is newer")
	case StrategyConfidenceWins:
		if incoming.Confidence > existing.Confidence {
			return pick(incoming, true, strategy,
				fmt.Sprintf("higher confidence (%.2f > %.2f)", incoming.Confidence, existing.Confidence))
		}
		if existing.Confidence > incoming.Confidence {
			return pick(existing, false, strategy,
				fmt.Sprintf("higher confidence (%.2f > %.2f)", existing.Confidence, incoming.Confidence))
		}
	case StrategyMerge:
		merged := MergeValues(existing.Value, incoming.Value)
		conf := existing.Confidence
		if incoming.Confidence > conf {
			conf = incoming.Confidence
		}
		return Resolution{
			Value:       merged,
			Source:      incoming.Source,
			Confidence:  conf,
			Strategy:    strategy,
			IncomingWon: true,
			Merged:      true,
			Reason:      "merged both sides",
		}
	}

	// strategy could not decide; fall back to the source ladder
	ep, ip := sourcePriority[existing.Source], sourcePriority[incoming.Source]
	if ip >= ep {
		return pick(incoming, true, strategy,
			fmt.Sprintf("source priority %s(%d) >= %s(%d)", incoming.Source, ip, existing.Source, ep))
	}
	return pick(existing, false, strategy,
		fmt.Sprintf("source priority %s(%d) > %s(%d)", existing.Source, ep, incoming.Source, ip))
}

func pick(r Record, incoming bool, strategy Strategy, reason string) Resolution {
	return Resolution{
		Value:       r.Value,
		Source:      r.Source,
		Confidence:  r.Confidence,
		Strategy:    strategy,
		IncomingWon: incoming,
		Reason:      reason,
	}
}

// MergeValues combines two JSON-shaped values: maps merge recursively,
// lists union with existing order first, scalars take the incoming side
func MergeValues(existing, incoming any) any {
	em, eok := existing.(map[string]any)
	im, iok := incoming.(map[string]any)
	if eok && iok {
		out := make(map[string]any, len(em)+len(im))
		for k, v := range em {
			out[k] = v
		}
		for k, v := range im {
			if cur, ok := out[k]; ok {
				out[k] = MergeValues(cur, v)
				continue
			}
			out[k] = v
		}
		return out
	}

	es, eok2 := existing.([]any)
	is, iok2 := incoming.([]any)
	if eok2 && iok2 {
		out := make([]any, 0, len(es)+len(is))
		out = append(out, es...)
		for _, v := range is {
			if !containsValue(out, v) {
				out = append(out, v)
			}
		}
		return out
	}

	return incoming
}

func containsValue(xs []any, v any) bool {
	for _, x := range xs {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}
