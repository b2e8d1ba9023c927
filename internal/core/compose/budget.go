package compose

import (
	"math"
	"sort"
	"strings"
)

// Token budget bounds for adaptive composition
const (
	MinContextTokens = 100
	MaxContextTokens = 1000
	MaxTotalTokens   = 4096
	ResponseReserve  = 500
)

// Budget allocates context tokens for a prompt of the given size:
// short prompts get the full window, long prompts get squeezed so
// the response still fits
func Budget(promptTokens int) int {
	var ratio float64
	switch {
	case promptTokens < 50:
		ratio = 1.0
	case promptTokens >= 500:
		ratio = 0.1
	default:
		ratio = 1.0 - (float64(promptTokens-50)/450)*0.9
	}

	allocated := MinContextTokens + int(math.Round(float64(MaxContextTokens-MinContextTokens)*ratio))
	if room := MaxTotalTokens - promptTokens - ResponseReserve; allocated > room {
		allocated = room
	}
	if allocated < 0 {
		allocated = 0
	}
	return allocated
}

// Strategy names how context gets fitted into the budget
type Strategy string

const (
	// StrategyNone passes everything through untouched
	StrategyNone Strategy = "none"
	// StrategyRankSelect keeps the best-ranked items that fit
	StrategyRankSelect Strategy = "rank_select"
	// StrategyDistill collapses everything into a one-line brief
	StrategyDistill Strategy = "distill"
)

// PickStrategy chooses based on how far over budget the context runs
func PickStrategy(contextTokens, budget int) Strategy {
	switch {
	case contextTokens <= budget:
		return StrategyNone
	case contextTokens <= 2*budget:
		return StrategyRankSelect
	default:
		return StrategyDistill
	}
}

// Item is one stored context entry considered for ranked selection
type Item struct {
	Key            string
	Value          string
	Interpretation string
	Confidence     float64
	Recency        float64 // 0..1, zero means unknown
	Frequency      float64 // 0..1, zero means unknown
	Tokens         int
}

func (it Item) tokens() int {
	if it.Tokens > 0 {
		return it.Tokens
	}
	return EstimateTokens(it.Key + ": " + it.Value)
}

func (it Item) line() string {
	if it.Interpretation != "" {
		return it.Interpretation
	}
	return it.Key + ": " + it.Value
}

// Similarity scores query relevance by keyword overlap against the
// item's key (signal side) and value; overlapping both sides scores
// highest
func Similarity(query string, it Item) float64 {
	qWords := wordSet(query)
	sigWords := wordSet(strings.NewReplacer("_", " ", ".", " ", "-", " ").Replace(it.Key))
	valWords := wordSet(it.Value)

	sig := overlap(qWords, sigWords)
	val := overlap(qWords, valWords)

	switch {
	case sig > 0 && val > 0:
		return minF(1.0, 0.5+float64(sig)*0.2+float64(val)*0.1)
	case sig > 0:
		return minF(0.7, 0.3+float64(sig)*0.2)
	case val > 0:
		return minF(0.6, 0.2+float64(val)*0.1)
	default:
		return 0.1
	}
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,:;!?\"'()")
		if len(w) > 1 {
			out[w] = true
		}
	}
	return out
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

// RankScore blends query similarity with recency, frequency and
// confidence; unknown recency and frequency take neutral defaults
func RankScore(query string, it Item) float64 {
	rec := it.Recency
	if rec == 0 {
		rec = 0.8
	}
	freq := it.Frequency
	if freq == 0 {
		freq = 0.5
	}
	return Similarity(query, it)*0.4 + rec*0.2 + freq*0.1 + it.Confidence*0.3
}

// BriefInputs feed the distilled one-line situation brief
type BriefInputs struct {
	Activity        string
	Location        string
	TimeDescription string
	Constraints     []string
}

// SituationBrief collapses context into one sentence pair; missing
// fields take generic fallbacks
func SituationBrief(in BriefInputs) (string, int) {
	activity := in.Activity
	if activity == "" {
		activity = "working"
	}
	location := in.Location
	if location == "" {
		location = "an unspecified location"
	}
	timeDesc := in.TimeDescription
	if timeDesc == "" {
		timeDesc = "the current time"
	}
	constraint := "no specific constraints"
	if len(in.Constraints) > 0 {
		cs := in.Constraints
		if len(cs) > 2 {
			cs = cs[:2]
		}
		constraint = strings.Join(cs, "; ")
	}

	text := "User is currently " + activity + " in " + location + " at " + timeDesc +
		". Previous context indicates " + constraint + "."
	return text, len(text) / 4
}

// constraint-bearing keys worth surfacing in a distilled brief
var constraintKeyParts = []string{"deadline", "preference", "communication_style"}

// ConstraintsFrom pulls constraint-like values out of stored items
func ConstraintsFrom(items []Item) []string {
	var out []string
	for _, it := range items {
		lower := strings.ToLower(it.Key)
		for _, part := range constraintKeyParts {
			if strings.Contains(lower, part) {
				out = append(out, it.Value)
				break
			}
		}
	}
	return out
}

// Plan is the outcome of adaptive composition
type Plan struct {
	Strategy Strategy `json:"strategy"`
	Budget   int      `json:"budget"`
	Included []string `json:"included"`
	Prompt   string   `json:"prompt"`
	Tokens   int      `json:"tokens"`
}

// PlanContext sizes the budget, picks a strategy and renders the
// context prompt for it
func PlanContext(query string, promptTokens int, items []Item, brief BriefInputs) Plan {
	budget := Budget(promptTokens)
	total := 0
	for _, it := range items {
		total += it.tokens()
	}

	p := Plan{Strategy: PickStrategy(total, budget), Budget: budget}
	switch p.Strategy {
	case StrategyNone:
		for _, it := range items {
			p.Included = append(p.Included, it.Key)
			p.Tokens += it.tokens()
		}
		p.Prompt = renderItems(items)
	case StrategyRankSelect:
		kept := rankSelect(query, items, budget)
		for _, it := range kept {
			p.Included = append(p.Included, it.Key)
			p.Tokens += it.tokens()
		}
		p.Prompt = renderItems(kept)
	case StrategyDistill:
		if len(brief.Constraints) == 0 {
			brief.Constraints = ConstraintsFrom(items)
		}
		text, tokens := SituationBrief(brief)
		p.Included = []string{"situation_brief"}
		p.Prompt = text
		p.Tokens = tokens
	}
	return p
}

func rankSelect(query string, items []Item, budget int) []Item {
	ranked := make([]Item, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return RankScore(query, ranked[i]) > RankScore(query, ranked[j])
	})

	var kept []Item
	used := 0
	for _, it := range ranked {
		if used+it.tokens() > budget {
			continue
		}
		kept = append(kept, it)
		used += it.tokens()
	}
	return kept
}

func renderItems(items []Item) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "- "+it.line())
	}
	return "Current user context:\n" + strings.Join(lines, "\n")
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
