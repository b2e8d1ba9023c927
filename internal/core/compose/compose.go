// Package compose turns interpreted context into prompt-ready text.
// Each candidate element is scored for relevance against the user's
// query, weighted by confidence, and selected under a token budget;
// every decision is recorded so callers can explain what was injected
// and what was left out. The user's message itself is never rewritten.
package compose

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"ralcore/internal/core/memory"
	"ralcore/internal/core/situational"
	"ralcore/internal/core/spatial"
	"ralcore/internal/core/temporal"
)

// Relevance buckets a raw relevance score
type Relevance string

const (
	RelevanceCritical   Relevance = "critical"
	RelevanceHigh       Relevance = "high"
	RelevanceMedium     Relevance = "medium"
	RelevanceLow        Relevance = "low"
	RelevanceIrrelevant Relevance = "irrelevant"
)

// Weight is the inclusion multiplier for a relevance bucket
func (r Relevance) Weight() float64 {
	switch r {
	case RelevanceCritical:
		return 1.0
	case RelevanceHigh:
		return 0.8
	case RelevanceMedium:
		return 0.5
	case RelevanceLow:
		return 0.2
	default:
		return 0
	}
}

// RelevanceFor buckets a score in [0,1]
func RelevanceFor(score float64) Relevance {
	switch {
	case score >= 0.8:
		return RelevanceCritical
	case score >= 0.6:
		return RelevanceHigh
	case score >= 0.4:
		return RelevanceMedium
	case score >= 0.2:
		return RelevanceLow
	default:
		return RelevanceIrrelevant
	}
}

// Format names an output shape
type Format string

const (
	FormatSystemPrompt Format = "system_prompt"
	FormatContextBlock Format = "context_block"
	FormatInline       Format = "inline"
)

// Element is one candidate piece of context
type Element struct {
	Key            string    `json:"key"`
	Type           string    `json:"type"` // temporal, spatial or situational
	Content        any       `json:"content"`
	Interpretation string    `json:"interpretation,omitempty"`
	Relevance      Relevance `json:"relevance"`
	Confidence     float64   `json:"confidence"`
	Tokens         int       `json:"tokens"`
	Score          float64   `json:"score"`
}

// InclusionScore ranks elements for selection
func (e Element) InclusionScore() float64 {
	return e.Relevance.Weight() * e.Confidence
}

// Line renders the element for bullet output
func (e Element) Line() string {
	if e.Interpretation != "" {
		return e.Interpretation
	}
	return fmt.Sprintf("%s: %s", e.Key, renderContent(e.Content))
}

// Decision records why an element was or wasn't injected
type Decision struct {
	Element  string `json:"element"`
	Included bool   `json:"included"`
	Reason   string `json:"reason"`
}

// Metadata describes the composed output
type Metadata struct {
	ContextVersion         string   `json:"context_version"`
	ElementsIncluded       int      `json:"elements_included"`
	ContextTypes           []string `json:"context_types"`
	TotalConfidence        float64  `json:"total_confidence"`
	UserPreferencesApplied bool     `json:"user_preferences_applied"`
}

// Composed is the full composition result
type Composed struct {
	Text       string     `json:"text"`
	Format     Format     `json:"format"`
	Elements   []Element  `json:"elements"`
	Decisions  []Decision `json:"decisions"`
	TokensUsed int        `json:"tokens_used"`
	Metadata   Metadata   `json:"metadata"`
}

// Config tunes selection
type Config struct {
	MaxTokens     int     // context token budget, default 500
	MinConfidence float64 // floor below which elements are excluded, default 0.3
	Format        Format  // default system_prompt
}

func (c Config) normalize() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 500
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.3
	}
	if c.Format == "" {
		c.Format = FormatSystemPrompt
	}
	return c
}

// Inputs carries the interpreted context the composer may draw from
type Inputs struct {
	Query              string
	Temporal           *temporal.Context
	TemporalConfidence float64 // default 0.95
	Spatial            *spatial.Context
	Assumptions        *situational.Assumptions
	MessageCount       int
	// Extra carries stored context records beyond the standard set;
	// keys matching the redaction list never become elements
	Extra []memory.Record
}

// QuerySignals score how strongly a query leans on each context type
type QuerySignals struct {
	Temporal    float64 `json:"temporal"`
	Spatial     float64 `json:"spatial"`
	Situational float64 `json:"situational"`
}

var temporalKeywords = []string{
	"today", "tomorrow", "yesterday", "now", "later", "soon",
	"morning", "afternoon", "evening", "night", "week", "month",
	"schedule", "meeting", "deadline", "when", "time", "date",
	"remind", "appointment", "calendar", "o'clock", "am", "pm",
}

var spatialKeywords = []string{
	"here", "there", "near", "nearby", "local", "location",
	"weather", "timezone", "country", "city", "region",
	"restaurant", "store", "place", "address", "directions",
}

var situationalKeywords = []string{
	"this", "that", "it", "they", "continue", "again", "same",
	"previous", "earlier", "before", "last time", "as i said",
	"mentioned", "working on", "project",
}

// AnalyzeQuery counts keyword hits per context type; five or more
// hits saturate the signal
func AnalyzeQuery(query string) QuerySignals {
	lower := strings.ToLower(query)
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	}) {
		words[w] = true
	}

	count := func(keywords []string) float64 {
		n := 0
		for _, kw := range keywords {
			if strings.ContainsRune(kw, ' ') {
				if strings.Contains(lower, kw) {
					n++
				}
			} else if words[kw] {
				n++
			}
		}
		sig := float64(n) / 5
		if sig > 1 {
			sig = 1
		}
		return sig
	}

	return QuerySignals{
		Temporal:    count(temporalKeywords),
		Spatial:     count(spatialKeywords),
		Situational: count(situationalKeywords),
	}
}

// reForbiddenKey matches context keys that must never reach a prompt
var reForbiddenKey = regexp.MustCompile(`(?i)(password|api_key|token|ssn|card_number|credentials|password_hash)`)

// ForbiddenKey reports whether a stored key is barred from composition
func ForbiddenKey(key string) bool {
	return reForbiddenKey.MatchString(key)
}

// BuildElements produces every candidate element for the inputs,
// scored against the query signals
func BuildElements(in Inputs) []Element {
	sig := AnalyzeQuery(in.Query)
	var out []Element

	tconf := in.TemporalConfidence
	if tconf == 0 {
		tconf = 0.95
	}

	if in.Temporal != nil {
		c := *in.Temporal
		out = append(out, Element{
			Key:  "current_time",
			Type: "temporal",
			Content: map[string]any{
				"time":        c.Instant.Format("15:04"),
				"date":        c.DateKey(),
				"day_of_week": c.WeekdayName,
				"timezone":    c.Timezone,
			},
			Interpretation: fmt.Sprintf("It is currently %s on %s", c.TimeOfDay, c.WeekdayName),
			Confidence:     tconf,
			Tokens:         30,
			Score:          0.3 + sig.Temporal*0.7,
		})

		d := temporal.Describe(c)
		interp := "Outside business hours; the user is " + d.LikelyAvailability
		if d.IsBusinessHours {
			interp = "During business hours; the user is " + d.LikelyAvailability
		}
		out = append(out, Element{
			Key:  "time_semantics",
			Type: "temporal",
			Content: map[string]any{
				"is_business_hours":   d.IsBusinessHours,
				"urgency":             d.Urgency,
				"likely_availability": d.LikelyAvailability,
			},
			Interpretation: interp,
			Confidence:     tconf,
			Tokens:         25,
			Score:          sig.Temporal * 0.8,
		})
	}

	if in.Spatial != nil {
		s := *in.Spatial
		if s.ExplicitConsent && s.Country != "" {
			content := map[string]any{"country": s.Country}
			place := s.Country
			if s.City != "" {
				content["city"] = s.City
				place = s.City + ", " + s.Country
			}
			if s.Region != "" {
				content["region"] = s.Region
			}
			out = append(out, Element{
				Key:            "location",
				Type:           "spatial",
				Content:        content,
				Interpretation: "User is in " + place,
				Confidence:     s.Confidence,
				Tokens:         20,
				Score:          0.2 + sig.Spatial*0.6,
			})
		}
		if s.Language != "" || s.Locale != "" {
			out = append(out, Element{
				Key:  "locale",
				Type: "spatial",
				Content: map[string]any{
					"language":           s.Language,
					"locale":             s.Locale,
					"currency":           s.Currency,
					"measurement_system": s.MeasurementSystem,
					"date_format":        s.DateFormat,
				},
				Confidence: s.Confidence,
				Tokens:     25,
				Score:      sig.Spatial * 0.5,
			})
		}
	}

	if in.Assumptions != nil {
		a := *in.Assumptions
		if a.CurrentWork != "" {
			out = append(out, Element{
				Key:            "current_task",
				Type:           "situational",
				Content:        a.CurrentWork,
				Interpretation: "User is working on: " + a.CurrentWork,
				Confidence:     a.Confidence,
				Tokens:         35,
				Score:          0.4 + sig.Situational*0.6,
			})
		}
		if len(a.InScopeReferences) > 0 {
			texts := make([]string, 0, len(a.InScopeReferences))
			for _, r := range a.InScopeReferences {
				texts = append(texts, r.Text)
			}
			out = append(out, Element{
				Key:            "assumptions",
				Type:           "situational",
				Content:        texts,
				Interpretation: "Recently referenced: " + strings.Join(texts, ", "),
				Confidence:     a.Confidence,
				Tokens:         40,
				Score:          sig.Situational * 0.5,
			})
		}
	}

	if in.MessageCount > 1 {
		conf := float64(in.MessageCount) * 0.1
		if conf > 1 {
			conf = 1
		}
		out = append(out, Element{
			Key:            "conversation_context",
			Type:           "situational",
			Content:        map[string]any{"message_count": in.MessageCount},
			Interpretation: fmt.Sprintf("Ongoing conversation with %d prior messages", in.MessageCount),
			Confidence:     conf,
			Tokens:         20,
			Score:          sig.Situational * 0.7,
		})
	}

	for _, r := range in.Extra {
		if ForbiddenKey(r.Key) {
			continue
		}
		content := renderContent(r.Value)
		out = append(out, Element{
			Key:        r.Key,
			Type:       string(r.Type),
			Content:    r.Value,
			Confidence: r.Confidence,
			Tokens:     EstimateTokens(content),
			Score:      sig.Situational * 0.5,
		})
	}

	for i := range out {
		out[i].Relevance = RelevanceFor(out[i].Score)
	}
	return out
}

// Compose selects elements under the budget and renders them
func Compose(in Inputs, cfg Config) Composed {
	cfg = cfg.normalize()
	candidates := BuildElements(in)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].InclusionScore() > candidates[j].InclusionScore()
	})

	out := Composed{Format: cfg.Format}
	used := 0
	for _, e := range candidates {
		switch {
		case e.Relevance == RelevanceIrrelevant:
			out.Decisions = append(out.Decisions, Decision{e.Key, false, "Not relevant to the query"})
		case e.Confidence < cfg.MinConfidence:
			out.Decisions = append(out.Decisions, Decision{e.Key, false,
				fmt.Sprintf("Confidence too low (%.2f < %.2f)", e.Confidence, cfg.MinConfidence)})
		case used+e.Tokens > cfg.MaxTokens && e.Relevance != RelevanceCritical:
			out.Decisions = append(out.Decisions, Decision{e.Key, false, "Token budget exceeded"})
		default:
			// critical elements may run past the budget
			out.Decisions = append(out.Decisions, Decision{e.Key, true,
				fmt.Sprintf("Relevance: %s, Confidence: %.2f, Score: %.2f", e.Relevance, e.Confidence, e.InclusionScore())})
			out.Elements = append(out.Elements, e)
			used += e.Tokens
		}
	}
	out.TokensUsed = used

	switch cfg.Format {
	case FormatContextBlock:
		out.Text = renderContextBlock(out.Elements)
	case FormatInline:
		out.Text = renderInline(out.Elements)
	default:
		out.Text = renderSystemPrompt(out.Elements)
	}

	out.Metadata = buildMetadata(out.Elements)
	return out
}

func buildMetadata(elements []Element) Metadata {
	md := Metadata{ContextVersion: "1.0", ElementsIncluded: len(elements)}
	seen := map[string]bool{}
	var sum float64
	for _, e := range elements {
		sum += e.Confidence
		if !seen[e.Type] {
			seen[e.Type] = true
			md.ContextTypes = append(md.ContextTypes, e.Type)
		}
	}
	if len(elements) > 0 {
		md.TotalConfidence = sum / float64(len(elements))
	}
	return md
}

var sectionOrder = []struct {
	title string
	types []string
}{
	{"### Time & Date", []string{"temporal"}},
	{"### Location", []string{"spatial"}},
	{"### Context", []string{"situational", "meta"}},
}

func renderSystemPrompt(elements []Element) string {
	if len(elements) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Current Context\n")
	for _, sec := range sectionOrder {
		var lines []string
		for _, e := range elements {
			for _, t := range sec.types {
				if e.Type == t {
					lines = append(lines, "- "+e.Line())
				}
			}
		}
		if len(lines) == 0 {
			continue
		}
		b.WriteString("\n" + sec.title + "\n")
		b.WriteString(strings.Join(lines, "\n") + "\n")
	}
	b.WriteString("\n---\n")
	b.WriteString("Use this context to ground your responses in the user's reality.\n")
	b.WriteString("Do not mention this context unless directly relevant to the user's query.")
	return b.String()
}

func renderContextBlock(elements []Element) string {
	if len(elements) == 0 {
		return ""
	}
	m := map[string]any{}
	for _, e := range elements {
		m[e.Key] = e.Content
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return ""
	}
	return "<context>\n" + string(raw) + "\n</context>"
}

func renderInline(elements []Element) string {
	if len(elements) == 0 {
		return ""
	}
	lines := make([]string, 0, len(elements))
	for _, e := range elements {
		lines = append(lines, e.Line())
	}
	return "[Context: " + strings.Join(lines, "; ") + "]"
}

func renderContent(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

// EstimateTokens approximates tokens as one per four characters,
// rounded up
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
