// Package resolve finds ambiguous references in a user's message
// ("today", "here", "it") and binds each one to a concrete value using
// the temporal anchor, the stored location, and recent conversation
// history. Every binding carries its own confidence and the overall
// score is the weakest link, so one shaky assumption drags the whole
// result down to where callers will ask instead of guess.
package resolve

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ralcore/internal/core/memory"
	"ralcore/internal/core/spatial"
	"ralcore/internal/core/temporal"
)

// Kind classifies what a reference points at
type Kind string

const (
	KindTemporal Kind = "temporal"
	KindSpatial  Kind = "spatial"
	KindEntity   Kind = "entity"
)

// Reference is one ambiguous span found in the query
type Reference struct {
	Text  string `json:"text"`
	Kind  Kind   `json:"kind"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Candidate is one possible binding for a reference
type Candidate struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Resolved is a reference plus its chosen binding
type Resolved struct {
	Reference
	Value              string      `json:"value,omitempty"`
	Confidence         float64     `json:"confidence"`
	Method             string      `json:"method"`
	NeedsClarification bool        `json:"needs_clarification"`
	Alternatives       []Candidate `json:"alternatives,omitempty"`
}

// Message is one turn of conversation history, oldest first
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Input carries everything resolution may draw on
type Input struct {
	Query    string
	Anchor   temporal.Context
	Location *spatial.Context
	History  []Message
	// Threshold below which a binding needs clarification;
	// zero means the engine default
	Threshold float64
}

// Result is the full resolution outcome for one query
type Result struct {
	References         []Resolved `json:"references"`
	Confidence         float64    `json:"confidence"`
	NeedsClarification bool       `json:"needs_clarification"`
	Threshold          float64    `json:"-"`
}

// historyDepth is how many recent messages the entity search scans
const historyDepth = 5

// patterns are scanned in order; earlier entries claim their span
// first, so longer phrases must precede their substrings
var patterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindTemporal, regexp.MustCompile(`(?i)\b(?:the )?day before yesterday\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\b(?:the )?day after tomorrow\b`)},
	{KindSpatial, regexp.MustCompile(`(?i)\bcurrent location\b`)},
	{KindSpatial, regexp.MustCompile(`(?i)\bthis location\b`)},
	{KindSpatial, regexp.MustCompile(`(?i)\baround here\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\ba moment ago\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\bright now\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\bjust now\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\byesterday\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\btomorrow\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\btonight\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\btoday\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\brecently\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\bearlier\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\bshortly\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\blater\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\bsoon\b`)},
	{KindTemporal, regexp.MustCompile(`(?i)\bnow\b`)},
	{KindSpatial, regexp.MustCompile(`(?i)\bmy place\b`)},
	{KindSpatial, regexp.MustCompile(`(?i)\bnearby\b`)},
	{KindSpatial, regexp.MustCompile(`(?i)\bhere\b`)},
	{KindEntity, regexp.MustCompile(`(?i)\bthis one\b`)},
	{KindEntity, regexp.MustCompile(`(?i)\bthat one\b`)},
	{KindEntity, regexp.MustCompile(`(?i)\bthese\b`)},
	{KindEntity, regexp.MustCompile(`(?i)\bthose\b`)},
	{KindEntity, regexp.MustCompile(`(?i)\bthey\b`)},
	{KindEntity, regexp.MustCompile(`(?i)\bthem\b`)},
	{KindEntity, regexp.MustCompile(`(?i)\bit\b`)},
}

// Detect scans a query for ambiguous references, returning
// non-overlapping spans ordered by position
func Detect(query string) []Reference {
	var refs []Reference
	claimed := make([]bool, len(query))

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(query, -1) {
			if overlaps(claimed, loc[0], loc[1]) {
				continue
			}
			for i := loc[0]; i < loc[1]; i++ {
				claimed[i] = true
			}
			refs = append(refs, Reference{
				Text:  query[loc[0]:loc[1]],
				Kind:  p.kind,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	// restore textual order
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && refs[j-1].Start > refs[j].Start; j-- {
			refs[j-1], refs[j] = refs[j], refs[j-1]
		}
	}
	return refs
}

func overlaps(claimed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

// Resolve detects and binds every reference in the query
func Resolve(in Input) Result {
	th := in.Threshold
	if th <= 0 {
		th = memory.DefaultConfidenceThreshold
	}

	refs := Detect(in.Query)
	out := Result{Confidence: 1, Threshold: th}

	for _, ref := range refs {
		var r Resolved
		switch ref.Kind {
		case KindTemporal:
			r = resolveTemporal(ref, in.Anchor)
		case KindSpatial:
			r = resolveSpatial(ref, in.Location)
		case KindEntity:
			r = resolveEntity(ref, in.History)
		}
		r.NeedsClarification = r.Confidence < th || len(r.Alternatives) > 1
		if r.NeedsClarification {
			out.NeedsClarification = true
		}
		if r.Confidence < out.Confidence {
			out.Confidence = r.Confidence
		}
		out.References = append(out.References, r)
	}
	return out
}

func resolveTemporal(ref Reference, anchor temporal.Context) Resolved {
	tr := temporal.Resolve(ref.Text, anchor)
	r := Resolved{
		Reference:  ref,
		Value:      renderWindow(tr.Resolved, tr.WindowStart, tr.WindowEnd),
		Confidence: tr.Confidence,
		Method:     string(tr.Method),
	}
	for _, alt := range tr.Alternatives {
		r.Alternatives = append(r.Alternatives, Candidate{
			Value:      renderWindow(alt.Resolved, alt.WindowStart, alt.WindowEnd),
			Confidence: alt.Confidence,
			Source:     "temporal",
		})
	}
	if tr.Ambiguous && len(r.Alternatives) < 2 {
		// ambiguity without named options still warrants a check-in
		r.Confidence = min2(r.Confidence, 0.49)
	}
	return r
}

func resolveSpatial(ref Reference, loc *spatial.Context) Resolved {
	r := Resolved{Reference: ref, Method: "spatial"}
	if loc == nil {
		r.Confidence = 0.2
		r.Method = spatial.SourceFallback
		return r
	}
	lr := spatial.ResolveLocation(ref.Text, *loc)
	r.Confidence = lr.Confidence
	r.Method = lr.Source
	if lr.Resolved && lr.Context != nil {
		r.Value = placeString(*lr.Context)
	}
	return r
}

func resolveEntity(ref Reference, history []Message) Resolved {
	r := Resolved{Reference: ref, Method: "history_search"}

	cands := entityCandidates(history, historyDepth)
	switch len(cands) {
	case 0:
		r.Method = "no_history"
		r.Confidence = 0.3
	case 1:
		r.Value = cands[0]
		r.Confidence = 0.6
	default:
		r.Value = cands[0]
		r.Confidence = 0.4
		for _, c := range cands[1:] {
			r.Alternatives = append(r.Alternatives, Candidate{Value: c, Confidence: 0.3, Source: "history"})
			if len(r.Alternatives) == 3 {
				break
			}
		}
	}
	return r
}

var (
	reQuotedEntity = regexp.MustCompile("\"([^\"]{2,80})\"|`([^`]{2,80})`")
	reProperNoun   = regexp.MustCompile(`[A-Z][A-Za-z0-9'._-]+(?:\s+[A-Z][A-Za-z0-9'._-]+)*`)
)

var entityStopwords = map[string]bool{
	"I": true, "A": true, "An": true, "The": true, "It": true,
	"We": true, "You": true, "He": true, "She": true, "They": true,
	"My": true, "Our": true, "Your": true, "This": true, "That": true,
	"These": true, "Those": true, "What": true, "When": true,
	"Where": true, "Why": true, "How": true, "Yes": true, "No": true,
	"OK": true, "Ok": true, "Oh": true, "Hi": true, "Hello": true,
	"Thanks": true, "Please": true, "Can": true, "Could": true,
	"Would": true, "Should": true, "Is": true, "Are": true, "Do": true,
	"Does": true, "If": true, "And": true, "But": true, "Or": true,
	"Let": true, "So": true, "Also": true, "Just": true, "Sure": true,
	"Now": true, "Then": true, "Here": true, "There": true,
	"I'm": true, "I'll": true, "I've": true, "I'd": true, "It's": true,
	"That's": true, "What's": true, "Let's": true, "Here's": true,
	"There's": true, "Don't": true, "Won't": true, "Can't": true,
}

// entityCandidates pulls referable things from the most recent
// messages, newest first: quoted strings, then capitalized phrases
func entityCandidates(history []Message, depth int) []string {
	seen := map[string]bool{}
	var out []string

	add := func(s string) {
		s = strings.Trim(strings.TrimSpace(s), ".,:;!?-_'")
		if len(s) < 2 {
			return
		}
		if entityStopwords[s] {
			return
		}
		key := strings.ToLower(s)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	scanned := 0
	for i := len(history) - 1; i >= 0 && scanned < depth; i-- {
		scanned++
		content := history[i].Content
		for _, m := range reQuotedEntity.FindAllStringSubmatch(content, -1) {
			if m[1] != "" {
				add(m[1])
			} else {
				add(m[2])
			}
		}
		for _, m := range reProperNoun.FindAllString(content, -1) {
			add(m)
		}
	}
	return out
}

// renderWindow formats a resolved instant or window for humans
func renderWindow(resolved, start, end time.Time) string {
	if start.Hour() == 0 && start.Minute() == 0 && end.Hour() == 23 && end.Minute() == 59 {
		return resolved.Format("Monday, January 2, 2006")
	}
	if !start.Equal(end) {
		return fmt.Sprintf("between %s and %s on %s",
			start.Format("3:04 PM"), end.Format("3:04 PM"), resolved.Format("January 2, 2006"))
	}
	return resolved.Format("Monday, January 2, 2006 at 3:04 PM")
}

func placeString(c spatial.Context) string {
	var parts []string
	if c.City != "" {
		parts = append(parts, c.City)
	} else if c.Region != "" {
		parts = append(parts, c.Region)
	}
	if c.Country != "" {
		parts = append(parts, c.Country)
	}
	return strings.Join(parts, ", ")
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Statements renders confident bindings as prompt-ready lines; bindings
// above the high bar are stated as fact, the rest are hedged
func (r Result) Statements() []string {
	var out []string
	for _, ref := range r.References {
		if ref.Value == "" {
			continue
		}
		switch {
		case ref.Confidence >= memory.HighConfidenceThreshold:
			out = append(out, fmt.Sprintf("%q refers to %s", ref.Text, ref.Value))
		case ref.Confidence >= r.Threshold:
			out = append(out, fmt.Sprintf("%q likely refers to %s", ref.Text, ref.Value))
		}
	}
	return out
}

// Clarifications lists the questions worth asking the user
func (r Result) Clarifications() []string {
	seen := map[string]bool{}
	var out []string
	for _, ref := range r.References {
		if !ref.NeedsClarification {
			continue
		}
		q := fmt.Sprintf("Could you clarify what %q refers to?", ref.Text)
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}
