package temporal

import (
	"regexp"
	"strings"
	"time"
)

// Method records which rule family produced a Resolution
type Method string

const (
	// MethodRelativeDay matched a day-offset phrase like "tomorrow"
	MethodRelativeDay Method = "relative_day"
	// MethodRelativeTime matched an intra-day phrase like "just now"
	MethodRelativeTime Method = "relative_time"
	// MethodAbsolute parsed an explicit date
	MethodAbsolute Method = "absolute"
	// MethodFallback anchored an unrecognized reference to the current instant
	MethodFallback Method = "fallback"
)

// Alternative is a secondary reading of an ambiguous reference
type Alternative struct {
	Resolved    time.Time `json:"resolved"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Confidence  float64   `json:"confidence"`
}

// Resolution is the outcome of resolving one temporal reference
type Resolution struct {
	Reference   string        `json:"reference"`
	Resolved    time.Time     `json:"resolved"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	Confidence  float64       `json:"confidence"`
	Ambiguous   bool          `json:"ambiguous"`
	Method      Method        `json:"method"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// relativeDays are matched in order, longest phrase first, so
// "day before yesterday" is never consumed by "yesterday"
var relativeDays = []struct {
	re     *regexp.Regexp
	offset int
}{
	{regexp.MustCompile(`\bday before yesterday\b`), -2},
	{regexp.MustCompile(`\bday after tomorrow\b`), 2},
	{regexp.MustCompile(`\byesterday\b`), -1},
	{regexp.MustCompile(`\btomorrow\b`), 1},
	{regexp.MustCompile(`\btoday\b`), 0},
	{regexp.MustCompile(`\btonight\b`), 0},
}

var (
	reRightNow  = regexp.MustCompile(`\bright now\b`)
	reJustNow   = regexp.MustCompile(`\b(just now|a moment ago)\b`)
	reRecently  = regexp.MustCompile(`\brecently\b`)
	reShortly   = regexp.MustCompile(`\bshortly\b`)
	reEarlier   = regexp.MustCompile(`\bearlier\b`)
	reLater     = regexp.MustCompile(`\blater\b`)
	reSoon      = regexp.MustCompile(`\bsoon\b`)
	reNow       = regexp.MustCompile(`\bnow\b`)
)

// absoluteLayouts are tried strictly in order; layouts without a year
// inherit the anchor's year
var absoluteLayouts = []struct {
	layout  string
	hasYear bool
}{
	{"2006-01-02", true},
	{"01/02/2006", true},
	{"02/01/2006", true},
	{"January 2, 2006", true},
	{"January 2 2006", true},
	{"January 2", false},
	{"Jan 2, 2006", true},
	{"Jan 2 2006", true},
	{"Jan 2", false},
}

// Resolve maps a reference fragment to a concrete instant or window
// anchored at c; it never fails, degrading to a low-confidence anchor
func Resolve(fragment string, c Context) Resolution {
	lower := strings.ToLower(strings.TrimSpace(fragment))
	loc := c.Instant.Location()
	now := c.Instant

	for _, rd := range relativeDays {
		m := rd.re.FindString(lower)
		if m == "" {
			continue
		}
		day := now.AddDate(0, 0, rd.offset)
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, loc)
		return Resolution{
			Reference:   m,
			Resolved:    day,
			WindowStart: start,
			WindowEnd:   end,
			Confidence:  0.95,
			Method:      MethodRelativeDay,
		}
	}

	if r, ok := resolveRelativeTime(lower, c); ok {
		return r
	}

	if r, ok := resolveAbsolute(lower, c); ok {
		return r
	}

	return Resolution{
		Reference:   fragment,
		Resolved:    now,
		WindowStart: now,
		WindowEnd:   now,
		Confidence:  0.2,
		Ambiguous:   true,
		Method:      MethodFallback,
	}
}

func resolveRelativeTime(lower string, c Context) (Resolution, bool) {
	now := c.Instant

	if m := reRightNow.FindString(lower); m != "" {
		return exactNow(m, now), true
	}
	if m := reJustNow.FindString(lower); m != "" {
		return recentWindow(m, now), true
	}
	if m := reRecently.FindString(lower); m != "" {
		return recentWindow(m, now), true
	}
	if m := reEarlier.FindString(lower); m != "" {
		if c.SessionStart != nil {
			return Resolution{
				Reference:   m,
				Resolved:    now.Add(-5 * time.Minute),
				WindowStart: *c.SessionStart,
				WindowEnd:   now.Add(-5 * time.Minute),
				Confidence:  0.7,
				Method:      MethodRelativeTime,
			}, true
		}
		return Resolution{
			Reference:   m,
			Resolved:    c.StartOfDay(),
			WindowStart: c.StartOfDay(),
			WindowEnd:   now,
			Confidence:  0.5,
			Ambiguous:   true,
			Method:      MethodRelativeTime,
		}, true
	}
	if m := reShortly.FindString(lower); m != "" {
		return forwardWindow(m, now, 30*time.Minute, 0.7), true
	}
	if m := reSoon.FindString(lower); m != "" {
		return forwardWindow(m, now, 30*time.Minute, 0.7), true
	}
	if m := reLater.FindString(lower); m != "" {
		return forwardWindow(m, now, 60*time.Minute, 0.6), true
	}
	if m := reNow.FindString(lower); m != "" {
		return exactNow(m, now), true
	}
	return Resolution{}, false
}

func exactNow(ref string, now time.Time) Resolution {
	return Resolution{
		Reference:   ref,
		Resolved:    now,
		WindowStart: now,
		WindowEnd:   now,
		Confidence:  0.99,
		Method:      MethodRelativeTime,
	}
}

func recentWindow(ref string, now time.Time) Resolution {
	return Resolution{
		Reference:   ref,
		Resolved:    now,
		WindowStart: now.Add(-15 * time.Minute),
		WindowEnd:   now,
		Confidence:  0.75,
		Ambiguous:   true,
		Method:      MethodRelativeTime,
		Alternatives: []Alternative{
			{Resolved: now, WindowStart: now.Add(-5 * time.Minute), WindowEnd: now, Confidence: 0.5},
			{Resolved: now, WindowStart: now.Add(-30 * time.Minute), WindowEnd: now, Confidence: 0.6},
		},
	}
}

func forwardWindow(ref string, now time.Time, span time.Duration, conf float64) Resolution {
	return Resolution{
		Reference:   ref,
		Resolved:    now.Add(span),
		WindowStart: now,
		WindowEnd:   now.Add(span),
		Confidence:  conf,
		Method:      MethodRelativeTime,
	}
}

func resolveAbsolute(lower string, c Context) (Resolution, bool) {
	loc := c.Instant.Location()
	// title-case month names so "march 15" parses against "January 2"
	candidate := strings.TrimSpace(lower)
	titled := titleMonths(candidate)

	for _, al := range absoluteLayouts {
		t, err := time.ParseInLocation(al.layout, titled, loc)
		if err != nil {
			continue
		}
		if !al.hasYear {
			t = time.Date(c.Year, t.Month(), t.Day(), 0, 0, 0, 0, loc)
		}
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
		return Resolution{
			Reference:   candidate,
			Resolved:    start,
			WindowStart: start,
			WindowEnd:   end,
			Confidence:  0.9,
			Method:      MethodAbsolute,
		}, true
	}
	return Resolution{}, false
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "oct", "nov", "dec",
}

func titleMonths(s string) string {
	for _, m := range monthNames {
		if strings.Contains(s, m) {
			s = strings.Replace(s, m, strings.ToUpper(m[:1])+m[1:], 1)
			break
		}
	}
	return s
}
