// Package atomic builds the fast-path context: everything derivable
// from request inputs alone, with no store or network access.
package atomic

import (
	"time"

	"ralcore/internal/core/spatial"
	"ralcore/internal/core/temporal"
)

// Context is the synchronously resolvable slice of a user's situation
type Context struct {
	Timestamp  time.Time `json:"timestamp"`
	ISO        string    `json:"iso"`
	DayOfWeek  string    `json:"day_of_week"`
	DayNumber  int       `json:"day_number"` // Monday=0 .. Sunday=6
	TimeOfDay  string    `json:"time_of_day"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	Timezone   string    `json:"timezone"`
	UTCOffset  float64   `json:"utc_offset_hours"`
	Locale     string    `json:"locale,omitempty"`
	Language   string    `json:"language,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	DateFormat string    `json:"date_format,omitempty"`

	// ResolveMicros is how long the fast path took; a warning is logged
	// past the budget but the context is still returned
	ResolveMicros int64 `json:"resolve_micros,omitempty"`
}

// Inputs are the ambient signals the fast path may use
type Inputs struct {
	At       time.Time
	Timezone string
	Locale   string
}

// Build computes the atomic context for the given inputs
// an unknown timezone falls back to UTC with ok=false so the caller
// can attach a warning
func Build(in Inputs) (Context, bool) {
	started := time.Now()

	loc, ok := temporal.Zone(in.Timezone)
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	local := at.In(loc)

	_, offsetSec := local.Zone()
	c := Context{
		Timestamp: local,
		ISO:       local.Format(time.RFC3339),
		DayOfWeek: local.Weekday().String(),
		DayNumber: temporal.MondayIndex(local.Weekday()),
		TimeOfDay: temporal.CoarseTimeOfDay(local.Hour()),
		Hour:      local.Hour(),
		Minute:    local.Minute(),
		Timezone:  loc.String(),
		UTCOffset: float64(offsetSec) / 3600,
	}

	if in.Locale != "" {
		sc := spatial.Interpret(spatial.Signals{Locale: in.Locale})
		c.Locale = in.Locale
		c.Language = sc.Language
		c.Currency = sc.Currency
		c.DateFormat = sc.DateFormat
	}

	c.ResolveMicros = time.Since(started).Microseconds()
	return c, ok
}
