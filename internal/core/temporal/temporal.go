// Package temporal interprets instants into calendar context and resolves
// time references in user text against an anchor.
package temporal

import (
	"strings"
	"time"
)

// TimeOfDay is a named hour bucket
type TimeOfDay string

const (
	// TimeLateNight covers [00:00, 05:00)
	TimeLateNight TimeOfDay = "late_night"
	// TimeEarlyMorning covers [05:00, 08:00)
	TimeEarlyMorning TimeOfDay = "early_morning"
	// TimeMorning covers [08:00, 12:00)
	TimeMorning TimeOfDay = "morning"
	// TimeAfternoon covers [12:00, 17:00)
	TimeAfternoon TimeOfDay = "afternoon"
	// TimeEvening covers [17:00, 21:00)
	TimeEvening TimeOfDay = "evening"
	// TimeNight covers [21:00, 24:00)
	TimeNight TimeOfDay = "night"
)

// DayType partitions days into weekday and weekend
type DayType string

const (
	// DayWeekday is Monday through Friday
	DayWeekday DayType = "weekday"
	// DayWeekend is Saturday and Sunday
	DayWeekend DayType = "weekend"
)

// Season is a meteorological season label
type Season string

const (
	// SeasonWinter is Dec, Jan, Feb in the northern hemisphere
	SeasonWinter Season = "winter"
	// SeasonSpring is Mar, Apr, May in the northern hemisphere
	SeasonSpring Season = "spring"
	// SeasonSummer is Jun, Jul, Aug in the northern hemisphere
	SeasonSummer Season = "summer"
	// SeasonAutumn is Sep, Oct, Nov in the northern hemisphere
	SeasonAutumn Season = "autumn"
)

// Context is the calendar interpretation of one instant in one zone
type Context struct {
	Instant        time.Time `json:"instant"`
	UTC            time.Time `json:"utc"`
	Timezone       string    `json:"timezone"`
	UTCOffsetHours float64   `json:"utc_offset_hours"`

	Year        int        `json:"year"`
	Month       time.Month `json:"month"`
	Day         int        `json:"day"`
	Hour        int        `json:"hour"`
	Minute      int        `json:"minute"`
	Weekday     int        `json:"weekday"` // Monday=0 .. Sunday=6
	WeekdayName string     `json:"weekday_name"`

	TimeOfDay TimeOfDay `json:"time_of_day"`
	DayType   DayType   `json:"day_type"`
	Season    Season    `json:"season"`

	SessionStart           *time.Time `json:"session_start,omitempty"`
	SessionDurationMinutes *float64   `json:"session_duration_minutes,omitempty"`
}

// Zone resolves an IANA zone name
// empty or unknown names fall back to UTC with ok=false so callers can warn
func Zone(tz string) (*time.Location, bool) {
	if strings.TrimSpace(tz) == "" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// Interpret builds a Context for at in zone tz
// unknown zones resolve to UTC; Context.Timezone records the zone actually used
func Interpret(at time.Time, tz string, sessionStart *time.Time) Context {
	loc, _ := Zone(tz)
	local := at.In(loc)
	_, offsetSecs := local.Zone()

	c := Context{
		Instant:        local,
		UTC:            at.UTC(),
		Timezone:       loc.String(),
		UTCOffsetHours: float64(offsetSecs) / 3600,
		Year:           local.Year(),
		Month:          local.Month(),
		Day:            local.Day(),
		Hour:           local.Hour(),
		Minute:         local.Minute(),
		Weekday:        MondayIndex(local.Weekday()),
		WeekdayName:    local.Weekday().String(),
		TimeOfDay:      TimeOfDayFor(local.Hour()),
		Season:         SeasonFor(local.Month(), false),
	}
	c.DayType = DayWeekday
	if c.Weekday >= 5 {
		c.DayType = DayWeekend
	}
	if sessionStart != nil {
		ss := sessionStart.In(loc)
		c.SessionStart = &ss
		mins := local.Sub(ss).Minutes()
		c.SessionDurationMinutes = &mins
	}
	return c
}

// MondayIndex converts a time.Weekday to a Monday=0 index
func MondayIndex(w time.Weekday) int { return (int(w) + 6) % 7 }

// TimeOfDayFor maps an hour to its fine-grained bucket
func TimeOfDayFor(hour int) TimeOfDay {
	switch {
	case hour < 5:
		return TimeLateNight
	case hour < 8:
		return TimeEarlyMorning
	case hour < 12:
		return TimeMorning
	case hour < 17:
		return TimeAfternoon
	case hour < 21:
		return TimeEvening
	default:
		return TimeNight
	}
}

// CoarseTimeOfDay maps an hour to the four-way bucket used on wire snapshots
func CoarseTimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// SeasonFor maps a month to its meteorological season
// southern flips the hemisphere
func SeasonFor(m time.Month, southern bool) Season {
	var s Season
	switch {
	case m == time.December || m <= time.February:
		s = SeasonWinter
	case m <= time.May:
		s = SeasonSpring
	case m <= time.August:
		s = SeasonSummer
	default:
		s = SeasonAutumn
	}
	if southern {
		switch s {
		case SeasonWinter:
			s = SeasonSummer
		case SeasonSummer:
			s = SeasonWinter
		case SeasonSpring:
			s = SeasonAutumn
		case SeasonAutumn:
			s = SeasonSpring
		}
	}
	return s
}

// StartOfDay returns midnight of c's calendar day in its zone
func (c Context) StartOfDay() time.Time {
	return time.Date(c.Year, c.Month, c.Day, 0, 0, 0, 0, c.Instant.Location())
}

// EndOfDay returns 23:59:59 of c's calendar day in its zone
func (c Context) EndOfDay() time.Time {
	return time.Date(c.Year, c.Month, c.Day, 23, 59, 59, 0, c.Instant.Location())
}

// DateKey returns the calendar day as YYYY-MM-DD in c's zone
func (c Context) DateKey() string { return c.Instant.Format("2006-01-02") }

// PromptLine renders the context as a single grounding line for prompts
func (c Context) PromptLine() string {
	return "Current time: " + c.Instant.Format("Monday, January 02, 2006 at 03:04 PM MST")
}

// Interpretation carries advisory derivations layered on a Context
type Interpretation struct {
	IsBusinessHours    bool   `json:"is_business_hours"`
	Urgency            string `json:"urgency"` // low, moderate, high
	DaysUntilWeekend   int    `json:"days_until_weekend"`
	LikelyAvailability string `json:"likely_availability"`
}

// Describe derives the advisory interpretation layer for c
func Describe(c Context) Interpretation {
	bh := c.DayType == DayWeekday && c.Hour >= 9 && c.Hour < 17

	urg := "low"
	switch {
	case bh && c.Hour < 12:
		urg = "high"
	case bh:
		urg = "moderate"
	}

	until := 5 - c.Weekday
	if until < 0 {
		until = 0
	}

	avail := "likely available"
	switch {
	case c.TimeOfDay == TimeLateNight:
		avail = "likely asleep"
	case bh:
		avail = "likely working"
	}

	return Interpretation{
		IsBusinessHours:    bh,
		Urgency:            urg,
		DaysUntilWeekend:   until,
		LikelyAvailability: avail,
	}
}
