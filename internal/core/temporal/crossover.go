package temporal

import (
	"fmt"
	"time"
)

// Crossover states how "today" and "yesterday" read for a session that
// may have straddled midnight
type Crossover struct {
	Crossed        bool    `json:"crossed"`
	SessionDate    string  `json:"session_date"`
	CurrentDate    string  `json:"current_date"`
	TodayMeans     string  `json:"today_means"`
	YesterdayMeans string  `json:"yesterday_means"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// MidnightCrossover decides which calendar day "today" refers to when a
// session started on a different date than c
// the chosen branch and its reasoning are always recorded
func MidnightCrossover(c Context, sessionStart time.Time) Crossover {
	loc := c.Instant.Location()
	ss := sessionStart.In(loc)
	sessionDate := ss.Format("2006-01-02")
	currentDate := c.DateKey()

	if sessionDate == currentDate {
		return Crossover{
			SessionDate:    sessionDate,
			CurrentDate:    currentDate,
			TodayMeans:     currentDate,
			YesterdayMeans: dayBefore(c.Instant, loc),
			Confidence:     0.95,
			Reasoning:      "session and current time share a calendar day",
		}
	}

	elapsed := c.Instant.Sub(ss)
	if c.Hour < 4 && elapsed < 6*time.Hour {
		return Crossover{
			Crossed:        true,
			SessionDate:    sessionDate,
			CurrentDate:    currentDate,
			TodayMeans:     sessionDate,
			YesterdayMeans: dayBefore(ss, loc),
			Confidence:     0.70,
			Reasoning: fmt.Sprintf(
				"early morning shortly after midnight; the session began on %s and \"today\" most likely still refers to that day",
				sessionDate),
		}
	}
	return Crossover{
		Crossed:        true,
		SessionDate:    sessionDate,
		CurrentDate:    currentDate,
		TodayMeans:     currentDate,
		YesterdayMeans: dayBefore(c.Instant, loc),
		Confidence:     0.85,
		Reasoning: fmt.Sprintf(
			"calendar day changed during the session; \"today\" refers to the current date %s",
			currentDate),
	}
}

func dayBefore(t time.Time, loc *time.Location) string {
	return t.In(loc).AddDate(0, 0, -1).Format("2006-01-02")
}
