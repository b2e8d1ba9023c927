package snapshot

import (
	"ralcore/internal/core/atomic"
	"ralcore/internal/core/memory"
)

// StateFromRecords folds the atomic context and stored records into the
// four-section state shape that Checksum and Classify operate on
func StateFromRecords(ac atomic.Context, rows []memory.Record) State {
	temporalSec := map[string]any{
		"day_of_week": ac.DayOfWeek,
		"time_of_day": ac.TimeOfDay,
		"timezone":    ac.Timezone,
	}
	spatialSec := map[string]any{}
	situationalSec := map[string]any{}
	metaSec := map[string]any{}
	if ac.Locale != "" {
		spatialSec["locale"] = ac.Locale
	}
	for _, r := range rows {
		switch r.Type {
		case memory.TypeTemporal:
			temporalSec[r.Key] = r.Value
		case memory.TypeSpatial:
			spatialSec[r.Key] = r.Value
		case memory.TypeSituational:
			situationalSec[r.Key] = r.Value
		case memory.TypeMeta:
			metaSec[r.Key] = r.Value
		}
	}
	return State{
		"temporal":    temporalSec,
		"spatial":     spatialSec,
		"situational": situationalSec,
		"meta":        metaSec,
	}
}
