package spatial

// culturalRegions buckets country codes into coarse regions used to seed
// advisory defaults only
var culturalRegions = map[string][]string{
	"western_europe": {"GB", "IE", "FR", "DE", "ES", "PT", "IT", "NL", "BE", "AT", "CH"},
	"eastern_europe": {"RU", "PL", "CZ", "HU", "RO", "UA"},
	"north_america":  {"US", "CA", "MX"},
	"south_america":  {"BR", "AR", "CL", "CO", "PE"},
	"east_asia":      {"CN", "JP", "KR", "TW", "HK"},
	"south_asia":     {"IN", "PK", "BD", "LK", "NP"},
	"southeast_asia": {"TH", "VN", "ID", "MY", "PH", "SG"},
	"middle_east":    {"SA", "AE", "IL", "TR", "EG", "IR", "IQ", "JO", "KW", "QA", "BH", "OM"},
	"oceania":        {"AU", "NZ"},
	"africa":         {"ZA", "NG", "KE", "GH", "ET"},
}

var countryToRegion = func() map[string]string {
	m := make(map[string]string, 64)
	for region, countries := range culturalRegions {
		for _, c := range countries {
			m[c] = region
		}
	}
	return m
}()

// fridaySaturdayWeekend lists countries whose weekend is Friday and Saturday
var fridaySaturdayWeekend = map[string]bool{
	"SA": true, "AE": true, "KW": true, "BH": true, "QA": true,
	"OM": true, "YE": true, "AF": true, "IL": true,
}

// CulturalRegionFor maps a country code to its coarse cultural region
func CulturalRegionFor(country string) string {
	return countryToRegion[country]
}

// Advisory carries cultural defaults seeded from region and language
// every field is a soft prior for phrasing, never a fact about the user
type Advisory struct {
	Region          string   `json:"region,omitempty"`
	Directness      string   `json:"directness"`       // direct, indirect, moderate
	ContextStyle    string   `json:"context_style"`    // low-context, high-context, medium-context
	Formality       string   `json:"formality"`        // formal, informal, neutral
	TimeOrientation string   `json:"time_orientation"` // monochronic, polychronic, mixed
	Punctuality     string   `json:"punctuality"`      // strict, relaxed, moderate
	BusinessHours   string   `json:"business_hours"`
	WeekendDays     []string `json:"weekend_days"`
}

// Advise derives the advisory defaults for a language and country pair
func Advise(lang, country string) Advisory {
	region := CulturalRegionFor(country)
	a := Advisory{Region: region}

	switch region {
	case "east_asia", "southeast_asia", "middle_east":
		a.Directness = "indirect"
		a.ContextStyle = "high-context"
	case "north_america", "western_europe":
		a.Directness = "direct"
		a.ContextStyle = "low-context"
	default:
		a.Directness = "moderate"
		a.ContextStyle = "medium-context"
	}

	switch {
	case lang == "ja" || lang == "ko" || lang == "de" || lang == "fr":
		a.Formality = "formal"
	case region == "east_asia" || region == "middle_east":
		a.Formality = "formal"
	case region == "north_america":
		a.Formality = "informal"
	default:
		a.Formality = "neutral"
	}

	switch region {
	case "western_europe", "north_america", "east_asia":
		a.TimeOrientation = "monochronic"
		a.Punctuality = "strict"
	case "south_america", "middle_east", "south_asia":
		a.TimeOrientation = "polychronic"
		a.Punctuality = "relaxed"
	default:
		a.TimeOrientation = "mixed"
		a.Punctuality = "moderate"
	}

	switch region {
	case "east_asia":
		a.BusinessHours = "9:00 - 18:00 (often longer)"
	case "middle_east":
		a.BusinessHours = "8:00 - 16:00 (Sunday-Thursday typical)"
	default:
		a.BusinessHours = "9:00 - 17:00"
	}

	if fridaySaturdayWeekend[country] {
		a.WeekendDays = []string{"Friday", "Saturday"}
	} else {
		a.WeekendDays = []string{"Saturday", "Sunday"}
	}
	return a
}
