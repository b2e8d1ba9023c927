// Package spatial derives location, locale, and regional conventions from
// whatever signals a caller is willing to share.
package spatial

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// Signals are the caller-provided inputs, all optional
type Signals struct {
	Locale          string `json:"locale,omitempty"`
	Country         string `json:"country,omitempty"`
	Region          string `json:"region,omitempty"`
	City            string `json:"city,omitempty"`
	Timezone        string `json:"timezone,omitempty"`
	ExplicitConsent bool   `json:"explicit_consent"`
}

// Context is the derived spatial interpretation
type Context struct {
	Locale   string `json:"locale,omitempty"`
	Language string `json:"language,omitempty"`
	Script   string `json:"script,omitempty"`
	Country  string `json:"country,omitempty"`
	Region   string `json:"region,omitempty"`
	City     string `json:"city,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	Currency          string `json:"currency"`
	MeasurementSystem string `json:"measurement_system"` // metric or imperial
	DateFormat        string `json:"date_format"`        // MDY, DMY, YMD
	TimeFormat        string `json:"time_format"`        // 12h or 24h
	CulturalRegion    string `json:"cultural_region,omitempty"`

	ExplicitConsent bool    `json:"explicit_consent"`
	Confidence      float64 `json:"confidence"`
}

// defaultTimezones guesses a zone per country, used only when the caller
// supplied none
var defaultTimezones = map[string]string{
	"US": "America/New_York",
	"GB": "Europe/London",
	"AU": "Australia/Sydney",
	"CA": "America/Toronto",
	"IN": "Asia/Kolkata",
	"DE": "Europe/Berlin",
	"FR": "Europe/Paris",
	"ES": "Europe/Madrid",
	"JP": "Asia/Tokyo",
	"CN": "Asia/Shanghai",
	"BR": "America/Sao_Paulo",
	"RU": "Europe/Moscow",
}

// imperialCountries is the closed set still on imperial units
var imperialCountries = map[string]bool{"US": true, "LR": true, "MM": true}

// twelveHourCountries prefer 12h clocks
var twelveHourCountries = map[string]bool{
	"US": true, "CA": true, "AU": true, "IN": true,
	"PH": true, "MY": true, "EG": true,
}

// monthFirstCountries write dates month-first
var monthFirstCountries = map[string]bool{"US": true, "PH": true, "CA": true}

// yearFirstCountries write dates year-first
var yearFirstCountries = map[string]bool{"CN": true, "JP": true, "KR": true, "TW": true}

// Interpret derives a Context from signals
// explicit country wins over the locale-derived one; the default timezone
// is a guess and only fills a gap, never overrides the caller
func Interpret(sig Signals) Context {
	lang, script, localeCountry := ParseLocale(sig.Locale)

	country := strings.ToUpper(strings.TrimSpace(sig.Country))
	if country == "" {
		country = localeCountry
	}

	tz := strings.TrimSpace(sig.Timezone)
	if tz == "" {
		tz = defaultTimezones[country]
	}

	c := Context{
		Locale:            strings.TrimSpace(sig.Locale),
		Language:          lang,
		Script:            script,
		Country:           country,
		Region:            strings.TrimSpace(sig.Region),
		City:              strings.TrimSpace(sig.City),
		Timezone:          tz,
		Currency:          CurrencyFor(country),
		MeasurementSystem: "metric",
		DateFormat:        "DMY",
		TimeFormat:        "24h",
		CulturalRegion:    CulturalRegionFor(country),
		ExplicitConsent:   sig.ExplicitConsent,
	}
	if imperialCountries[country] {
		c.MeasurementSystem = "imperial"
	}
	if twelveHourCountries[country] {
		c.TimeFormat = "12h"
	}
	switch {
	case monthFirstCountries[country]:
		c.DateFormat = "MDY"
	case yearFirstCountries[country]:
		c.DateFormat = "YMD"
	}

	switch {
	case sig.ExplicitConsent && country != "":
		c.Confidence = 0.9
	case country != "":
		c.Confidence = 0.6
	default:
		c.Confidence = 0.3
	}
	return c
}

// ParseLocale splits a BCP-47 tag into language, script, and country
// script and country are only reported when the tag states them outright,
// never from likely-subtag inference
func ParseLocale(locale string) (lang, script, country string) {
	locale = strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	if locale == "" {
		return "", "", ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", "", ""
	}

	base, baseConf := tag.Base()
	if baseConf >= language.High {
		lang = base.String()
	}
	if sc, conf := tag.Script(); conf == language.Exact {
		script = sc.String()
	}
	if reg, conf := tag.Region(); conf >= language.High {
		country = reg.String()
	}
	return lang, script, country
}

// CurrencyFor maps a country code to its ISO currency, defaulting to USD
func CurrencyFor(country string) string {
	if country != "" {
		if reg, err := language.ParseRegion(country); err == nil {
			if unit, ok := currency.FromRegion(reg); ok {
				return unit.String()
			}
		}
	}
	return "USD"
}

// DefaultTimezone returns the per-country zone guess
func DefaultTimezone(country string) (string, bool) {
	tz, ok := defaultTimezones[strings.ToUpper(country)]
	return tz, ok
}
