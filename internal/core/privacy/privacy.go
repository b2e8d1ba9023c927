// Package privacy classifies context values by sensitivity and
// anonymizes them before anything leaves the device boundary.
// Hashing is salted HMAC so values stay comparable without being
// recoverable; location gets fuzzed rather than dropped, keeping it
// useful at city granularity.
package privacy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Level grades how restricted a value is
type Level string

const (
	LevelPublic    Level = "public"
	LevelPrivate   Level = "private"
	LevelSensitive Level = "sensitive"
	LevelPII       Level = "pii"
)

// rank orders levels by restriction for picking an overall level
func (l Level) rank() int {
	switch l {
	case LevelSensitive:
		return 3
	case LevelPII:
		return 2
	case LevelPrivate:
		return 1
	default:
		return 0
	}
}

// Category buckets context keys by subject matter
type Category string

const (
	CategoryLocation   Category = "location"
	CategoryPersonal   Category = "personal"
	CategoryFinancial  Category = "financial"
	CategoryHealth     Category = "health"
	CategoryBehavioral Category = "behavioral"
	CategoryTemporal   Category = "temporal"
	CategoryDevice     Category = "device"
)

// Strategy names an anonymization technique
type Strategy string

const (
	StrategyFuzz       Strategy = "fuzz"
	StrategyHash       Strategy = "hash"
	StrategyGeneralize Strategy = "generalize"
	StrategySuppress   Strategy = "suppress"
	StrategyNone       Strategy = "none"
)

// Redacted replaces suppressed values
const Redacted = "[REDACTED]"

var categoryHints = []struct {
	cat   Category
	words []string
}{
	{CategoryLocation, []string{"lat", "lon", "latitude", "longitude", "location", "address", "city", "country", "region", "gps", "coord"}},
	{CategoryHealth, []string{"health", "medical", "diagnosis", "medication", "cardio", "heart", "blood"}},
	{CategoryFinancial, []string{"card", "bank", "salary", "income", "payment", "price", "purchase", "financial"}},
	{CategoryPersonal, []string{"name", "email", "phone", "birthday", "age", "gender", "username"}},
	{CategoryDevice, []string{"device", "battery", "network", "os", "browser"}},
	{CategoryTemporal, []string{"time", "timezone", "timestamp", "date", "schedule", "calendar"}},
}

// Categorize buckets a context key; short hints must match a whole
// key segment so "age" does not claim "language"
func Categorize(key string) Category {
	lower := strings.ToLower(key)
	segs := map[string]bool{}
	for _, s := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		segs[s] = true
	}

	for _, h := range categoryHints {
		for _, w := range h.words {
			if segs[w] || (len(w) >= 5 && strings.Contains(lower, w)) {
				return h.cat
			}
		}
	}
	return CategoryBehavioral
}

// LevelFor grades a category
func LevelFor(cat Category) Level {
	switch cat {
	case CategoryFinancial, CategoryHealth:
		return LevelSensitive
	case CategoryPersonal:
		return LevelPII
	default:
		return LevelPrivate
	}
}

// StrategyFor picks the default anonymization for a category
func StrategyFor(cat Category) Strategy {
	switch cat {
	case CategoryFinancial, CategoryHealth:
		return StrategySuppress
	case CategoryPersonal:
		return StrategyHash
	case CategoryLocation:
		return StrategyFuzz
	default:
		return StrategyNone
	}
}

// Anonymizer applies salted, deterministic transformations
type Anonymizer struct {
	salt []byte
}

// NewAnonymizer seeds the HMAC salt
func NewAnonymizer(salt string) *Anonymizer {
	return &Anonymizer{salt: []byte(salt)}
}

func (a *Anonymizer) digest(v string) string {
	mac := hmac.New(sha256.New, a.salt)
	mac.Write([]byte(v))
	return hex.EncodeToString(mac.Sum(nil))
}

// Hash returns a short salted digest of a value
func (a *Anonymizer) Hash(v string) string {
	return a.digest(v)[:16]
}

// HashUserID returns the longer digest used as a stable user handle
func (a *Anonymizer) HashUserID(id string) string {
	return a.digest(id)[:32]
}

// reStreet matches street addresses inside free text
var reStreet = regexp.MustCompile(`\d+\s+[\w\s]+?(?:St|Street|Ave|Avenue|Rd|Road|Blvd|Boulevard|Dr|Drive)\b`)

// RedactStreets blanks street addresses out of free text
func RedactStreets(s string) string {
	return reStreet.ReplaceAllString(s, "[Address Redacted]")
}

// FuzzLocation keeps coarse fields, rounds coordinates to one decimal
// (roughly 11 km) and strips street addresses
func FuzzLocation(loc map[string]any) map[string]any {
	out := map[string]any{}
	for _, k := range []string{"region", "city", "country"} {
		if v, ok := loc[k]; ok {
			out[k] = v
		}
	}
	if lat, ok := toFloat(loc["latitude"]); ok {
		out["latitude_approx"] = math.Round(lat*10) / 10
	}
	if lon, ok := toFloat(loc["longitude"]); ok {
		out["longitude_approx"] = math.Round(lon*10) / 10
	}
	if addr, ok := loc["address"].(string); ok {
		out["address"] = RedactStreets(addr)
	}
	return out
}

// MaskEmail keeps two characters of the local part and the domain
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]
	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	return local[:keep] + "***@" + domain
}

// MaskPhone keeps the prefix and the last two digits
func MaskPhone(phone string) string {
	if len(phone) < 5 {
		return "****"
	}
	return phone[:3] + "****" + phone[len(phone)-2:]
}

// MaskName reduces a name to initials
func MaskName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	initials := make([]string, 0, len(fields))
	for _, f := range fields {
		initials = append(initials, strings.ToUpper(f[:1])+".")
	}
	return strings.Join(initials, " ")
}

// Generalize widens a value: numbers become decade ranges, strings
// lose everything past the first word
func Generalize(v any) any {
	if f, ok := toFloat(v); ok {
		lo := int(math.Floor(f/10)) * 10
		return fmt.Sprintf("%d-%d", lo, lo+9)
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			lo := n / 10 * 10
			return fmt.Sprintf("%d-%d", lo, lo+9)
		}
		if i := strings.IndexByte(s, ' '); i > 0 {
			return s[:i]
		}
		return s
	}
	return v
}

// Apply runs one strategy over a value; the bool reports whether the
// value actually changed shape
func (a *Anonymizer) Apply(key string, value any, strategy Strategy) (any, bool) {
	switch strategy {
	case StrategySuppress:
		return Redacted, true
	case StrategyHash:
		return a.Hash(render(value)), true
	case StrategyGeneralize:
		return Generalize(value), true
	case StrategyFuzz:
		switch t := value.(type) {
		case map[string]any:
			return FuzzLocation(t), true
		case string:
			lower := strings.ToLower(key)
			if strings.Contains(lower, "email") {
				return MaskEmail(t), true
			}
			if strings.Contains(lower, "phone") {
				return MaskPhone(t), true
			}
			if strings.Contains(lower, "name") {
				return MaskName(t), true
			}
			return RedactStreets(t), true
		case float64:
			return math.Round(t*10) / 10, true
		default:
			return value, false
		}
	default:
		return value, false
	}
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
