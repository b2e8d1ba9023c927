package privacy

import (
	"strings"
	"testing"
	"time"
)

func TestCategorize(t *testing.T) {
	cases := map[string]Category{
		"latitude":        CategoryLocation,
		"home_city":       CategoryLocation,
		"gps_coordinates": CategoryLocation,
		"blood_pressure":  CategoryHealth,
		"card_number":     CategoryFinancial,
		"salary_range":    CategoryFinancial,
		"email":           CategoryPersonal,
		"user_age":        CategoryPersonal,
		"battery_level":   CategoryDevice,
		"os":              CategoryDevice,
		"timezone":        CategoryTemporal,
		"meeting_date":    CategoryTemporal,
		"favorite_color":  CategoryBehavioral,
	}
	for key, want := range cases {
		if got := Categorize(key); got != want {
			t.Fatalf("Categorize(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestCategorize_ShortHintsNeedWholeSegments(t *testing.T) {
	if got := Categorize("language"); got == CategoryPersonal {
		t.Fatalf("'language' must not match the 'age' hint")
	}
	if got := Categorize("capacity"); got == CategoryLocation {
		t.Fatalf("'capacity' must not match the 'city' hint")
	}
}

func TestLevelFor(t *testing.T) {
	if LevelFor(CategoryFinancial) != LevelSensitive || LevelFor(CategoryHealth) != LevelSensitive {
		t.Fatalf("financial and health are sensitive")
	}
	if LevelFor(CategoryPersonal) != LevelPII {
		t.Fatalf("personal is pii")
	}
	if LevelFor(CategoryLocation) != LevelPrivate || LevelFor(CategoryBehavioral) != LevelPrivate {
		t.Fatalf("everything else is private")
	}
}

func TestStrategyFor(t *testing.T) {
	cases := map[Category]Strategy{
		CategoryFinancial:  StrategySuppress,
		CategoryHealth:     StrategySuppress,
		CategoryPersonal:   StrategyHash,
		CategoryLocation:   StrategyFuzz,
		CategoryBehavioral: StrategyNone,
	}
	for cat, want := range cases {
		if got := StrategyFor(cat); got != want {
			t.Fatalf("StrategyFor(%v) = %v, want %v", cat, got, want)
		}
	}
}

func TestHash_SaltedAndSized(t *testing.T) {
	a := NewAnonymizer("salt-a")
	b := NewAnonymizer("salt-b")

	h := a.Hash("value")
	if len(h) != 16 {
		t.Fatalf("hash length = %d, want 16", len(h))
	}
	if a.Hash("value") != h {
		t.Fatalf("hash must be deterministic")
	}
	if b.Hash("value") == h {
		t.Fatalf("different salts must produce different digests")
	}
	if uh := a.HashUserID("u1"); len(uh) != 32 || uh == "u1" {
		t.Fatalf("user hash = %q", uh)
	}
}

func TestRedactStreets(t *testing.T) {
	got := RedactStreets("I live at 123 Main Street in town")
	if got != "I live at [Address Redacted] in town" {
		t.Fatalf("redacted = %q", got)
	}
	got = RedactStreets("5 Oak Ave and also 99 Elm Blvd")
	if strings.Contains(got, "Oak") || strings.Contains(got, "Elm") {
		t.Fatalf("redacted = %q", got)
	}
	if clean := "no addresses in here"; RedactStreets(clean) != clean {
		t.Fatalf("clean text must pass through")
	}
}

func TestFuzzLocation(t *testing.T) {
	got := FuzzLocation(map[string]any{
		"latitude":      38.7223,
		"longitude":     -9.1393,
		"city":          "Lisbon",
		"country":       "PT",
		"address":       "lives at 123 Main Street",
		"precise_venue": "Cafe X",
	})
	if got["city"] != "Lisbon" || got["country"] != "PT" {
		t.Fatalf("coarse fields must survive: %v", got)
	}
	if got["latitude_approx"] != 38.7 || got["longitude_approx"] != -9.1 {
		t.Fatalf("coordinates = %v / %v", got["latitude_approx"], got["longitude_approx"])
	}
	if _, ok := got["latitude"]; ok {
		t.Fatalf("precise coordinates leaked: %v", got)
	}
	if got["address"] != "lives at [Address Redacted]" {
		t.Fatalf("address = %q", got["address"])
	}
	if _, ok := got["precise_venue"]; ok {
		t.Fatalf("unknown precise fields must drop: %v", got)
	}
}

func TestMasks(t *testing.T) {
	if got := MaskEmail("alice@example.com"); got != "al***@example.com" {
		t.Fatalf("email = %q", got)
	}
	if got := MaskEmail("a@b.c"); got != "a***@b.c" {
		t.Fatalf("short local = %q", got)
	}
	if got := MaskEmail("not-an-email"); got != "***" {
		t.Fatalf("invalid email = %q", got)
	}

	if got := MaskPhone("+351912345678"); got != "+35****78" {
		t.Fatalf("phone = %q", got)
	}
	if got := MaskPhone("123"); got != "****" {
		t.Fatalf("short phone = %q", got)
	}

	if got := MaskName("Ada Lovelace"); got != "A. L." {
		t.Fatalf("name = %q", got)
	}
	if got := MaskName("plato"); got != "P." {
		t.Fatalf("single name = %q", got)
	}
	if got := MaskName(""); got != "" {
		t.Fatalf("empty name = %q", got)
	}
}

func TestGeneralize(t *testing.T) {
	if got := Generalize(34); got != "30-39" {
		t.Fatalf("int = %v", got)
	}
	if got := Generalize(34.9); got != "30-39" {
		t.Fatalf("float = %v", got)
	}
	if got := Generalize("42"); got != "40-49" {
		t.Fatalf("numeric string = %v", got)
	}
	if got := Generalize("deep work session"); got != "deep" {
		t.Fatalf("string = %v", got)
	}
	if got := Generalize(true); got != true {
		t.Fatalf("bool = %v", got)
	}
}

func TestApply(t *testing.T) {
	a := NewAnonymizer("salt")

	v, applied := a.Apply("salary", 90000, StrategySuppress)
	if v != Redacted || !applied {
		t.Fatalf("suppress = %v, %v", v, applied)
	}

	v, applied = a.Apply("user_email", "alice@example.com", StrategyFuzz)
	if v != "al***@example.com" || !applied {
		t.Fatalf("email fuzz = %v", v)
	}

	v, applied = a.Apply("full_name", "Ada Lovelace", StrategyFuzz)
	if v != "A. L." || !applied {
		t.Fatalf("name fuzz = %v", v)
	}

	v, _ = a.Apply("nickname", "grace", StrategyHash)
	if v != a.Hash("grace") {
		t.Fatalf("hash strategy = %v", v)
	}

	v, applied = a.Apply("favorite_color", "green", StrategyNone)
	if v != "green" || applied {
		t.Fatalf("none = %v, %v", v, applied)
	}
}

func TestBuildEdgeContext(t *testing.T) {
	a := NewAnonymizer("salt")
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	edge := a.BuildEdgeContext("u1", "spatial", map[string]any{
		"email":          "alice@example.com",
		"home_city":      "Lisbon",
		"favorite_color": "green",
	}, at)

	if len(edge.ContextID) != 32 {
		t.Fatalf("context id = %q", edge.ContextID)
	}
	if edge.UserIDHash != a.HashUserID("u1") {
		t.Fatalf("user hash = %q", edge.UserIDHash)
	}
	if edge.TimestampEpoch != at.Unix() {
		t.Fatalf("epoch = %d", edge.TimestampEpoch)
	}
	if edge.TTLSeconds != DefaultEdgeTTLSeconds {
		t.Fatalf("ttl = %d", edge.TTLSeconds)
	}
	if edge.Payload["email"] != "al***@example.com" {
		t.Fatalf("email = %v", edge.Payload["email"])
	}
	if edge.Payload["favorite_color"] != "green" {
		t.Fatalf("behavioral value should pass through: %v", edge.Payload)
	}
	if edge.PrivacyLevel != LevelPII {
		t.Fatalf("level = %v", edge.PrivacyLevel)
	}
	if !edge.CanSyncToCloud || !edge.RequiresEncryption {
		t.Fatalf("pii record: sync=%v encrypt=%v", edge.CanSyncToCloud, edge.RequiresEncryption)
	}

	var sawEmail bool
	for _, tag := range edge.AnonymizationApplied {
		if tag == "email:fuzz" {
			sawEmail = true
		}
		if tag == "favorite_color:none" {
			t.Fatalf("untouched keys must not be tagged: %v", edge.AnonymizationApplied)
		}
	}
	if !sawEmail {
		t.Fatalf("applied = %v", edge.AnonymizationApplied)
	}
}

func TestBuildEdgeContext_SensitiveBlocksSync(t *testing.T) {
	a := NewAnonymizer("salt")
	edge := a.BuildEdgeContext("u1", "meta", map[string]any{
		"salary": 90000,
	}, time.Now())

	if edge.Payload["salary"] != Redacted {
		t.Fatalf("salary = %v", edge.Payload["salary"])
	}
	if edge.PrivacyLevel != LevelSensitive || edge.CanSyncToCloud {
		t.Fatalf("sensitive record must not sync: %+v", edge)
	}
	if !edge.RequiresEncryption {
		t.Fatalf("sensitive record must be encrypted at rest")
	}
}

func TestZKStore_CommitAndVerify(t *testing.T) {
	z := NewZKStore("salt")
	c := z.Commit("user:u1:home_city", "Lisbon", time.Hour)
	if c.Digest == "" || strings.Contains(c.Digest, "Lisbon") {
		t.Fatalf("commitment leaks value: %+v", c)
	}

	if !z.Verify("user:u1:home_city", "Lisbon") {
		t.Fatalf("correct value must verify")
	}
	if z.Verify("user:u1:home_city", "Porto") {
		t.Fatalf("wrong value must not verify")
	}
	if z.Verify("missing", "Lisbon") {
		t.Fatalf("missing key must not verify")
	}
}

func TestZKStore_ExpiryAndCleanup(t *testing.T) {
	z := NewZKStore("salt")
	t0 := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	z.now = func() time.Time { return t0 }

	z.Commit("k", "v", time.Hour)
	if !z.Verify("k", "v") {
		t.Fatalf("fresh commitment must verify")
	}

	z.now = func() time.Time { return t0.Add(2 * time.Hour) }
	if z.Verify("k", "v") {
		t.Fatalf("expired commitment must not verify")
	}
	if n := z.Cleanup(); n != 1 {
		t.Fatalf("cleanup removed %d, want 1", n)
	}
	if z.Len() != 0 {
		t.Fatalf("entries left = %d", z.Len())
	}
}
