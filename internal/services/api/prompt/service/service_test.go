package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"ralcore/internal/core/compose"
	"ralcore/internal/core/memory"
	"ralcore/internal/core/situational"
	perr "ralcore/internal/platform/errors"
	"ralcore/internal/services/api/prompt/domain"
	ctxdom "ralcore/internal/services/contexts/domain"
)

type fakeReader struct {
	records []memory.Record
}

func (f *fakeReader) GetByID(_ context.Context, _ string) (memory.Record, error) {
	return memory.Record{}, nil
}

func (f *fakeReader) List(_ context.Context, _ ctxdom.ListFilter) ([]memory.Record, error) {
	return f.records, nil
}

func (f *fakeReader) History(_ context.Context, _ string, _ int) ([]ctxdom.Version, error) {
	return nil, nil
}

func (f *fakeReader) GetUser(_ context.Context, _ string) (ctxdom.User, error) {
	return ctxdom.User{}, nil
}

func (f *fakeReader) ActiveSession(_ context.Context, _ string) (ctxdom.Session, bool, error) {
	return ctxdom.Session{}, false, nil
}

func newTestSvc(reader *fakeReader) *Svc {
	svc := New(reader, situational.NewTracker(), nil, nil, Config{MaxTokens: 500, MinConfidence: 0.3})
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC) }
	return svc
}

func decisionFor(t *testing.T, ds []domain.TypeDecision, typ string) domain.TypeDecision {
	t.Helper()
	for _, d := range ds {
		if d.Type == typ {
			return d
		}
	}
	t.Fatalf("no decision for type %q in %v", typ, ds)
	return domain.TypeDecision{}
}

func TestDecide_KeywordSignals(t *testing.T) {
	sig := compose.AnalyzeQuery("what's the weather like tomorrow")
	ds := decide(sig, nil)

	temporal := decisionFor(t, ds, "temporal")
	if !temporal.Included || temporal.Reason != "contains_time_reference" {
		t.Fatalf("temporal = %+v", temporal)
	}
	spatial := decisionFor(t, ds, "spatial")
	if !spatial.Included || spatial.Reason != "contains_location_reference" {
		t.Fatalf("spatial = %+v", spatial)
	}
	situationalD := decisionFor(t, ds, "situational")
	if situationalD.Included || situationalD.Reason != "no_situational_reference" {
		t.Fatalf("situational = %+v", situationalD)
	}
}

func TestDecide_ExplicitIncludeWins(t *testing.T) {
	sig := compose.AnalyzeQuery("hello friend")
	ds := decide(sig, []string{"Spatial"})

	spatial := decisionFor(t, ds, "spatial")
	if !spatial.Included || spatial.Reason != "explicitly_requested" {
		t.Fatalf("spatial = %+v", spatial)
	}
	temporal := decisionFor(t, ds, "temporal")
	if temporal.Included {
		t.Fatalf("temporal = %+v", temporal)
	}
}

func TestAugment_NoSignalsPassThrough(t *testing.T) {
	svc := newTestSvc(&fakeReader{})

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{Prompt: "hello friend"})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if out.Prompt != "hello friend" || out.Context != "" {
		t.Fatalf("pass-through violated: %+v", out)
	}
	if len(out.Decisions) != 3 {
		t.Fatalf("decisions = %v", out.Decisions)
	}
}

func TestAugment_TemporalOnly(t *testing.T) {
	svc := newTestSvc(&fakeReader{})

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt:   "remind me about the meeting today",
		Timezone: "Europe/Lisbon",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if out.SystemPrompt == "" {
		t.Fatal("expected a system prompt with context")
	}
	if !strings.Contains(out.Context, "Time & Date") {
		t.Fatalf("temporal section missing: %q", out.Context)
	}
	if strings.Contains(out.Context, "Location") {
		t.Fatalf("spatial context must stay out: %q", out.Context)
	}
}

func TestAugment_FiltersStoredByDecision(t *testing.T) {
	reader := &fakeReader{records: []memory.Record{
		{ID: "c1", UserID: "u1", Type: memory.TypeSpatial, Key: "city", Value: "Lisbon", Confidence: 0.9, IsActive: true},
		{ID: "c2", UserID: "u1", Type: memory.TypeMeta, Key: "plan", Value: "pro", Confidence: 0.9, IsActive: true},
	}}
	svc := newTestSvc(reader)

	// temporal-only prompt: the spatial record is filtered, meta rides along
	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt: "remind me about the meeting today",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if strings.Contains(out.Context, "Lisbon") {
		t.Fatalf("undecided spatial record leaked: %q", out.Context)
	}
}

func TestAugment_UnknownStyleRejected(t *testing.T) {
	svc := newTestSvc(&fakeReader{})

	_, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt: "what time is it", InjectionStyle: "sideways",
	})
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAugment_TruncatesAtTokenBudget(t *testing.T) {
	svc := newTestSvc(&fakeReader{})

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt:    "remind me about the meeting today",
		MaxTokens: 40,
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if !out.Truncated {
		t.Fatal("tiny budgets must truncate")
	}
	if !strings.HasSuffix(out.Context, "...") {
		t.Fatalf("truncated context = %q", out.Context)
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("é", 50) // two bytes per rune

	got := truncate(s, 33) // byte 33 is mid-rune
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if len(got) != 32+3 {
		t.Fatalf("expected cut back to the rune boundary, got %d bytes", len(got))
	}

	if got := truncate("short", 10); got != "short" {
		t.Fatalf("strings within the limit pass through, got %q", got)
	}
}
