package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"ralcore/internal/core/memory"
	"ralcore/internal/core/situational"
	"ralcore/internal/platform/bus"
	perr "ralcore/internal/platform/errors"
	"ralcore/internal/services/api/universal/domain"
	auditdom "ralcore/internal/services/audit/domain"
	ctxdom "ralcore/internal/services/contexts/domain"
)

// fakeReader serves canned records
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

// fakeEnricher scripts the slow path
type fakeEnricher struct {
	resp  bus.Response
	ok    bool
	err   error
	calls int
}

func (f *fakeEnricher) Request(_ context.Context, _ bus.Request) (bus.Response, bool, error) {
	f.calls++
	return f.resp, f.ok, f.err
}

// fakeAudit records events in memory
type fakeAudit struct {
	events []auditdom.Event
}

func (f *fakeAudit) Record(_ context.Context, e auditdom.Event) { f.events = append(f.events, e) }

type fakeHasher struct{}

func (fakeHasher) HashUser(userID string) string { return "hash:" + userID }

func newTestSvc(reader *fakeReader, slow Enricher, audit *fakeAudit) *Svc {
	var rec auditRecorder
	if audit != nil {
		rec = audit
	}
	svc := New(reader, situational.NewTracker(), slow, rec, fakeHasher{}, Config{
		MaxTokens:     500,
		MinConfidence: 0.3,
	})
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC) }
	return svc
}

// auditRecorder mirrors auditdom.RecorderPort so a nil *fakeAudit stays
// a nil interface
type auditRecorder = auditdom.RecorderPort

func TestAugment_KeywordGatePassThrough(t *testing.T) {
	audit := &fakeAudit{}
	slow := &fakeEnricher{}
	svc := newTestSvc(&fakeReader{}, slow, audit)

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{Prompt: "hello friend"})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if out.Included {
		t.Fatal("non-contextual prompts pass through unchanged")
	}
	if out.Prompt != "hello friend" {
		t.Fatalf("prompt mutated: %q", out.Prompt)
	}
	if slow.calls != 0 {
		t.Fatal("gated prompts must not hit the slow path")
	}
	if len(audit.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(audit.events))
	}
}

func TestAugment_InjectsContext(t *testing.T) {
	audit := &fakeAudit{}
	svc := newTestSvc(&fakeReader{}, nil, audit)

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt:   "what should I do today",
		Provider: "anthropic",
		Timezone: "Europe/Lisbon",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if !out.Included {
		t.Fatal("temporal prompt should include context")
	}
	if out.SystemPrompt == "" || !strings.Contains(out.SystemPrompt, "<context>") {
		t.Fatalf("anthropic framing missing: %q", out.SystemPrompt)
	}
	if out.Prompt != "what should I do today" {
		t.Fatalf("system style must leave the prompt alone, got %q", out.Prompt)
	}
	if out.TokensUsed == 0 {
		t.Fatal("token estimate missing")
	}
	if len(out.Decisions) == 0 {
		t.Fatal("decisions must be reported")
	}
	if len(audit.events) != 1 || audit.events[0].UserHash != "hash:u1" {
		t.Fatalf("audit event = %+v", audit.events)
	}
}

func TestAugment_PrefixStyleRewritesPrompt(t *testing.T) {
	svc := newTestSvc(&fakeReader{}, nil, nil)

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt: "remind me about the meeting today",
		Format: "prefix",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if out.SystemPrompt != "" {
		t.Fatal("prefix style has no system prompt")
	}
	if !strings.HasSuffix(out.Prompt, "remind me about the meeting today") {
		t.Fatalf("prefix style prepends context, got %q", out.Prompt)
	}
	if out.Prompt == "remind me about the meeting today" {
		t.Fatal("prefix style must actually prepend context")
	}
}

func TestAugment_UnknownFormatRejected(t *testing.T) {
	svc := newTestSvc(&fakeReader{}, nil, nil)

	_, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt: "what time is it", Format: "sideways",
	})
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAugment_SlowPathTimeoutDegrades(t *testing.T) {
	audit := &fakeAudit{}
	slow := &fakeEnricher{ok: false}
	svc := newTestSvc(&fakeReader{}, slow, audit)

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt: "what should I do today",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if slow.calls != 1 {
		t.Fatalf("slow path calls = %d", slow.calls)
	}
	if !out.Metadata.SlowPathTimeout {
		t.Fatal("timeout must be flagged")
	}
	if out.Metadata.Enriched {
		t.Fatal("timed-out requests are not enriched")
	}
	if !out.Included {
		t.Fatal("fast path context is still injected on timeout")
	}
	if len(audit.events) != 1 || !audit.events[0].SlowPathTimeout {
		t.Fatalf("audit must carry the timeout flag: %+v", audit.events)
	}
}

func TestAugment_EnrichmentInsightsAppended(t *testing.T) {
	slow := &fakeEnricher{
		ok: true,
		resp: bus.Response{
			Enrichment: bus.Enrichment{Insights: []string{"Currently working on: the billing report"}},
		},
	}
	svc := newTestSvc(&fakeReader{}, slow, nil)

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt: "what should I do today",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if !out.Metadata.Enriched {
		t.Fatal("successful slow path marks the response enriched")
	}
	if !strings.Contains(out.Context, "billing report") {
		t.Fatalf("insights must land in the context text: %q", out.Context)
	}
}

func TestAugment_AnonymousSkipsSlowPathAndStore(t *testing.T) {
	slow := &fakeEnricher{ok: true}
	svc := newTestSvc(&fakeReader{}, slow, nil)

	out, err := svc.Augment(context.Background(), "anonymous", domain.AugmentInput{
		Prompt: "what should I do today",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if slow.calls != 0 {
		t.Fatal("anonymous callers never ride the slow path")
	}
	if !out.Included {
		t.Fatal("anonymous callers still get the fast path")
	}
}

func TestAugment_ForbiddenKeysNeverComposed(t *testing.T) {
	reader := &fakeReader{records: []memory.Record{
		{
			ID: "c1", UserID: "u1", Type: memory.TypeMeta, Tier: memory.TierShortTerm,
			Key: "github_api_key", Value: "sk-super-secret", Confidence: 0.9, IsActive: true,
		},
	}}
	svc := newTestSvc(reader, nil, nil)

	out, err := svc.Augment(context.Background(), "u1", domain.AugmentInput{
		Prompt: "remind me about this project today",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if strings.Contains(out.Context, "sk-super-secret") || strings.Contains(out.SystemPrompt, "sk-super-secret") {
		t.Fatal("forbidden keys must never reach the composed context")
	}
}

func TestContext_FastPath(t *testing.T) {
	svc := newTestSvc(&fakeReader{}, nil, nil)

	out, err := svc.Context(context.Background(), "Europe/Lisbon", "pt-PT")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if out.Atomic.Timezone != "Europe/Lisbon" {
		t.Fatalf("timezone = %q", out.Atomic.Timezone)
	}
	if out.Prompt == "" {
		t.Fatal("prompt line missing")
	}
}
