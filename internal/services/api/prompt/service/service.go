// Package service augments prompts with per-type inclusion decisions
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"ralcore/internal/core/compose"
	"ralcore/internal/core/memory"
	"ralcore/internal/core/situational"
	"ralcore/internal/core/spatial"
	"ralcore/internal/core/temporal"
	"ralcore/internal/platform/logger"
	"ralcore/internal/services/api/prompt/domain"
	auditdom "ralcore/internal/services/audit/domain"
	ctxdom "ralcore/internal/services/contexts/domain"

	perr "ralcore/internal/platform/errors"
)

// Hasher anonymizes user ids for the audit stream
type Hasher interface {
	HashUser(userID string) string
}

// Service is the prompt augmentation contract
type Service interface {
	Augment(ctx context.Context, userID string, in domain.AugmentInput) (domain.AugmentOutput, error)
}

// Config tunes composition
type Config struct {
	MaxTokens     int
	MinConfidence float64
}

// Svc implements Service
type Svc struct {
	Reader  ctxdom.ReaderPort
	Tracker *situational.Tracker
	Audit   auditdom.RecorderPort
	Hash    Hasher

	cfg Config
	now func() time.Time
	log *logger.Logger
}

// New constructs the prompt augmentation service
func New(reader ctxdom.ReaderPort, tracker *situational.Tracker, audit auditdom.RecorderPort, hash Hasher, cfg Config) *Svc {
	if reader == nil {
		panic("prompt service requires the memory reader port")
	}
	if tracker == nil {
		tracker = situational.NewTracker()
	}
	return &Svc{
		Reader:  reader,
		Tracker: tracker,
		Audit:   audit,
		Hash:    hash,
		cfg:     cfg,
		now:     time.Now,
		log:     logger.Named("prompt"),
	}
}

const anonymousUser = "anonymous"

// decide builds the per-type verdicts from keyword signals and any
// explicit includes
func decide(sig compose.QuerySignals, include []string) []domain.TypeDecision {
	forced := map[string]bool{}
	for _, t := range include {
		forced[strings.ToLower(t)] = true
	}

	verdict := func(typ string, signal float64, hasRef, noRef string) domain.TypeDecision {
		switch {
		case forced[typ]:
			return domain.TypeDecision{Type: typ, Included: true, Reason: "explicitly_requested"}
		case signal > 0:
			return domain.TypeDecision{Type: typ, Included: true, Reason: hasRef}
		default:
			return domain.TypeDecision{Type: typ, Included: false, Reason: noRef}
		}
	}

	return []domain.TypeDecision{
		verdict("temporal", sig.Temporal, "contains_time_reference", "no_time_reference"),
		verdict("spatial", sig.Spatial, "contains_location_reference", "no_location_reference"),
		verdict("situational", sig.Situational, "contains_situational_reference", "no_situational_reference"),
	}
}

// Augment composes context per the decided types and injects it
func (s *Svc) Augment(ctx context.Context, userID string, in domain.AugmentInput) (domain.AugmentOutput, error) {
	if userID == "" {
		userID = anonymousUser
	}
	style := compose.Style(in.InjectionStyle)
	if in.InjectionStyle == "" {
		style = compose.StyleSystem
	}
	if !style.Valid() {
		return domain.AugmentOutput{}, perr.InvalidArgf("unknown injection style %q", in.InjectionStyle)
	}
	provider := in.Provider
	if provider == "" {
		provider = "generic"
	}

	now := s.now()
	requestID := uuid.NewString()

	sig := compose.AnalyzeQuery(in.Prompt)
	decisions := decide(sig, in.Include)
	included := map[string]bool{}
	anyIncluded := false
	for _, d := range decisions {
		included[d.Type] = d.Included
		anyIncluded = anyIncluded || d.Included
	}

	out := domain.AugmentOutput{
		Prompt:    in.Prompt,
		Decisions: decisions,
		RequestID: requestID,
	}
	if !anyIncluded {
		return out, nil
	}

	s.Tracker.Observe(userID, in.SessionID, in.Prompt)

	inputs := compose.Inputs{Query: in.Prompt}
	if included["temporal"] {
		tc := temporal.Interpret(now, in.Timezone, nil)
		inputs.Temporal = &tc
	}
	if included["spatial"] && in.Locale != "" {
		c := spatial.Interpret(spatial.Signals{Locale: in.Locale, Timezone: in.Timezone})
		inputs.Spatial = &c
	}
	if included["situational"] {
		a := s.Tracker.Assume(userID, in.SessionID)
		inputs.Assumptions = &a
		if snap := s.Tracker.Snapshot(userID, in.SessionID); snap.Thread != nil {
			inputs.MessageCount = snap.Thread.MessageCount
		}
	}
	if userID != anonymousUser {
		rows, err := s.Reader.List(ctx, ctxdom.ListFilter{UserID: userID})
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("prompt: stored context unavailable")
		} else {
			inputs.Extra = filterByType(rows, included)
		}
	}

	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.MaxTokens
	}
	composed := compose.Compose(inputs, compose.Config{
		MaxTokens:     maxTokens,
		MinConfidence: s.cfg.MinConfidence,
		Format:        compose.FormatSystemPrompt,
	})
	if len(composed.Elements) == 0 {
		out.Elements = composed.Decisions
		return out, nil
	}

	contextText := composed.Text
	if limit := maxTokens * 4; limit > 0 && len(contextText) > limit {
		contextText = truncate(contextText, limit)
		out.Truncated = true
	}

	framed := compose.Frame(provider, contextText)
	sys, prompt := compose.Inject(style, in.Prompt, framed)

	out.Prompt = prompt
	out.SystemPrompt = sys
	out.Context = contextText
	out.Elements = composed.Decisions
	out.Metadata = composed.Metadata
	out.TokensUsed = compose.EstimateTokens(contextText)

	s.audit(ctx, userID, provider, out, composed)
	return out, nil
}

// truncate cuts s at limit bytes, backing up so a multi-byte rune is
// never split
func truncate(s string, limit int) string {
	if limit >= len(s) {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}

func filterByType(rows []memory.Record, included map[string]bool) []memory.Record {
	out := rows[:0:0]
	for _, r := range rows {
		typ := string(r.Type)
		if typ == string(memory.TypeMeta) || included[typ] {
			out = append(out, r)
		}
	}
	return out
}

func (s *Svc) audit(ctx context.Context, userID, provider string, out domain.AugmentOutput, composed compose.Composed) {
	if s.Audit == nil {
		return
	}
	hash := ""
	if s.Hash != nil {
		hash = s.Hash.HashUser(userID)
	}
	s.Audit.Record(ctx, auditdom.Event{
		At:            s.now().UTC(),
		RequestID:     out.RequestID,
		UserHash:      hash,
		Surface:       "prompt",
		Provider:      provider,
		Included:      len(composed.Elements),
		Excluded:      len(composed.Decisions) - len(composed.Elements),
		ContextTokens: out.TokensUsed,
	})
}
