// Package service augments prompts with composed context for any
// provider, combining the fast path with bus enrichment
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"ralcore/internal/core/atomic"
	"ralcore/internal/core/compose"
	"ralcore/internal/core/memory"
	"ralcore/internal/core/situational"
	"ralcore/internal/core/spatial"
	"ralcore/internal/core/telemetry"
	"ralcore/internal/core/temporal"
	"ralcore/internal/platform/bus"
	"ralcore/internal/platform/logger"
	"ralcore/internal/services/api/universal/domain"
	auditdom "ralcore/internal/services/audit/domain"
	ctxdom "ralcore/internal/services/contexts/domain"

	perr "ralcore/internal/platform/errors"
)

// Enricher is the slow-path seam; *bus.Bus satisfies it and tests can
// fake it
type Enricher interface {
	Request(ctx context.Context, req bus.Request) (bus.Response, bool, error)
}

// Hasher anonymizes user ids for the audit stream
type Hasher interface {
	HashUser(userID string) string
}

// Service is the universal augmentation contract
type Service interface {
	Augment(ctx context.Context, userID string, in domain.AugmentInput) (domain.AugmentOutput, error)
	Context(ctx context.Context, tz, locale string) (domain.ContextOutput, error)
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
	Slow    Enricher              // nil disables the slow path
	Audit   auditdom.RecorderPort // nil disables the audit stream
	Hash    Hasher

	cfg Config
	now func() time.Time
	log *logger.Logger
}

// New constructs the universal augmentation service
func New(reader ctxdom.ReaderPort, tracker *situational.Tracker, slow Enricher, audit auditdom.RecorderPort, hash Hasher, cfg Config) *Svc {
	if reader == nil {
		panic("universal service requires the memory reader port")
	}
	if tracker == nil {
		tracker = situational.NewTracker()
	}
	return &Svc{
		Reader:  reader,
		Tracker: tracker,
		Slow:    slow,
		Audit:   audit,
		Hash:    hash,
		cfg:     cfg,
		now:     time.Now,
		log:     logger.Named("universal"),
	}
}

const anonymousUser = "anonymous"

// Augment composes context for the prompt and injects it per the
// requested provider and format
func (s *Svc) Augment(ctx context.Context, userID string, in domain.AugmentInput) (domain.AugmentOutput, error) {
	if userID == "" || userID == anonymousUser {
		if in.UserID != "" {
			userID = in.UserID
		} else {
			userID = anonymousUser
		}
	}

	style := compose.Style(in.Format)
	if in.Format == "" {
		style = compose.StyleSystem
	}
	if !style.Valid() {
		return domain.AugmentOutput{}, perr.InvalidArgf("unknown format %q", in.Format)
	}
	provider := in.Provider
	if provider == "" {
		provider = "generic"
	}

	now := s.now()
	requestID := uuid.NewString()

	fastStart := time.Now()
	ac, _ := atomic.Build(atomic.Inputs{At: now, Timezone: in.Timezone, Locale: in.Locale})
	fastMillis := float64(time.Since(fastStart).Microseconds()) / 1000

	out := domain.AugmentOutput{
		Prompt:   in.Prompt,
		Atomic:   ac,
		Provider: provider,
		Format:   string(style),
		Metadata: domain.AugmentMetadata{RequestID: requestID, FastPathMillis: fastMillis},
	}

	// keyword gate: prompts with no contextual lean pass through
	sig := compose.AnalyzeQuery(in.Prompt)
	if sig.Temporal == 0 && sig.Spatial == 0 && sig.Situational == 0 {
		s.audit(ctx, userID, provider, "universal", out)
		return out, nil
	}

	s.Tracker.Observe(userID, in.SessionID, in.Prompt)
	assumptions := s.Tracker.Assume(userID, in.SessionID)
	snap := s.Tracker.Snapshot(userID, in.SessionID)
	messageCount := 0
	if snap.Thread != nil {
		messageCount = snap.Thread.MessageCount
	}

	tc := temporal.Interpret(now, in.Timezone, nil)
	var sc *spatial.Context
	if in.Locale != "" {
		c := spatial.Interpret(spatial.Signals{Locale: in.Locale, Timezone: in.Timezone})
		sc = &c
	}

	var stored []memory.Record
	if userID != anonymousUser {
		rows, err := s.Reader.List(ctx, ctxdom.ListFilter{UserID: userID})
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("universal: stored context unavailable")
		} else {
			stored = rows
		}
	}

	// slow path: bounded wait for the enricher, degrade on timeout
	var enrichment *bus.Enrichment
	if s.Slow != nil && userID != anonymousUser {
		slowStart := time.Now()
		resp, ok, err := s.Slow.Request(ctx, bus.Request{
			RequestID: requestID,
			UserID:    userID,
			Query:     in.Prompt,
			Priority:  "normal",
			CreatedAt: now,
		})
		out.Metadata.SlowPathMillis = float64(time.Since(slowStart).Microseconds()) / 1000
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("request_id", requestID).Msg("universal: slow path failed")
		case !ok:
			out.Metadata.SlowPathTimeout = true
		default:
			enrichment = &resp.Enrichment
			out.Metadata.Enriched = true
		}
	}

	composed := compose.Compose(compose.Inputs{
		Query:        in.Prompt,
		Temporal:     &tc,
		Spatial:      sc,
		Assumptions:  &assumptions,
		MessageCount: messageCount,
		Extra:        stored,
	}, compose.Config{
		MaxTokens:     pick(in.MaxTokens, s.cfg.MaxTokens),
		MinConfidence: s.cfg.MinConfidence,
		Format:        compose.FormatSystemPrompt,
	})

	contextText := composed.Text
	if enrichment != nil && len(enrichment.Insights) > 0 {
		contextText += "\n" + strings.Join(enrichment.Insights, "\n")
	}
	if in.Device != nil {
		assessment := telemetry.Assess(*in.Device)
		if hw := assessment.SystemPrompt(); hw != "" {
			contextText += "\n" + hw
		}
	}

	if len(composed.Elements) == 0 || contextText == "" {
		out.Decisions = composed.Decisions
		s.audit(ctx, userID, provider, "universal", out)
		return out, nil
	}

	framed := compose.Frame(provider, contextText)
	sys, prompt := compose.Inject(style, in.Prompt, framed)

	out.Prompt = prompt
	out.SystemPrompt = sys
	out.Context = contextText
	out.Included = true
	out.TokensUsed = compose.EstimateTokens(contextText)
	out.Decisions = composed.Decisions
	out.Metadata.Elements = len(composed.Elements)
	out.Metadata.Excluded = len(composed.Decisions) - len(composed.Elements)
	out.Metadata.ContextVersion = composed.Metadata.ContextVersion

	s.audit(ctx, userID, provider, "universal", out)
	return out, nil
}

// Context returns the fast-path context alone
func (s *Svc) Context(_ context.Context, tz, locale string) (domain.ContextOutput, error) {
	ac, _ := atomic.Build(atomic.Inputs{At: s.now(), Timezone: tz, Locale: locale})
	tc := temporal.Interpret(s.now(), tz, nil)
	return domain.ContextOutput{Atomic: ac, Prompt: tc.PromptLine()}, nil
}

func (s *Svc) audit(ctx context.Context, userID, provider, surface string, out domain.AugmentOutput) {
	if s.Audit == nil {
		return
	}
	hash := ""
	if s.Hash != nil {
		hash = s.Hash.HashUser(userID)
	}
	s.Audit.Record(ctx, auditdom.Event{
		At:              s.now().UTC(),
		RequestID:       out.Metadata.RequestID,
		UserHash:        hash,
		Surface:         surface,
		Provider:        provider,
		Included:        out.Metadata.Elements,
		Excluded:        out.Metadata.Excluded,
		ContextTokens:   out.TokensUsed,
		FastPathMillis:  out.Metadata.FastPathMillis,
		SlowPathMillis:  out.Metadata.SlowPathMillis,
		SlowPathTimeout: out.Metadata.SlowPathTimeout,
	})
}

func pick(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
