// Package service grades stored context health and persists drift
// status transitions
package service

import (
	"context"
	"time"

	"ralcore/internal/core/drift"
	"ralcore/internal/core/memory"
	"ralcore/internal/platform/logger"
	"ralcore/internal/services/api/drift/domain"
	ctxdom "ralcore/internal/services/contexts/domain"
)

// Service is the drift API contract
type Service interface {
	Status(ctx context.Context, userID string) (domain.StatusOutput, error)
}

// Svc implements Service
type Svc struct {
	Reader ctxdom.ReaderPort
	Writer ctxdom.WriterPort

	opts drift.Options
	now  func() time.Time
	log  *logger.Logger
}

// New constructs the drift service
func New(reader ctxdom.ReaderPort, writer ctxdom.WriterPort, opts drift.Options) *Svc {
	if reader == nil || writer == nil {
		panic("drift service requires reader and writer ports")
	}
	return &Svc{Reader: reader, Writer: writer, opts: opts, now: time.Now, log: logger.Named("drift")}
}

// Status detects drift across the user's records, persists status
// transitions, and grades per-type and overall health
func (s *Svc) Status(ctx context.Context, userID string) (domain.StatusOutput, error) {
	now := s.now()
	rows, err := s.Reader.List(ctx, ctxdom.ListFilter{UserID: userID})
	if err != nil {
		return domain.StatusOutput{}, err
	}

	signals := drift.Detect(rows, now, s.opts)
	report := drift.BuildReport(rows, signals)

	// persist transitions so later reads see the verdicts; best-effort,
	// a failed write never fails the status read
	for _, r := range rows {
		next := drift.UpdateStatus(r, signals)
		if next != r.DriftStatus {
			if err := s.Writer.UpdateDriftStatus(ctx, r.ID, next); err != nil {
				s.log.Warn().Err(err).Str("context_id", r.ID).Msg("drift: status write failed")
			}
		}
	}

	score := 1 - report.Health
	out := domain.StatusOutput{
		Overall:         overallFor(score),
		DriftScore:      score,
		Health:          report.Health,
		Types:           map[string]domain.TypeStatus{},
		Signals:         signals,
		Recommendations: report.Recommendations,
		CheckedAt:       now,
	}

	byType := map[memory.Type][]memory.Record{}
	for _, r := range rows {
		byType[r.Type] = append(byType[r.Type], r)
	}
	for _, typ := range memory.Types() {
		out.Types[string(typ)] = s.typeStatus(byType[typ], signals, now)
	}
	return out, nil
}

func overallFor(score float64) string {
	switch {
	case score < 0.3:
		return "healthy"
	case score < 0.6:
		return "needs_refresh"
	default:
		return "stale"
	}
}

// typeStatus grades one context type from its records and the signals
// that touch them
func (s *Svc) typeStatus(records []memory.Record, signals []drift.Signal, now time.Time) domain.TypeStatus {
	if len(records) == 0 {
		return domain.TypeStatus{Status: "unknown", DriftScore: 0}
	}

	var worst float64
	for _, sig := range signals {
		touched := false
		for _, r := range records {
			if sig.Touches(r) {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		if sig.Severity > worst {
			worst = sig.Severity
		}
	}

	status := "fresh"
	recommendation := ""
	for _, r := range records {
		if drift.ShouldRefresh(r, now, s.opts) || r.DriftStatus == memory.DriftStale || r.DriftStatus == memory.DriftConflicting {
			status = "stale"
			recommendation = "Ask the user to confirm this context"
			break
		}
	}

	var lastConfirmed *time.Time
	for _, r := range records {
		if r.LastConfirmedAt == nil {
			continue
		}
		if lastConfirmed == nil || r.LastConfirmedAt.After(*lastConfirmed) {
			lastConfirmed = r.LastConfirmedAt
		}
	}

	return domain.TypeStatus{
		Status:         status,
		DriftScore:     worst,
		LastConfirmed:  lastConfirmed,
		Recommendation: recommendation,
	}
}
