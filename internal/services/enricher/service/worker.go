package service

import (
	"context"
	"time"

	"ralcore/internal/core/atomic"
	"ralcore/internal/core/memory"
	"ralcore/internal/core/snapshot"
	"ralcore/internal/platform/bus"
	ctxdom "ralcore/internal/services/contexts/domain"
)

// maxBackoff caps the error backoff on maintenance loops
const maxBackoff = 5 * time.Minute

// Run serves the resolution bus and starts the maintenance loops; it
// blocks until ctx ends
func (s *Svc) Run(ctx context.Context, b *bus.Bus) error {
	go s.loop(ctx, "decay-sweep", s.cfg.DecayEvery, s.sweepDecay)
	go s.loop(ctx, "ephemeral-cleanup", s.cfg.CleanupEvery, s.cleanupExpired)
	go s.loop(ctx, "auto-snapshot", s.cfg.SnapshotEvery, s.autoSnapshot)

	s.log.Info().Msg("enricher: serving resolution bus")
	return b.Serve(ctx, s.Enrich)
}

// loop runs fn on a ticker with exponential backoff on errors; the
// cadence resets after the first clean pass
func (s *Svc) loop(ctx context.Context, name string, every time.Duration, fn func(context.Context) error) {
	log := s.log.With().Str("loop", name).Logger()
	t := time.NewTicker(every)
	defer t.Stop()

	backoff := every
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := fn(ctx); err != nil {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				t.Reset(backoff)
				log.Warn().Err(err).Dur("retry_in", backoff).Msg("maintenance pass failed")
				continue
			}
			if backoff != every {
				backoff = every
				t.Reset(every)
			}
		}
	}
}

func (s *Svc) sweepDecay(ctx context.Context) error {
	sweep, err := s.Writer.ApplyDecay(ctx, s.now().Add(-s.cfg.DecayAfter))
	if err != nil {
		return err
	}
	if sweep.Decayed > 0 {
		s.log.Info().Int("scanned", sweep.Scanned).Int("decayed", sweep.Decayed).Msg("decay sweep")
	}
	return nil
}

func (s *Svc) cleanupExpired(ctx context.Context) error {
	n, err := s.Writer.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info().Int("purged", n).Msg("ephemeral cleanup")
	}
	return nil
}

// autoSnapshot captures state for every user whose snapshot interval
// has elapsed. Per-user failures are logged and the sweep continues
func (s *Svc) autoSnapshot(ctx context.Context) error {
	now := s.now()
	for _, uid := range s.Snaps.Users() {
		if !s.Snaps.ShouldAutoSnapshot(uid, now) {
			continue
		}
		rows, err := s.Reader.List(ctx, ctxdom.ListFilter{UserID: uid})
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", uid).Msg("auto-snapshot: list failed")
			continue
		}
		ac, _ := atomic.Build(atomic.Inputs{At: now, Timezone: storedTimezone(rows)})
		st := snapshot.StateFromRecords(ac, rows)
		if snap, took := s.Snaps.Take(uid, st, snapshot.TakeOpts{
			Trigger:     snapshot.TriggerScheduled,
			Description: "Scheduled snapshot",
		}); took {
			s.log.Info().Str("user_id", uid).Str("version", snap.Version.String()).Msg("auto-snapshot taken")
		}
	}
	return nil
}

func storedTimezone(rows []memory.Record) string {
	for _, r := range rows {
		if r.Type == memory.TypeSpatial && r.Key == "timezone" {
			if tz, ok := r.Value.(string); ok {
				return tz
			}
		}
	}
	return ""
}
