// Package service contains the context memory workflows: tiered
// storage, versioning, decay, corrections, and sessions
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ralcore/internal/core/compose"
	"ralcore/internal/core/memory"
	"ralcore/internal/modkit/repokit"
	"ralcore/internal/platform/logger"
	"ralcore/internal/platform/store/rds"
	ptime "ralcore/internal/platform/time"
	"ralcore/internal/services/contexts/domain"
	"ralcore/internal/services/contexts/repo"

	perr "ralcore/internal/platform/errors"
)

// Service is the full memory contract
type Service interface {
	domain.ReaderPort
	domain.WriterPort
}

// Config tunes lifetimes and conflict behavior
type Config struct {
	DecayHours       int
	EphemeralTTL     time.Duration
	ConflictStrategy memory.Strategy
	CacheTTL         time.Duration
}

func (c Config) normalize() Config {
	if c.DecayHours <= 0 {
		c.DecayHours = memory.DefaultDecayHours
	}
	if c.EphemeralTTL <= 0 {
		c.EphemeralTTL = memory.DefaultEphemeralTTL
	}
	if c.ConflictStrategy == "" {
		c.ConflictStrategy = memory.DefaultStrategy
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return c
}

// Svc implements Service over postgres with a redis read-through cache
type Svc struct {
	DB     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	cfg    Config

	// cache is optional; a nil cache degrades to store reads
	cache *rds.Cache
	now   func() time.Time
}

// New constructs the context memory service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage], cfg Config, cache *rds.Cache) *Svc {
	if db == nil {
		panic("contexts.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("contexts.Service requires a non nil Repo binder")
	}
	return &Svc{DB: db, binder: binder, cfg: cfg.normalize(), cache: cache, now: time.Now}
}

func (s *Svc) reader(q repokit.Queryer) repo.Storage { return s.binder.Bind(q) }

func recordCacheKey(id string) string    { return "ctx:" + id }
func userListCacheKey(uid string) string { return "user:" + uid }

func (s *Svc) cacheRecord(ctx context.Context, r memory.Record) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, recordCacheKey(r.ID), r, s.cfg.CacheTTL)
}

func (s *Svc) invalidate(ctx context.Context, contextID, userID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, recordCacheKey(contextID))
	_ = s.cache.Delete(ctx, userListCacheKey(userID))
}

// ==================== reads ====================

// GetByID returns one active record; expired ephemerals read as absent
func (s *Svc) GetByID(ctx context.Context, contextID string) (memory.Record, error) {
	now := s.now()

	if s.cache != nil {
		var cached memory.Record
		if err := s.cache.Get(ctx, recordCacheKey(contextID), &cached); err == nil {
			if !cached.IsActive || cached.Expired(now) {
				return memory.Record{}, perr.NotFoundf("context %s not found", contextID)
			}
			return s.withDecay(cached, now), nil
		}
	}

	var rec memory.Record
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		rec, err = s.reader(q).ByID(ctx, contextID)
		return err
	})
	if err != nil {
		return memory.Record{}, err
	}
	if !rec.IsActive || rec.Expired(now) {
		return memory.Record{}, perr.NotFoundf("context %s not found", contextID)
	}
	s.cacheRecord(ctx, rec)
	return s.withDecay(rec, now), nil
}

// List returns the user's active records under the filter; confidence
// is reported decayed but the stored value is untouched
func (s *Svc) List(ctx context.Context, f domain.ListFilter) ([]memory.Record, error) {
	if f.UserID == "" {
		return nil, perr.InvalidArgf("user_id is required")
	}
	now := s.now()

	unfiltered := f.Type == "" && f.Tier == "" && f.SessionID == "" && !f.IncludeExpired && f.Limit == 0
	if unfiltered && s.cache != nil {
		var cached []memory.Record
		if err := s.cache.Get(ctx, userListCacheKey(f.UserID), &cached); err == nil {
			return s.decayAll(dropExpired(cached, now), now), nil
		}
	}

	var rows []memory.Record
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		rows, err = s.reader(q).ListActive(ctx, f, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if unfiltered && s.cache != nil {
		_ = s.cache.Set(ctx, userListCacheKey(f.UserID), rows, s.cfg.CacheTTL)
	}
	return s.decayAll(rows, now), nil
}

// History returns version rows, newest first
func (s *Svc) History(ctx context.Context, contextID string, limit int) ([]domain.Version, error) {
	var out []domain.Version
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.reader(q).Versions(ctx, contextID, limit)
		return err
	})
	return out, err
}

// GetUser loads a user's defaults, creating the row on first sight
func (s *Svc) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		u, err = s.reader(q).EnsureUser(ctx, userID)
		return err
	})
	return u, err
}

// ActiveSession returns the user's open session if any
func (s *Svc) ActiveSession(ctx context.Context, userID string) (domain.Session, bool, error) {
	var sess domain.Session
	var ok bool
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		sess, ok, err = s.reader(q).ActiveSession(ctx, userID)
		return err
	})
	return sess, ok, err
}

// ==================== writes ====================

// Store creates the active record for (user, type, key) or reconciles
// with the existing one; a winning write appends a version row, a
// losing write leaves both the record and its history untouched
func (s *Svc) Store(ctx context.Context, in domain.StoreInput) (memory.Record, error) {
	if !in.Type.Valid() {
		return memory.Record{}, perr.InvalidArgf("unknown context type %q", in.Type)
	}
	if in.Tier == "" {
		in.Tier = memory.TierShortTerm
	}
	if !in.Tier.Valid() {
		return memory.Record{}, perr.InvalidArgf("unknown tier %q", in.Tier)
	}
	if in.Key == "" {
		return memory.Record{}, perr.InvalidArgf("key is required")
	}
	if compose.ForbiddenKey(in.Key) {
		return memory.Record{}, perr.InvalidArgf("key %q may not be stored", in.Key)
	}
	if in.Source == "" {
		in.Source = memory.SourceInference
	}
	if in.Confidence == 0 {
		in.Confidence = memory.DefaultConfidenceThreshold
	}
	in.Confidence = memory.ClampConfidence(in.Confidence)

	now := s.now().UTC()
	var out memory.Record

	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)

		user, err := r.EnsureUser(ctx, in.UserID)
		if err != nil {
			return err
		}

		existing, found, err := r.ActiveByKey(ctx, user.ID, in.Type, in.Key)
		if err != nil {
			return err
		}

		incoming := memory.Record{
			UserID:         user.ID,
			Type:           in.Type,
			Tier:           in.Tier,
			Key:            in.Key,
			Value:          in.Value,
			Interpretation: in.Interpretation,
			Confidence:     in.Confidence,
			Source:         in.Source,
			SourceDetails:  in.SourceDetails,
			SessionID:      in.SessionID,
			UpdatedAt:      now,
		}

		if found && !existing.Expired(now) {
			res := memory.ResolveConflict(existing, incoming, s.cfg.ConflictStrategy)
			if !res.IncomingWon {
				logger.C(ctx).Debug().
					Str("context_id", existing.ID).Str("key", in.Key).
					Str("reason", res.Reason).Msg("contexts: existing value kept")
				out = existing
				return nil
			}
			out, err = s.applyUpdate(ctx, r, existing, domain.UpdateInput{
				ContextID:      existing.ID,
				Value:          res.Value,
				Confidence:     &res.Confidence,
				Interpretation: in.Interpretation,
				Source:         res.Source,
				ChangeReason:   res.Reason,
			}, now)
			return err
		}

		// fresh insert; an expired leftover row is superseded in place
		incoming.ID = uuid.NewString()
		incoming.Version = 1
		incoming.IsActive = true
		incoming.DriftStatus = memory.DriftStable
		incoming.CreatedAt = now
		if in.Tier == memory.TierEphemeral {
			ttl := s.cfg.EphemeralTTL
			if in.TTLSeconds > 0 {
				ttl = time.Duration(in.TTLSeconds) * time.Second
			}
			incoming.ExpiresAt = ptime.Ptr(now.Add(ttl))
		}
		if found {
			if err := r.SoftDelete(ctx, existing.ID, now); err != nil {
				return err
			}
		}
		if err := r.InsertContext(ctx, incoming); err != nil {
			return err
		}
		if err := r.InsertVersion(ctx, domain.Version{
			ContextID:      incoming.ID,
			Version:        1,
			Value:          incoming.Value,
			Interpretation: incoming.Interpretation,
			Confidence:     incoming.Confidence,
			ChangedBy:      string(incoming.Source),
			ChangeReason:   "Initial creation",
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		out = incoming
		return nil
	})
	if err != nil {
		return memory.Record{}, err
	}

	s.invalidate(ctx, out.ID, out.UserID)
	s.cacheRecord(ctx, out)
	return out, nil
}

// Update mutates a record and appends the next version in the same
// transaction; a partial write is never observable
func (s *Svc) Update(ctx context.Context, in domain.UpdateInput) (memory.Record, error) {
	if in.ContextID == "" {
		return memory.Record{}, perr.InvalidArgf("context_id is required")
	}
	now := s.now().UTC()

	var out memory.Record
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		existing, err := r.ByIDForUpdate(ctx, in.ContextID)
		if err != nil {
			return err
		}
		out, err = s.applyUpdate(ctx, r, existing, in, now)
		return err
	})
	if err != nil {
		return memory.Record{}, err
	}

	s.invalidate(ctx, out.ID, out.UserID)
	s.cacheRecord(ctx, out)
	return out, nil
}

// applyUpdate is the single write path shared by Store, Update,
// corrections, and rollback; callers hold the transaction and must
// have read existing through a locking lookup so the version sequence
// stays gap-free under concurrent writers
func (s *Svc) applyUpdate(
	ctx context.Context,
	r repo.Storage,
	existing memory.Record,
	in domain.UpdateInput,
	now time.Time,
) (memory.Record, error) {
	prevValue := existing.Value

	next := existing
	if in.Value != nil {
		next.Value = in.Value
	}
	if in.Confidence != nil {
		next.Confidence = memory.ClampConfidence(*in.Confidence)
	}
	if in.Interpretation != nil {
		next.Interpretation = in.Interpretation
	}
	if in.Source != "" {
		next.Source = in.Source
	}
	next.UpdatedAt = now

	maxV, err := r.MaxVersion(ctx, existing.ID)
	if err != nil {
		return memory.Record{}, err
	}
	next.Version = maxV + 1

	if err := r.UpdateContext(ctx, next); err != nil {
		return memory.Record{}, err
	}
	if err := r.InsertVersion(ctx, domain.Version{
		ContextID:      next.ID,
		Version:        next.Version,
		Value:          next.Value,
		Interpretation: next.Interpretation,
		Confidence:     next.Confidence,
		PreviousValue:  prevValue,
		ChangedBy:      string(next.Source),
		ChangeReason:   in.ChangeReason,
		CreatedAt:      now,
	}); err != nil {
		return memory.Record{}, err
	}
	return next, nil
}

// Delete soft-deletes a record
func (s *Svc) Delete(ctx context.Context, contextID string) error {
	now := s.now().UTC()
	var userID string
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		rec, err := r.ByIDForUpdate(ctx, contextID)
		if err != nil {
			return err
		}
		userID = rec.UserID
		return r.SoftDelete(ctx, contextID, now)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, contextID, userID)
	return nil
}

// Confirm marks a record as user-verified: confidence rises, drift
// resets to stable, and the confirmation instant is recorded
func (s *Svc) Confirm(ctx context.Context, contextID string) (memory.Record, error) {
	now := s.now().UTC()
	var out memory.Record
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		rec, err := r.ByIDForUpdate(ctx, contextID)
		if err != nil {
			return err
		}
		rec.Confidence = memory.Confirm(rec.Confidence)
		rec.DriftStatus = memory.DriftStable
		rec.LastConfirmedAt = ptime.Ptr(now)
		rec.UpdatedAt = now
		if err := r.UpdateContext(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return memory.Record{}, err
	}
	s.invalidate(ctx, out.ID, out.UserID)
	s.cacheRecord(ctx, out)
	return out, nil
}

// RecordCorrection swaps in the corrected value, drops confidence, and
// flips the record to conflicting once corrections accumulate
func (s *Svc) RecordCorrection(ctx context.Context, contextID string, newValue any) (memory.Record, error) {
	now := s.now().UTC()
	var out memory.Record
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		rec, err := r.ByIDForUpdate(ctx, contextID)
		if err != nil {
			return err
		}

		count := rec.CorrectionCount + 1
		conf := memory.Correct(rec.Confidence, count)

		rec.CorrectionCount = count
		if count >= memory.CorrectionLimit {
			rec.DriftStatus = memory.DriftConflicting
		}

		out, err = s.applyUpdate(ctx, r, rec, domain.UpdateInput{
			ContextID:    contextID,
			Value:        newValue,
			Confidence:   &conf,
			Source:       memory.SourceUserCorrection,
			ChangeReason: "User correction",
		}, now)
		return err
	})
	if err != nil {
		return memory.Record{}, err
	}
	s.invalidate(ctx, out.ID, out.UserID)
	s.cacheRecord(ctx, out)
	return out, nil
}

// Rollback reinstates the value at an older version by appending a new
// version; history is never rewound
func (s *Svc) Rollback(ctx context.Context, contextID string, toVersion int) (memory.Record, error) {
	if toVersion < 1 {
		return memory.Record{}, perr.InvalidArgf("version must be >= 1")
	}
	now := s.now().UTC()
	var out memory.Record
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		rec, err := r.ByIDForUpdate(ctx, contextID)
		if err != nil {
			return err
		}
		target, err := r.VersionAt(ctx, contextID, toVersion)
		if err != nil {
			return err
		}
		out, err = s.applyUpdate(ctx, r, rec, domain.UpdateInput{
			ContextID:      contextID,
			Value:          target.Value,
			Confidence:     &target.Confidence,
			Interpretation: target.Interpretation,
			Source:         memory.SourceRollback,
			ChangeReason:   fmt.Sprintf("Rollback to version %d", toVersion),
		}, now)
		return err
	})
	if err != nil {
		return memory.Record{}, err
	}
	s.invalidate(ctx, out.ID, out.UserID)
	s.cacheRecord(ctx, out)
	return out, nil
}

// UpdateDriftStatus persists a drift verdict without touching the
// value or its version history
func (s *Svc) UpdateDriftStatus(ctx context.Context, contextID string, status memory.DriftStatus) error {
	var userID string
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		rec, err := r.ByIDForUpdate(ctx, contextID)
		if err != nil {
			return err
		}
		userID = rec.UserID
		if rec.DriftStatus == status {
			return nil
		}
		return r.SetDriftStatus(ctx, contextID, status)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, contextID, userID)
	return nil
}

// ApplyDecay sweeps short-term records older than the threshold,
// shrinking confidence toward the floor and marking them stale
func (s *Svc) ApplyDecay(ctx context.Context, olderThan time.Time) (domain.DecaySweep, error) {
	if olderThan.IsZero() {
		olderThan = s.now().Add(-time.Duration(s.cfg.DecayHours) * time.Hour)
	}

	var sweep domain.DecaySweep
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		rows, err := r.DecayCandidates(ctx, olderThan, 0)
		if err != nil {
			return err
		}
		sweep.Scanned = len(rows)
		for _, rec := range rows {
			decayed := rec.Confidence * memory.DecayMultiplier
			if decayed < memory.ConfidenceFloor {
				decayed = memory.ConfidenceFloor
			}
			if decayed == rec.Confidence && rec.DriftStatus == memory.DriftStale {
				continue
			}
			if err := r.SetDecayed(ctx, rec.ID, decayed, memory.DriftStale); err != nil {
				return err
			}
			s.invalidate(ctx, rec.ID, rec.UserID)
			sweep.Decayed++
		}
		return nil
	})
	return sweep, err
}

// CleanupExpired deletes ephemeral records past their expiry
func (s *Svc) CleanupExpired(ctx context.Context) (int, error) {
	var n int
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		n, err = s.reader(q).DeleteExpiredEphemeral(ctx, s.now().UTC())
		return err
	})
	return n, err
}

// StartSession opens a new conversation window
func (s *Svc) StartSession(ctx context.Context, userID string, clientInfo map[string]any) (domain.Session, error) {
	now := s.now().UTC()
	sess := domain.Session{
		SessionID:      uuid.NewString(),
		UserID:         userID,
		StartedAt:      now,
		LastActivityAt: now,
		ClientInfo:     clientInfo,
	}
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		user, err := r.EnsureUser(ctx, userID)
		if err != nil {
			return err
		}
		sess.UserID = user.ID
		return r.InsertSession(ctx, sess)
	})
	if err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// EndSession closes the session and expires its session-scoped records
func (s *Svc) EndSession(ctx context.Context, userID, sessionID string) error {
	now := s.now().UTC()
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.reader(q)
		if err := r.EndSession(ctx, sessionID, now); err != nil {
			return err
		}
		n, err := r.DeactivateSessionScoped(ctx, userID, sessionID, now)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.C(ctx).Debug().Int("expired", n).
				Str("session_id", sessionID).Msg("contexts: session scoped records expired")
			s.invalidate(ctx, "", userID)
		}
		return nil
	})
}

// ==================== decay-on-read helpers ====================

// withDecay reports the effective confidence of aged short-term
// records; fresh reads come back exactly as stored
func (s *Svc) withDecay(r memory.Record, at time.Time) memory.Record {
	if r.Tier != memory.TierShortTerm {
		return r
	}
	if r.Age(at) <= time.Duration(s.cfg.DecayHours)*time.Hour {
		return r
	}
	r.Confidence = memory.DecayRecord(r, at)
	return r
}

func (s *Svc) decayAll(rows []memory.Record, at time.Time) []memory.Record {
	out := make([]memory.Record, len(rows))
	for i, r := range rows {
		out[i] = s.withDecay(r, at)
	}
	return out
}

func dropExpired(rows []memory.Record, at time.Time) []memory.Record {
	out := rows[:0:0]
	for _, r := range rows {
		if !r.Expired(at) {
			out = append(out, r)
		}
	}
	return out
}
