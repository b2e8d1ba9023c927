// Package service implements the context API workflows over the
// memory ports and the snapshot history
package service

import (
	"context"
	"strings"
	"time"

	"ralcore/internal/core/atomic"
	"ralcore/internal/core/memory"
	"ralcore/internal/core/resolve"
	"ralcore/internal/core/snapshot"
	"ralcore/internal/core/spatial"
	"ralcore/internal/core/temporal"
	"ralcore/internal/services/api/contexts/domain"
	ctxdom "ralcore/internal/services/contexts/domain"

	perr "ralcore/internal/platform/errors"
)

// Service is the context API contract
type Service interface {
	Resolve(ctx context.Context, userID string, in domain.ResolveInput) (domain.ResolveOutput, error)
	Snapshot(ctx context.Context, userID, tz, locale string) (domain.SnapshotOutput, error)
	Update(ctx context.Context, userID string, in domain.UpdateInput) (memory.Record, error)

	Memory(ctx context.Context, userID string, in domain.MemoryInput) ([]memory.Record, error)
	Confirm(ctx context.Context, contextID string) (memory.Record, error)
	Correct(ctx context.Context, contextID string, value any) (memory.Record, error)
	HistoryOf(ctx context.Context, contextID string, limit int) ([]domain.Version, error)
	Rollback(ctx context.Context, contextID string, version int) (memory.Record, error)

	StartSession(ctx context.Context, userID string, in domain.SessionInput) (domain.Session, error)
	EndSession(ctx context.Context, userID, sessionID string) error

	Snapshots(ctx context.Context, userID string, limit int) ([]snapshot.Snapshot, error)
	RestoreSnapshot(ctx context.Context, userID string, in domain.RestoreInput) (domain.RestoreOutput, error)
}

// Svc implements Service
type Svc struct {
	Reader ctxdom.ReaderPort
	Writer ctxdom.WriterPort
	Snaps  *snapshot.History

	now func() time.Time
}

// New constructs the context API service
func New(reader ctxdom.ReaderPort, writer ctxdom.WriterPort, snaps *snapshot.History) *Svc {
	if reader == nil || writer == nil {
		panic("contexts API service requires reader and writer ports")
	}
	if snaps == nil {
		snaps = snapshot.NewHistory()
	}
	return &Svc{Reader: reader, Writer: writer, Snaps: snaps, now: time.Now}
}

// timestampLayouts accepted on resolve input, tried in order
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, perr.InvalidArgf("invalid timestamp %q", s)
}

// quickRefs are always answered on resolve, query or not
var quickRefs = []string{"today", "tomorrow", "yesterday", "now"}

// Resolve interprets the anchor instant and binds the quick-path
// references; timezone gaps degrade confidence instead of failing
func (s *Svc) Resolve(ctx context.Context, userID string, in domain.ResolveInput) (domain.ResolveOutput, error) {
	at := s.now()
	if in.Timestamp != "" {
		t, err := parseTimestamp(in.Timestamp)
		if err != nil {
			return domain.ResolveOutput{}, err
		}
		at = t
	}

	var warnings []string
	_, hasTZ := temporal.Zone(in.Timezone)
	if in.Timezone == "" {
		warnings = append(warnings, "No timezone provided, using UTC")
	} else if !hasTZ {
		warnings = append(warnings, "Unknown timezone "+in.Timezone+", using UTC")
	}

	var sessionStart *time.Time
	if in.SessionStart != "" {
		ss, err := parseTimestamp(in.SessionStart)
		if err != nil {
			return domain.ResolveOutput{}, err
		}
		sessionStart = &ss
	}

	tc := temporal.Interpret(at, in.Timezone, sessionStart)

	var sc *spatial.Context
	if in.Locale != "" {
		c := spatial.Interpret(spatial.Signals{Locale: in.Locale, Timezone: in.Timezone})
		sc = &c
	}

	conf := 1.0
	if !hasTZ {
		conf = 0.8
	}

	refs := map[string]domain.ResolvedReference{}
	for _, name := range quickRefs {
		res := temporal.Resolve(name, tc)
		rr := domain.ResolvedReference{
			Value:      res.Resolved.Format(time.RFC3339),
			Confidence: conf,
		}
		if name != "now" {
			rr.Value = res.Resolved.Format("2006-01-02")
			rr.WindowStart = res.WindowStart.Format(time.RFC3339)
			rr.WindowEnd = res.WindowEnd.Format(time.RFC3339)
		}
		refs[name] = rr
	}

	// "today" follows the crossover branch when the session straddled
	// midnight
	if sessionStart != nil {
		cross := temporal.MidnightCrossover(tc, *sessionStart)
		if cross.Crossed {
			today := refs["today"]
			today.Value = cross.TodayMeans
			today.Confidence = minF(conf, cross.Confidence)
			refs["today"] = today
			yesterday := refs["yesterday"]
			yesterday.Value = cross.YesterdayMeans
			yesterday.Confidence = minF(conf, cross.Confidence)
			refs["yesterday"] = yesterday
			warnings = append(warnings, cross.Reasoning)
		}
	}

	refs["here"] = s.resolveHere(ctx, userID, sc)

	out := domain.ResolveOutput{
		Timestamp:  tc.Instant.Format(time.RFC3339),
		Timezone:   tc.Timezone,
		Temporal:   tc,
		Spatial:    sc,
		References: refs,
		Confidence: conf,
		Warnings:   warnings,
	}

	if in.Query != "" {
		res := resolve.Resolve(resolve.Input{
			Query:    in.Query,
			Anchor:   tc,
			Location: s.storedLocation(ctx, userID, sc),
			History:  nil,
		})
		out.Query = &res
		if len(res.References) > 0 {
			out.Confidence = minF(out.Confidence, res.Confidence)
		}
	}
	return out, nil
}

// resolveHere answers the "here" quick reference from the explicit
// locale signals or the user's stored spatial context
func (s *Svc) resolveHere(ctx context.Context, userID string, sc *spatial.Context) domain.ResolvedReference {
	loc := s.storedLocation(ctx, userID, sc)
	if loc == nil {
		return domain.ResolvedReference{Value: "unknown", Confidence: 0.3}
	}
	res := spatial.ResolveLocation("here", *loc)
	if !res.Resolved || res.Context == nil {
		return domain.ResolvedReference{Value: "unknown", Confidence: res.Confidence}
	}
	return domain.ResolvedReference{Value: placeName(*res.Context), Confidence: res.Confidence}
}

func placeName(c spatial.Context) string {
	var parts []string
	for _, p := range []string{c.City, c.Region, c.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ", ")
}

// storedLocation prefers the request's own spatial signals, falling
// back to the user's stored spatial records
func (s *Svc) storedLocation(ctx context.Context, userID string, sc *spatial.Context) *spatial.Context {
	if sc != nil && (sc.City != "" || sc.Country != "") {
		return sc
	}
	if userID == "" {
		return sc
	}
	rows, err := s.Reader.List(ctx, ctxdom.ListFilter{UserID: userID, Type: memory.TypeSpatial})
	if err != nil || len(rows) == 0 {
		return sc
	}
	sig := spatial.Signals{}
	consent := false
	for _, r := range rows {
		v, _ := r.Value.(string)
		switch r.Key {
		case "city":
			sig.City = v
		case "region":
			sig.Region = v
		case "country":
			sig.Country = v
		case "timezone":
			sig.Timezone = v
		case "locale":
			sig.Locale = v
		}
		if r.Source == memory.SourceUserExplicit {
			consent = true
		}
	}
	if sig == (spatial.Signals{}) {
		return sc
	}
	sig.ExplicitConsent = consent
	c := spatial.Interpret(sig)
	return &c
}

// Snapshot returns the live context state and versions it
func (s *Svc) Snapshot(ctx context.Context, userID, tz, locale string) (domain.SnapshotOutput, error) {
	now := s.now()
	ac, _ := atomic.Build(atomic.Inputs{At: now, Timezone: tz, Locale: locale})

	stored := map[string][]memory.Record{}
	var rows []memory.Record
	if userID != "" {
		var err error
		rows, err = s.Reader.List(ctx, ctxdom.ListFilter{UserID: userID})
		if err != nil {
			return domain.SnapshotOutput{}, err
		}
		for _, r := range rows {
			stored[string(r.Type)] = append(stored[string(r.Type)], r)
		}
	}

	out := domain.SnapshotOutput{Atomic: ac, Stored: stored, TakenAt: now}
	if userID != "" {
		state := StateFrom(ac, rows)
		if snap, ok := s.Snaps.Take(userID, state, snapshot.TakeOpts{}); ok {
			out.Version = snap.Version.String()
		} else if latest, ok := s.Snaps.Latest(userID); ok {
			out.Version = latest.Version.String()
		}
	}
	return out, nil
}

// StateFrom assembles the canonical snapshot state from the atomic
// context and the stored records
func StateFrom(ac atomic.Context, rows []memory.Record) snapshot.State {
	return snapshot.StateFromRecords(ac, rows)
}

// Update stores a user-stated value at full confidence
func (s *Svc) Update(ctx context.Context, userID string, in domain.UpdateInput) (memory.Record, error) {
	if userID == "" {
		return memory.Record{}, perr.InvalidArgf("user identity is required")
	}
	return s.Writer.Store(ctx, ctxdom.StoreInput{
		UserID:     userID,
		Type:       in.Type,
		Tier:       in.Tier,
		Key:        in.Key,
		Value:      in.Value,
		Confidence: 1.0,
		Source:     memory.SourceUserExplicit,
	})
}

// Memory lists the user's stored records
func (s *Svc) Memory(ctx context.Context, userID string, in domain.MemoryInput) ([]memory.Record, error) {
	return s.Reader.List(ctx, ctxdom.ListFilter{
		UserID:         userID,
		Type:           in.Type,
		Tier:           in.Tier,
		SessionID:      in.SessionID,
		IncludeExpired: in.IncludeExpired,
		Limit:          in.Limit,
	})
}

// Confirm marks a record user-verified
func (s *Svc) Confirm(ctx context.Context, contextID string) (memory.Record, error) {
	return s.Writer.Confirm(ctx, contextID)
}

// Correct records a user correction
func (s *Svc) Correct(ctx context.Context, contextID string, value any) (memory.Record, error) {
	return s.Writer.RecordCorrection(ctx, contextID, value)
}

// HistoryOf returns a record's version rows, newest first
func (s *Svc) HistoryOf(ctx context.Context, contextID string, limit int) ([]domain.Version, error) {
	return s.Reader.History(ctx, contextID, limit)
}

// Rollback reinstates an older version
func (s *Svc) Rollback(ctx context.Context, contextID string, version int) (memory.Record, error) {
	return s.Writer.Rollback(ctx, contextID, version)
}

// StartSession opens a conversation window
func (s *Svc) StartSession(ctx context.Context, userID string, in domain.SessionInput) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, perr.InvalidArgf("user identity is required")
	}
	return s.Writer.StartSession(ctx, userID, in.ClientInfo)
}

// EndSession closes the window and the snapshot session
func (s *Svc) EndSession(ctx context.Context, userID, sessionID string) error {
	if err := s.Writer.EndSession(ctx, userID, sessionID); err != nil {
		return err
	}
	s.Snaps.EndSession(userID)
	return nil
}

// Snapshots lists the user's snapshot timeline, newest first
func (s *Svc) Snapshots(_ context.Context, userID string, limit int) ([]snapshot.Snapshot, error) {
	return s.Snaps.List(userID, limit), nil
}

// RestoreSnapshot reinstates an older snapshot as a new major version
func (s *Svc) RestoreSnapshot(_ context.Context, userID string, in domain.RestoreInput) (domain.RestoreOutput, error) {
	snap, ok, restoredFrom := s.Snaps.Restore(userID, in.Version)
	if !ok {
		return domain.RestoreOutput{}, perr.NotFoundf("snapshot version %s not found", in.Version)
	}
	return domain.RestoreOutput{Snapshot: snap, Restored: restoredFrom}, nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
