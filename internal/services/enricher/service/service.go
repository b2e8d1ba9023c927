// Package service implements the slow-path enricher: it answers
// resolution bus requests with stored memories, snapshot insights and
// situational state, and runs the background maintenance loops
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ralcore/internal/core/memory"
	"ralcore/internal/core/situational"
	"ralcore/internal/core/snapshot"
	"ralcore/internal/platform/bus"
	"ralcore/internal/platform/logger"
	ctxdom "ralcore/internal/services/contexts/domain"

	"ralcore/internal/modkit/httpkit"
)

const maxMemories = 5

// Config carries the maintenance cadences
type Config struct {
	// DecayEvery is how often the decay sweep runs
	DecayEvery time.Duration
	// DecayAfter is the age past which short-term records are swept
	DecayAfter time.Duration
	// CleanupEvery is how often expired ephemeral records are purged
	CleanupEvery time.Duration
	// SnapshotEvery is how often the auto-snapshot check runs; actual
	// captures are still gated by the per-user snapshot interval
	SnapshotEvery time.Duration
}

func (c Config) normalize() Config {
	if c.DecayEvery <= 0 {
		c.DecayEvery = time.Hour
	}
	if c.DecayAfter <= 0 {
		c.DecayAfter = 6 * time.Hour
	}
	if c.CleanupEvery <= 0 {
		c.CleanupEvery = 5 * time.Minute
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = time.Minute
	}
	return c
}

// Svc implements the enricher worker
type Svc struct {
	Reader  ctxdom.ReaderPort
	Writer  ctxdom.WriterPort
	Snaps   *snapshot.History
	Tracker *situational.Tracker

	cfg Config
	now func() time.Time
	log *logger.Logger
}

// New constructs the enricher service
func New(reader ctxdom.ReaderPort, writer ctxdom.WriterPort, snaps *snapshot.History, tracker *situational.Tracker, cfg Config) *Svc {
	if reader == nil || writer == nil {
		panic("enricher service requires reader and writer ports")
	}
	if snaps == nil {
		snaps = snapshot.NewHistory()
	}
	if tracker == nil {
		tracker = situational.NewTracker()
	}
	return &Svc{
		Reader:  reader,
		Writer:  writer,
		Snaps:   snaps,
		Tracker: tracker,
		cfg:     cfg.normalize(),
		now:     time.Now,
		log:     logger.Named("enricher"),
	}
}

// Enrich answers one resolution bus request. Anonymous callers have no
// stored state, so they get an empty enrichment rather than an error
func (s *Svc) Enrich(ctx context.Context, req bus.Request) (bus.Enrichment, error) {
	if req.UserID == "" || req.UserID == httpkit.AnonymousUser {
		return bus.Enrichment{}, nil
	}

	rows, err := s.Reader.List(ctx, ctxdom.ListFilter{UserID: req.UserID})
	if err != nil {
		return bus.Enrichment{}, err
	}

	var enr bus.Enrichment
	for _, r := range rankMemories(rows, req.Query, maxMemories) {
		enr.Memories = append(enr.Memories, map[string]any{
			"id":         r.ID,
			"type":       string(r.Type),
			"key":        r.Key,
			"value":      r.Value,
			"confidence": r.Confidence,
		})
	}
	enr.Insights = s.insights(req.UserID)
	enr.Relations = s.relations(req.UserID)
	return enr, nil
}

// rankMemories orders records by keyword overlap with the query, then
// by confidence. With no query the most confident records win
func rankMemories(rows []memory.Record, query string, limit int) []memory.Record {
	terms := queryTerms(query)

	type scored struct {
		rec   memory.Record
		score int
	}
	ranked := make([]scored, 0, len(rows))
	for _, r := range rows {
		ranked = append(ranked, scored{rec: r, score: matchScore(r, terms)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].rec.Confidence > ranked[j].rec.Confidence
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]memory.Record, 0, limit)
	for _, sc := range ranked[:limit] {
		// with a query, drop records the query never touches
		if len(terms) > 0 && sc.score == 0 {
			continue
		}
		out = append(out, sc.rec)
	}
	return out
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'()")
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func matchScore(r memory.Record, terms []string) int {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(r.Key)
	if s, ok := r.Value.(string); ok {
		haystack += " " + strings.ToLower(s)
	}
	score := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			score++
		}
	}
	return score
}

// insights derives cross-session statements from the situational
// tracker and the snapshot timeline
func (s *Svc) insights(userID string) []string {
	var out []string

	a := s.Tracker.Assume(userID, "")
	if a.CurrentWork != "" {
		out = append(out, "Currently working on: "+a.CurrentWork)
	}

	snaps := s.Snaps.List(userID, 2)
	if len(snaps) > 0 {
		out = append(out, fmt.Sprintf("Context at version %s since %s",
			snaps[0].Version, snaps[0].CreatedAt.UTC().Format(time.RFC3339)))
	}
	if len(snaps) == 2 {
		diff := snapshot.Compare(snaps[1].State, snaps[0].State)
		if keys := changedKeys(diff); len(keys) > 0 {
			out = append(out, "Recently changed: "+strings.Join(keys, ", "))
		}
	}
	return out
}

func changedKeys(d snapshot.Diff) []string {
	keys := make([]string, 0, len(d.Added)+len(d.Modified))
	keys = append(keys, d.Added...)
	keys = append(keys, d.Modified...)
	sort.Strings(keys)
	return keys
}

// relations exports tracked references so the caller can ground
// pronouns without replaying the conversation
func (s *Svc) relations(userID string) map[string]any {
	snap := s.Tracker.Snapshot(userID, "")
	if len(snap.References) == 0 && len(snap.ActiveTasks) == 0 {
		return nil
	}

	out := map[string]any{}
	for _, ref := range snap.References {
		out[ref.Text] = map[string]any{
			"kind":       ref.Kind,
			"confidence": ref.Confidence,
			"mentions":   ref.Mentions,
		}
	}
	if len(snap.ActiveTasks) > 0 {
		tasks := make([]string, 0, len(snap.ActiveTasks))
		for _, t := range snap.ActiveTasks {
			tasks = append(tasks, t.Description)
		}
		out["active_tasks"] = tasks
	}
	return out
}
