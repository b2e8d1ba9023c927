package snapshot

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxHistoryPerUser bounds stored snapshots; oldest fall off
	MaxHistoryPerUser = 100
	// AutoSnapshotInterval is how long between scheduled snapshots
	AutoSnapshotInterval = 60 * time.Minute
)

// Snapshot is one versioned capture of a user's context state
type Snapshot struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Version     Version   `json:"version"`
	Bump        Bump      `json:"bump"`
	Trigger     Trigger   `json:"trigger"`
	State       State     `json:"state"`
	Checksum    string    `json:"checksum"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TakeOpts override the classified trigger and annotate the snapshot
type TakeOpts struct {
	Trigger     Trigger
	Description string
	Tags        []string
}

// History keeps bounded per-user snapshot timelines in memory
type History struct {
	mu    sync.RWMutex
	users map[string][]Snapshot // oldest first
	now   func() time.Time
}

// NewHistory returns an empty snapshot history
func NewHistory() *History {
	return &History{users: map[string][]Snapshot{}, now: time.Now}
}

// Take captures the state if it differs from the latest snapshot,
// bumping the version by the classified magnitude; returns the new
// snapshot and whether one was taken
func (h *History) Take(userID string, st State, opts TakeOpts) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeline := h.users[userID]
	var prev State
	cur := Version{}
	if len(timeline) > 0 {
		last := timeline[len(timeline)-1]
		prev = last.State
		cur = last.Version
	}

	cl := Classify(prev, st)
	if cl.Bump == BumpNone {
		if len(timeline) > 0 {
			return timeline[len(timeline)-1], false
		}
		return Snapshot{}, false
	}

	trigger := cl.Trigger
	if opts.Trigger != "" {
		trigger = opts.Trigger
	}
	desc := opts.Description
	if desc == "" {
		desc = cl.Reason
	}

	snap := Snapshot{
		ID:          uuid.NewString(),
		UserID:      userID,
		Version:     cur.Next(cl.Bump),
		Bump:        cl.Bump,
		Trigger:     trigger,
		State:       st,
		Checksum:    Checksum(st),
		Description: desc,
		Tags:        opts.Tags,
		CreatedAt:   h.now(),
	}

	timeline = append(timeline, snap)
	if len(timeline) > MaxHistoryPerUser {
		timeline = timeline[len(timeline)-MaxHistoryPerUser:]
	}
	h.users[userID] = timeline
	return snap, true
}

// ShouldAutoSnapshot reports whether the scheduled interval has
// passed since the user's last snapshot
func (h *History) ShouldAutoSnapshot(userID string, at time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	timeline := h.users[userID]
	if len(timeline) == 0 {
		return false
	}
	return at.Sub(timeline[len(timeline)-1].CreatedAt) >= AutoSnapshotInterval
}

// Get fetches one snapshot by version string
func (h *History) Get(userID, version string) (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.users[userID] {
		if s.Version.String() == version {
			return s, true
		}
	}
	return Snapshot{}, false
}

// List returns up to limit snapshots, newest first
func (h *History) List(userID string, limit int) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	timeline := h.users[userID]
	if limit <= 0 || limit > len(timeline) {
		limit = len(timeline)
	}
	out := make([]Snapshot, 0, limit)
	for i := len(timeline) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, timeline[i])
	}
	return out
}

// Latest returns the user's newest snapshot
func (h *History) Latest(userID string) (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	timeline := h.users[userID]
	if len(timeline) == 0 {
		return Snapshot{}, false
	}
	return timeline[len(timeline)-1], true
}

// Restore reinstates a prior version as a new major snapshot; the
// message is user-facing either way
func (h *History) Restore(userID, version string) (Snapshot, bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeline := h.users[userID]
	var target *Snapshot
	for i := range timeline {
		if timeline[i].Version.String() == version {
			target = &timeline[i]
			break
		}
	}
	if target == nil {
		return Snapshot{}, false, fmt.Sprintf("Version %s not found", version)
	}

	cur := timeline[len(timeline)-1].Version
	snap := Snapshot{
		ID:          uuid.NewString(),
		UserID:      userID,
		Version:     cur.Next(BumpMajor),
		Bump:        BumpMajor,
		Trigger:     TriggerManual,
		State:       target.State,
		Checksum:    target.Checksum,
		Description: fmt.Sprintf("Restored from version %s", version),
		Tags:        []string{"restoration", "from-" + version},
		CreatedAt:   h.now(),
	}

	timeline = append(timeline, snap)
	if len(timeline) > MaxHistoryPerUser {
		timeline = timeline[len(timeline)-MaxHistoryPerUser:]
	}
	h.users[userID] = timeline
	return snap, true, fmt.Sprintf("Successfully restored to version %s", version)
}

// Stats summarizes a user's snapshot history
type Stats struct {
	Count   int    `json:"count"`
	Major   int    `json:"major"`
	Minor   int    `json:"minor"`
	Patch   int    `json:"patch"`
	Current string `json:"current"`
}

// HistoryStats counts snapshots by bump magnitude
func (h *History) HistoryStats(userID string) Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Stats{Current: "0.0.0"}
	timeline := h.users[userID]
	st.Count = len(timeline)
	for _, s := range timeline {
		switch s.Bump {
		case BumpMajor:
			st.Major++
		case BumpMinor:
			st.Minor++
		case BumpPatch:
			st.Patch++
		}
	}
	if len(timeline) > 0 {
		st.Current = timeline[len(timeline)-1].Version.String()
	}
	return st
}

// Users lists every user with at least one snapshot
func (h *History) Users() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.users))
	for uid := range h.users {
		out = append(out, uid)
	}
	return out
}

// EndSession drops a user's timeline
func (h *History) EndSession(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.users, userID)
}
