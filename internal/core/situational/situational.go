// Package situational tracks what a user is working on across a
// conversation: active tasks, entity references, and thread state.
package situational

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// taskIndicators introduce a task description; first match wins and at
// most one task is extracted per message
var taskIndicators = []string{
	"working on", "doing", "creating", "building", "writing",
	"fixing", "debugging", "implementing", "designing", "planning",
	"researching", "reviewing", "testing", "deploying", "setting up",
	"help me", "i need to", "i want to", "let's", "can you",
}

// pronouns that refer back to something already in scope
var pronouns = []string{"it", "this", "that", "they", "them"}

var (
	reQuoted   = regexp.MustCompile("\"([^\"]{2,80})\"|`([^`]{2,80})`")
	rePronouns = func() *regexp.Regexp {
		return regexp.MustCompile(`\b(` + strings.Join(pronouns, "|") + `)\b`)
	}()
)

const (
	taskBaseConfidence     = 0.7
	taskReferenceBoost     = 0.05
	pronounConfidence      = 0.4
	artifactConfidence     = 0.8
	mentionBoost           = 0.1
	resolveBoost           = 0.3
	taskStaleAfter         = 24 * time.Hour
	maxTaskLen             = 100
	maxInScopeRefs         = 5
	inScopeMinConfidence   = 0.7
	emptyStateConfidence   = 0.3
)

// Task is one piece of work the user mentioned
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	References  int       `json:"references"`
}

// Reference is a tracked entity the user can point back to
type Reference struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Kind       string    `json:"kind"` // pronoun or artifact
	Confidence float64   `json:"confidence"`
	Mentions   int       `json:"mentions"`
	LastSeen   time.Time `json:"last_seen"`
}

// Thread is per-session conversation state
type Thread struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	MessageCount  int       `json:"message_count"`
	StartedAt     time.Time `json:"started_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Snapshot is the current situational picture for one user
type Snapshot struct {
	ActiveTasks []Task      `json:"active_tasks"`
	References  []Reference `json:"references"`
	Thread      *Thread     `json:"thread,omitempty"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Assumptions are the derived beliefs handed to the composer
type Assumptions struct {
	CurrentWork       string      `json:"current_work,omitempty"`
	InScopeReferences []Reference `json:"in_scope_references,omitempty"`
	Confidence        float64     `json:"confidence"`
}

// ReferenceResolution is the outcome of an explicit lookup
type ReferenceResolution struct {
	Found      bool       `json:"found"`
	Reference  *Reference `json:"reference,omitempty"`
	Confidence float64    `json:"confidence"`
}

type userState struct {
	tasks   map[string]*Task
	refs    map[string]*Reference
	threads map[string]*Thread
}

// Tracker holds per-user situational state, safe for concurrent use
type Tracker struct {
	mu    sync.RWMutex
	users map[string]*userState

	now func() time.Time
}

// NewTracker builds an empty tracker
func NewTracker() *Tracker {
	return &Tracker{users: map[string]*userState{}, now: time.Now}
}

func (t *Tracker) state(userID string) *userState {
	s, ok := t.users[userID]
	if !ok {
		s = &userState{
			tasks:   map[string]*Task{},
			refs:    map[string]*Reference{},
			threads: map[string]*Thread{},
		}
		t.users[userID] = s
	}
	return s
}

// Observe ingests one message: extracts at most one task, updates
// reference mentions, and bumps the session thread
func (t *Tracker) Observe(userID, sessionID, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s := t.state(userID)

	if task, ok := extractTask(message); ok {
		id := taskID(userID, task)
		if known, exists := s.tasks[id]; exists {
			known.References++
			known.Confidence = clamp(known.Confidence + taskReferenceBoost)
			known.LastSeen = now
		} else {
			s.tasks[id] = &Task{
				ID:          id,
				Description: task,
				Confidence:  taskBaseConfidence,
				FirstSeen:   now,
				LastSeen:    now,
			}
		}
	}

	for _, m := range reQuoted.FindAllStringSubmatch(message, -1) {
		text := m[1]
		if text == "" {
			text = m[2]
		}
		t.touchRef(s, userID, text, "artifact", artifactConfidence, now)
	}
	for _, p := range rePronouns.FindAllString(strings.ToLower(message), -1) {
		t.touchRef(s, userID, p, "pronoun", pronounConfidence, now)
	}

	if sessionID != "" {
		id := userID + ":" + sessionID
		th, ok := s.threads[id]
		if !ok {
			th = &Thread{ID: id, SessionID: sessionID, StartedAt: now}
			s.threads[id] = th
		}
		th.MessageCount++
		th.LastMessageAt = now
	}
}

func (t *Tracker) touchRef(s *userState, userID, text, kind string, base float64, now time.Time) {
	id := userID + ":" + kind + ":" + shortHash(strings.ToLower(text))
	if ref, ok := s.refs[id]; ok {
		ref.Mentions++
		ref.Confidence = clamp(ref.Confidence + mentionBoost)
		ref.LastSeen = now
		return
	}
	s.refs[id] = &Reference{
		ID:         id,
		Text:       text,
		Kind:       kind,
		Confidence: base,
		Mentions:   1,
		LastSeen:   now,
	}
}

// Snapshot returns the decayed, stale-filtered situational picture
func (t *Tracker) Snapshot(userID, sessionID string) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	out := Snapshot{GeneratedAt: now}
	s, ok := t.users[userID]
	if !ok {
		return out
	}

	for _, task := range s.tasks {
		age := now.Sub(task.LastSeen)
		if age > taskStaleAfter {
			continue
		}
		decayed := *task
		decayed.Confidence = task.Confidence * decayFactor(age)
		out.ActiveTasks = append(out.ActiveTasks, decayed)
	}
	sort.Slice(out.ActiveTasks, func(i, j int) bool {
		return out.ActiveTasks[i].Confidence > out.ActiveTasks[j].Confidence
	})

	for _, ref := range s.refs {
		out.References = append(out.References, *ref)
	}
	sort.Slice(out.References, func(i, j int) bool {
		return out.References[i].Confidence > out.References[j].Confidence
	})

	if sessionID != "" {
		if th, ok := s.threads[userID+":"+sessionID]; ok {
			snap := *th
			out.Thread = &snap
		}
	}
	return out
}

// Assume derives composer-facing beliefs from the current snapshot
func (t *Tracker) Assume(userID, sessionID string) Assumptions {
	snap := t.Snapshot(userID, sessionID)

	var a Assumptions
	if len(snap.ActiveTasks) > 0 {
		a.CurrentWork = snap.ActiveTasks[0].Description
	}
	for _, ref := range snap.References {
		if ref.Confidence < inScopeMinConfidence {
			continue
		}
		a.InScopeReferences = append(a.InScopeReferences, ref)
		if len(a.InScopeReferences) == maxInScopeRefs {
			break
		}
	}

	var parts []float64
	if n := len(snap.ActiveTasks); n > 0 {
		parts = append(parts, avgTaskConf(snap.ActiveTasks))
	}
	if n := len(snap.References); n > 0 {
		parts = append(parts, avgRefConf(snap.References))
	}
	if snap.Thread != nil {
		parts = append(parts, clamp(float64(snap.Thread.MessageCount)*0.1))
	}
	if len(parts) == 0 {
		a.Confidence = emptyStateConfidence
		return a
	}
	var sum float64
	for _, p := range parts {
		sum += p
	}
	a.Confidence = sum / float64(len(parts))
	return a
}

// Resolve looks up a reference by its text; a hit boosts its confidence
func (t *Tracker) Resolve(userID, text string) ReferenceResolution {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.users[userID]
	if !ok {
		return ReferenceResolution{}
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, ref := range s.refs {
		if strings.ToLower(ref.Text) != lower {
			continue
		}
		ref.Confidence = clamp(ref.Confidence + resolveBoost)
		ref.LastSeen = t.now()
		hit := *ref
		return ReferenceResolution{Found: true, Reference: &hit, Confidence: hit.Confidence}
	}
	return ReferenceResolution{}
}

// EndSession drops the session thread and its pronoun references
// artifacts and tasks survive the session
func (t *Tracker) EndSession(userID, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.users[userID]
	if !ok {
		return
	}
	delete(s.threads, userID+":"+sessionID)
	for id, ref := range s.refs {
		if ref.Kind == "pronoun" {
			delete(s.refs, id)
		}
	}
}

// extractTask pulls the description following the first indicator phrase,
// clipped at sentence end and capped in length
func extractTask(message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, ind := range taskIndicators {
		idx := strings.Index(lower, ind)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(message[idx+len(ind):])
		if cut := strings.IndexAny(rest, ".?"); cut >= 0 {
			rest = rest[:cut]
		}
		rest = strings.TrimSpace(rest)
		if len(rest) > maxTaskLen {
			rest = rest[:maxTaskLen]
		}
		if rest == "" {
			return "", false
		}
		return rest, true
	}
	return "", false
}

func taskID(userID, task string) string {
	return userID + ":" + shortHash(strings.ToLower(task))
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

func decayFactor(age time.Duration) float64 {
	f := 1 - age.Hours()*0.02
	if f < 0.5 {
		return 0.5
	}
	return f
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func avgTaskConf(ts []Task) float64 {
	var sum float64
	for _, t := range ts {
		sum += t.Confidence
	}
	return sum / float64(len(ts))
}

func avgRefConf(rs []Reference) float64 {
	var sum float64
	for _, r := range rs {
		sum += r.Confidence
	}
	return sum / float64(len(rs))
}
