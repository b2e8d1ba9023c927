package privacy

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// DefaultEdgeTTLSeconds bounds how long an edge record may live
const DefaultEdgeTTLSeconds = 3600

// EdgeContext is the anonymized form of a context record, safe to
// leave the device; the raw user id never appears in it
type EdgeContext struct {
	ContextID            string         `json:"context_id"`
	UserIDHash           string         `json:"user_id_hash"`
	TimestampEpoch       int64          `json:"timestamp_epoch"`
	ContextType          string         `json:"context_type"`
	Payload              map[string]any `json:"payload"`
	PrivacyLevel         Level          `json:"privacy_level"`
	AnonymizationApplied []string       `json:"anonymization_applied"`
	CanSyncToCloud       bool           `json:"can_sync_to_cloud"`
	RequiresEncryption   bool           `json:"requires_encryption"`
	TTLSeconds           int            `json:"ttl_seconds"`
}

// maskablePII picks the shape-preserving mask over a plain hash for
// keys whose format matters downstream
func maskablePII(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "email") ||
		strings.Contains(lower, "phone") ||
		strings.Contains(lower, "name")
}

// BuildEdgeContext anonymizes a payload key by key and grades the
// whole record by its most restricted field
func (a *Anonymizer) BuildEdgeContext(userID, contextType string, payload map[string]any, at time.Time) EdgeContext {
	out := EdgeContext{
		ContextID:      newContextID(),
		UserIDHash:     a.HashUserID(userID),
		TimestampEpoch: at.Unix(),
		ContextType:    contextType,
		Payload:        map[string]any{},
		PrivacyLevel:   LevelPublic,
		TTLSeconds:     DefaultEdgeTTLSeconds,
	}

	for key, value := range payload {
		cat := Categorize(key)
		level := LevelFor(cat)
		if level.rank() > out.PrivacyLevel.rank() {
			out.PrivacyLevel = level
		}

		strategy := StrategyFor(cat)
		if cat == CategoryPersonal && maskablePII(key) {
			strategy = StrategyFuzz
		}

		masked, applied := a.Apply(key, value, strategy)
		out.Payload[key] = masked
		if applied {
			out.AnonymizationApplied = append(out.AnonymizationApplied, key+":"+string(strategy))
		}
	}

	out.CanSyncToCloud = out.PrivacyLevel != LevelSensitive
	out.RequiresEncryption = out.PrivacyLevel == LevelSensitive || out.PrivacyLevel == LevelPII
	return out
}

func newContextID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

// Commitment is a salted digest of a value plus its lifetime; the
// value itself is never stored
type Commitment struct {
	Digest    string    `json:"digest"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ZKStore verifies claims about values it has only seen digests of
type ZKStore struct {
	mu      sync.RWMutex
	salt    []byte
	entries map[string]Commitment
	now     func() time.Time
}

// NewZKStore seeds the commitment salt
func NewZKStore(salt string) *ZKStore {
	return &ZKStore{
		salt:    []byte(salt),
		entries: map[string]Commitment{},
		now:     time.Now,
	}
}

func (z *ZKStore) digest(value string) []byte {
	mac := hmac.New(sha256.New, z.salt)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

// Commit stores a digest of the value under the key
func (z *ZKStore) Commit(key, value string, ttl time.Duration) Commitment {
	z.mu.Lock()
	defer z.mu.Unlock()

	c := Commitment{
		Digest:    hex.EncodeToString(z.digest(value)),
		ExpiresAt: z.now().Add(ttl),
	}
	z.entries[key] = c
	return c
}

// Verify reports whether the candidate matches the committed value;
// expired or missing commitments never verify
func (z *ZKStore) Verify(key, candidate string) bool {
	z.mu.RLock()
	defer z.mu.RUnlock()

	c, ok := z.entries[key]
	if !ok || z.now().After(c.ExpiresAt) {
		return false
	}
	stored, err := hex.DecodeString(c.Digest)
	if err != nil {
		return false
	}
	return hmac.Equal(stored, z.digest(candidate))
}

// Cleanup drops expired commitments, returning how many went
func (z *ZKStore) Cleanup() int {
	z.mu.Lock()
	defer z.mu.Unlock()

	n := 0
	cutoff := z.now()
	for k, c := range z.entries {
		if cutoff.After(c.ExpiresAt) {
			delete(z.entries, k)
			n++
		}
	}
	return n
}

// Len reports live commitments
func (z *ZKStore) Len() int {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return len(z.entries)
}
