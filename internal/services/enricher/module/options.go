package module

import (
	"time"

	"ralcore/internal/platform/config"
)

// Options controls the enricher worker cadences
type Options struct {
	DecayEvery    time.Duration
	DecayAfter    time.Duration
	CleanupEvery  time.Duration
	SnapshotEvery time.Duration
}

// FromConfig reads with ENRICHER_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("ENRICHER_")
	return Options{
		DecayEvery:    c.MayDuration("DECAY_EVERY", time.Hour),
		DecayAfter:    c.MayDuration("DECAY_AFTER", 6*time.Hour),
		CleanupEvery:  c.MayDuration("CLEANUP_EVERY", 5*time.Minute),
		SnapshotEvery: c.MayDuration("SNAPSHOT_EVERY", time.Minute),
	}
}
