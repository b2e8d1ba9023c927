package module

import (
	"time"

	"ralcore/internal/core/memory"
	"ralcore/internal/modkit"
	"ralcore/internal/platform/config"
	"ralcore/internal/platform/store/rds"
)

// Options configures the context memory module
type Options struct {
	DecayHours       int
	EphemeralTTL     time.Duration
	ConflictStrategy memory.Strategy
	CacheTTL         time.Duration
}

// FromConfig reads options from config.Conf
func FromConfig(cfg config.Conf) Options {
	cf := cfg.Prefix("CORE_CONTEXTS_")
	return Options{
		DecayHours:   cf.MayInt("DECAY_HOURS", memory.DefaultDecayHours),
		EphemeralTTL: time.Duration(cf.MayInt("EPHEMERAL_TTL_SECONDS", 3600)) * time.Second,
		ConflictStrategy: memory.Strategy(cf.MayEnum("CONFLICT_STRATEGY", string(memory.DefaultStrategy),
			string(memory.StrategyUserWins), string(memory.StrategySensorWins),
			string(memory.StrategyNewerWins), string(memory.StrategyConfidenceWins),
			string(memory.StrategyMerge))),
		CacheTTL: cf.MayDuration("CACHE_TTL", 5*time.Minute),
	}
}

// cacheFor returns the shared context cache when redis is wired
func cacheFor(deps modkit.Deps) *rds.Cache {
	if deps.RDS == nil {
		return nil
	}
	return deps.RDS.NewCache("ral:context")
}
