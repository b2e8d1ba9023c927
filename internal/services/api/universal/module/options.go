package module

import (
	"ralcore/internal/platform/config"
)

// Options configures composition limits
type Options struct {
	MaxTokens     int
	MinConfidence float64
}

// FromConfig reads options from config.Conf
func FromConfig(cfg config.Conf) Options {
	cf := cfg.Prefix("CORE_COMPOSE_")
	return Options{
		MaxTokens:     cf.MayInt("MAX_CONTEXT_TOKENS", 500),
		MinConfidence: cf.MayFloat64("MIN_RELEVANCE_SCORE", 0.3),
	}
}
