package budget

// Config defines usage guardrails for a single comparison run. Nil means unlimited.
type Config struct {
	MaxCost        *float64
	MaxTokens      *int64
	MaxTimeSeconds *int64
}

// FromLimits builds a Config from plain values where zero disables the limit.
func FromLimits(maxCost float64, maxTokens, maxTimeSeconds int64) Config {
	var cfg Config
	if maxCost > 0 {
		cfg.MaxCost = &maxCost
	}
	if maxTokens > 0 {
		cfg.MaxTokens = &maxTokens
	}
	if maxTimeSeconds > 0 {
		cfg.MaxTimeSeconds = &maxTimeSeconds
	}
	return cfg
}

// Clone produces a deep copy of the config.
func (c Config) Clone() Config {
	var clone Config
	if c.MaxCost != nil {
		v := *c.MaxCost
		clone.MaxCost = &v
	}
	if c.MaxTokens != nil {
		v := *c.MaxTokens
		clone.MaxTokens = &v
	}
	if c.MaxTimeSeconds != nil {
		v := *c.MaxTimeSeconds
		clone.MaxTimeSeconds = &v
	}
	return clone
}
