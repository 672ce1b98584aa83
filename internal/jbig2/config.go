package jbig2

import "log/slog"

// Config tunes a Document.
type Config struct {
	// CacheSize bounds the number of decoded segment payloads kept in
	// memory. Evicted payloads are decoded again on demand.
	CacheSize int
	// Logger receives warnings and debug output. Nil means slog.Default().
	Logger *slog.Logger
	// MaxConcurrency bounds the pages decoded at once by callers that
	// decode several pages. Zero or less means one.
	MaxConcurrency int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		CacheSize:      DefaultCacheSize,
		Logger:         slog.Default(),
		MaxConcurrency: 4,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CacheSize <= 0 {
		c.CacheSize = def.CacheSize
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
	return c
}
