package grading

import "time"

// Config carries the tunables of the grading pipeline. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	// MaxRetries is the total number of external grading attempts per
	// answer, including the first.
	MaxRetries int

	// Timeout bounds a single external grading attempt.
	Timeout time.Duration

	// FallbackSimilarityThreshold is the similarity at or above which the
	// fallback awards full marks.
	FallbackSimilarityThreshold float64

	// PartialCreditThreshold is the similarity at or above which the
	// fallback awards half marks. Must not exceed
	// FallbackSimilarityThreshold.
	PartialCreditThreshold float64

	// MaxResponseTokens caps the external model's response length.
	MaxResponseTokens int

	// AttemptDeadline, when positive, bounds the grading of a whole
	// attempt. Zero leaves the batch unbounded.
	AttemptDeadline time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:                  3,
		Timeout:                     30 * time.Second,
		FallbackSimilarityThreshold: 0.7,
		PartialCreditThreshold:      0.4,
		MaxResponseTokens:           1000,
		AttemptDeadline:             0,
	}
}

// WithDefaults fills unset fields so a partially populated Config cannot
// disable retries or thresholds by accident.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.MaxRetries < 1 {
		c.MaxRetries = def.MaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.FallbackSimilarityThreshold <= 0 || c.FallbackSimilarityThreshold > 1 {
		c.FallbackSimilarityThreshold = def.FallbackSimilarityThreshold
	}
	if c.PartialCreditThreshold <= 0 || c.PartialCreditThreshold > c.FallbackSimilarityThreshold {
		c.PartialCreditThreshold = def.PartialCreditThreshold
	}
	if c.MaxResponseTokens <= 0 {
		c.MaxResponseTokens = def.MaxResponseTokens
	}
	return c
}

// Options carries per-call overrides.
type Options struct {
	// DisableAI skips the external model for this call even when one is
	// configured. The zero value uses AI whenever available.
	DisableAI bool
}
