package grading

import (
	"testing"
	"time"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Run("zero value picks up all defaults", func(t *testing.T) {
		got := Config{}.WithDefaults()
		want := DefaultConfig()
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("explicit values survive", func(t *testing.T) {
		in := Config{
			MaxRetries:                  5,
			Timeout:                     10 * time.Second,
			FallbackSimilarityThreshold: 0.8,
			PartialCreditThreshold:      0.3,
			MaxResponseTokens:           500,
			AttemptDeadline:             time.Minute,
		}
		if got := in.WithDefaults(); got != in {
			t.Errorf("got %+v, want %+v", got, in)
		}
	})

	t.Run("partial threshold above fallback is rejected", func(t *testing.T) {
		in := Config{FallbackSimilarityThreshold: 0.5, PartialCreditThreshold: 0.9}
		got := in.WithDefaults()
		if got.PartialCreditThreshold > got.FallbackSimilarityThreshold {
			t.Errorf("partial %v still above fallback %v",
				got.PartialCreditThreshold, got.FallbackSimilarityThreshold)
		}
	})
}
