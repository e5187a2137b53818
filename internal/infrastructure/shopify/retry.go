package shopify

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig controls per-topic retry behavior for Shopify API calls.
type RetryConfig struct {
	// MaxAttempts bounds attempts per topic, first try included.
	MaxAttempts int

	// BaseDelay scales the exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff sleep.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the production retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Delay computes the backoff before retrying after the given attempt
// (1-based): base * 2^attempt, jittered by a random factor in
// [0.5, 1.5), capped at MaxDelay.
func (c RetryConfig) Delay(attempt int) time.Duration {
	exp := float64(c.BaseDelay) * math.Pow(2, float64(attempt))
	jitter := 0.5 + rand.Float64()
	d := time.Duration(exp * jitter)
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// transientErrorPatterns matches downstream failures worth retrying.
// Anything else fails immediately without consuming further attempts.
var transientErrorPatterns = []string{
	"timeout",
	"timed out",
	"rate limit",
	"too many requests",
	"429",
	"temporarily unavailable",
	"internal server error",
	"internal error",
	"server error",
	"service unavailable",
	"502",
	"503",
}

// IsTransient reports whether an error looks like a transient
// downstream failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
