package llm

import "time"

// RetryConfig holds per-endpoint retry settings.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per endpoint.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffBase is the first backoff duration.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffMultiplier is applied to the backoff on each retry.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}
