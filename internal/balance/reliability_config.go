package balance

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReliabilityConfig holds the resilience knobs for the gateway.
type ReliabilityConfig struct {
	RetryCount          int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
	RateLimitInterval   time.Duration
	RateLimitBurst      int
}

// DefaultReliabilityConfig returns three retries backing off 2s, 4s, 8s and a
// breaker that opens for 30s after three consecutive failures. Outbound rate
// limiting is off.
func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		RetryCount:          3,
		RetryBaseDelay:      2 * time.Second,
		BreakerMaxFailures:  3,
		BreakerResetTimeout: 30 * time.Second,
	}
}

// LoadReliabilityConfigFromEnv overlays ORDER_* variables on the defaults.
func LoadReliabilityConfigFromEnv() (ReliabilityConfig, error) {
	cfg := DefaultReliabilityConfig()
	var err error

	if cfg.RetryCount, err = parseOptionalInt("ORDER_RETRY_COUNT", cfg.RetryCount); err != nil {
		return cfg, err
	}
	if cfg.RetryBaseDelay, err = parseOptionalDuration("ORDER_RETRY_BASE_DELAY", cfg.RetryBaseDelay); err != nil {
		return cfg, err
	}
	if cfg.RetryMaxDelay, err = parseOptionalDuration("ORDER_RETRY_MAX_DELAY", cfg.RetryMaxDelay); err != nil {
		return cfg, err
	}
	if cfg.BreakerMaxFailures, err = parseOptionalInt("ORDER_BREAKER_MAX_FAILURES", cfg.BreakerMaxFailures); err != nil {
		return cfg, err
	}
	if cfg.BreakerResetTimeout, err = parseOptionalDuration("ORDER_BREAKER_RESET_TIMEOUT", cfg.BreakerResetTimeout); err != nil {
		return cfg, err
	}
	if cfg.RateLimitInterval, err = parseOptionalDuration("ORDER_RATE_LIMIT_INTERVAL", cfg.RateLimitInterval); err != nil {
		return cfg, err
	}
	if cfg.RateLimitBurst, err = parseOptionalInt("ORDER_RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// GatewayConfig turns the knobs into a gateway configuration.
func (c ReliabilityConfig) GatewayConfig(attemptTimeout time.Duration, observer Observer, onRateLimitWait func(time.Duration)) GatewayConfig {
	cfg := GatewayConfig{
		AttemptTimeout: attemptTimeout,
		Retry: RetryPolicy{
			MaxAttempts: c.RetryCount + 1,
			BaseDelay:   c.RetryBaseDelay,
			MaxDelay:    c.RetryMaxDelay,
		},
		Breaker: CircuitBreakerConfig{
			MaxFailures:  c.BreakerMaxFailures,
			ResetTimeout: c.BreakerResetTimeout,
		},
		Observer: observer,
	}
	if c.RateLimitInterval > 0 && c.RateLimitBurst > 0 {
		cfg.Limiter = NewRateLimiter(c.RateLimitInterval, c.RateLimitBurst, onRateLimitWait)
	}
	return cfg
}

func parseOptionalDuration(name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func parseOptionalInt(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
