package config

import (
	"testing"
	"time"
)

func TestLoadHTTP(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "")

	cfg, err := LoadHTTP()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "1s")
	cfg, err = LoadHTTP()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.ShutdownTimeout != time.Second {
		t.Fatalf("unexpected http cfg: %+v", cfg)
	}
}

func TestLoadBalance(t *testing.T) {
	t.Setenv("BALANCE_BASE_URL", "http://balance:8081/")
	t.Setenv("BALANCE_ATTEMPT_TIMEOUT", "")

	cfg, err := LoadBalance()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://balance:8081" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
	if cfg.AttemptTimeout != 10*time.Second {
		t.Fatalf("unexpected default timeout: %v", cfg.AttemptTimeout)
	}
}

func TestLoadBalance_Invalid(t *testing.T) {
	t.Setenv("BALANCE_BASE_URL", "")
	if _, err := LoadBalance(); err == nil {
		t.Fatalf("expected error for missing base url")
	}

	t.Setenv("BALANCE_BASE_URL", "http://balance")
	t.Setenv("BALANCE_ATTEMPT_TIMEOUT", "0s")
	if _, err := LoadBalance(); err == nil {
		t.Fatalf("expected error for zero attempt timeout")
	}

	t.Setenv("BALANCE_ATTEMPT_TIMEOUT", "soon")
	if _, err := LoadBalance(); err == nil {
		t.Fatalf("expected error for bad attempt timeout")
	}
}

func TestLoadDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "  postgres://u:p@db/orders  ")
	if got := LoadDatabase().URL; got != "postgres://u:p@db/orders" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestLoadGRPC(t *testing.T) {
	t.Setenv("GRPC_ADDR", "")
	t.Setenv("GRPC_RATE_LIMIT_INTERVAL", "5ms")
	t.Setenv("GRPC_RATE_LIMIT_BURST", "10")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadGRPC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":50051" || cfg.RateLimitInterval != 5*time.Millisecond || cfg.RateLimitBurst != 10 {
		t.Fatalf("unexpected grpc cfg: %+v", cfg)
	}
	if cfg.Reflection {
		t.Fatalf("expected reflection disabled in production")
	}
}

func TestLoadGRPC_LimitOptional(t *testing.T) {
	t.Setenv("GRPC_RATE_LIMIT_INTERVAL", "")
	t.Setenv("GRPC_RATE_LIMIT_BURST", "")
	t.Setenv("APP_ENV", "dev")

	cfg, err := LoadGRPC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RateLimitInterval != 0 || cfg.RateLimitBurst != 0 || !cfg.Reflection {
		t.Fatalf("unexpected grpc cfg: %+v", cfg)
	}
}

func TestLoadGRPC_HalfConfiguredLimit(t *testing.T) {
	t.Setenv("GRPC_RATE_LIMIT_INTERVAL", "5ms")
	t.Setenv("GRPC_RATE_LIMIT_BURST", "")
	if _, err := LoadGRPC(); err == nil {
		t.Fatalf("expected error when only the interval is set")
	}
}

func TestLoadObservability(t *testing.T) {
	t.Setenv("OBS_ADDR", ":9999")

	cfg, err := LoadObservability()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected observability addr: %+v", cfg)
	}
}

func TestLoadRedis_DisabledWithoutURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_STREAM_MAXLEN", "notint")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enabled {
		t.Fatalf("expected redis disabled")
	}
}

func TestLoadRedis_Defaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Enabled || cfg.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected redis cfg: %+v", cfg)
	}
	if cfg.HealthcheckTimeout != 2*time.Second || cfg.EventTTL != 24*time.Hour || cfg.StreamMaxLen != 10000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TLSConfig != nil || cfg.EnableOTel {
		t.Fatalf("expected no tls and no otel by default")
	}
}

func TestLoadRedis_WithOptionalFields(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_STREAM", "s")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "1s")
	t.Setenv("REDIS_EVENT_TTL", "1m")
	t.Setenv("REDIS_STREAM_MAXLEN", "10")
	t.Setenv("REDIS_DIAL_TIMEOUT", "3s")
	t.Setenv("REDIS_READ_TIMEOUT", "4s")
	t.Setenv("REDIS_WRITE_TIMEOUT", "5s")
	t.Setenv("REDIS_POOL_SIZE", "9")
	t.Setenv("REDIS_MIN_IDLE_CONNS", "2")
	t.Setenv("REDIS_MAX_RETRIES", "3")
	t.Setenv("REDIS_OTEL", "true")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Stream != "s" || cfg.HealthcheckTimeout != time.Second || cfg.EventTTL != time.Minute || cfg.StreamMaxLen != 10 {
		t.Fatalf("unexpected redis cfg: %+v", cfg)
	}
	if cfg.DialTimeout == nil || *cfg.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if cfg.ReadTimeout == nil || *cfg.ReadTimeout != 4*time.Second {
		t.Fatalf("unexpected read timeout: %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout == nil || *cfg.WriteTimeout != 5*time.Second {
		t.Fatalf("unexpected write timeout: %v", cfg.WriteTimeout)
	}
	if cfg.PoolSize == nil || *cfg.PoolSize != 9 {
		t.Fatalf("unexpected pool size: %v", cfg.PoolSize)
	}
	if cfg.MinIdleConns == nil || *cfg.MinIdleConns != 2 {
		t.Fatalf("unexpected min idle: %v", cfg.MinIdleConns)
	}
	if cfg.MaxRetries == nil || *cfg.MaxRetries != 3 {
		t.Fatalf("unexpected max retries: %v", cfg.MaxRetries)
	}
	if !cfg.EnableOTel {
		t.Fatalf("expected otel enabled")
	}
}

func TestLoadRedis_InvalidFields(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "bad")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for bad healthcheck timeout")
	}

	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "1s")
	t.Setenv("REDIS_EVENT_TTL", "bad")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for bad event ttl")
	}

	t.Setenv("REDIS_EVENT_TTL", "1s")
	t.Setenv("REDIS_STREAM_MAXLEN", "notint")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for bad stream maxlen")
	}

	t.Setenv("REDIS_STREAM_MAXLEN", "-5")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for negative stream maxlen")
	}
}

func TestLoadRedisTLS_NoSettingsReturnsNil(t *testing.T) {
	if cfg, err := loadRedisTLSFromEnv(); err != nil || cfg != nil {
		t.Fatalf("expected nil tls config, got %#v err %v", cfg, err)
	}
}

func TestLoadRedisTLS_MismatchedKeyPair(t *testing.T) {
	t.Setenv("REDIS_TLS_CERT_FILE", "cert")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected cert/key mismatch error")
	}
}

func TestLoadRedisTLS_InvalidInsecureFlag(t *testing.T) {
	t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "notabool")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected parse bool error")
	}
}

func TestLoadRedisTLS_InsecureTrue(t *testing.T) {
	t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "true")
	cfg, err := loadRedisTLSFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || !cfg.InsecureSkipVerify {
		t.Fatalf("expected insecure tls config, got %#v", cfg)
	}
}

func TestLoadRedisTLS_ReadCAError(t *testing.T) {
	t.Setenv("REDIS_TLS_CA_FILE", "/no/such/file")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected read error for missing CA file")
	}
}

func TestOptionalHelpers(t *testing.T) {
	t.Setenv("X_OPT_DUR", "-1ms")
	if _, err := optionalDuration("X_OPT_DUR"); err == nil {
		t.Fatalf("expected negative duration error")
	}
	t.Setenv("X_OPT_INT", "-1")
	if _, err := optionalInt("X_OPT_INT"); err == nil {
		t.Fatalf("expected negative int error")
	}
	t.Setenv("X_OPT_BOOL", "notbool")
	if _, err := optionalBool("X_OPT_BOOL"); err == nil {
		t.Fatalf("expected bool parse error")
	}

	t.Setenv("X_DUR_OR", "")
	if got, err := durationOr("X_DUR_OR", time.Minute); err != nil || got != time.Minute {
		t.Fatalf("expected default duration, got %v err %v", got, err)
	}
	t.Setenv("X_INT64_OR", "")
	if got, err := int64Or("X_INT64_OR", 7); err != nil || got != 7 {
		t.Fatalf("expected default int64, got %d err %v", got, err)
	}
	t.Setenv("X_STRING_OR", " v ")
	if got := stringOr("X_STRING_OR", "d"); got != "v" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}
