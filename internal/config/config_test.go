package config

import (
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so defaults are observable
// regardless of the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "SWAGGER_ENABLED",
		"API_BASE_PATH", "DB_PATH",
		"RATE_API_CAPACITY", "RATE_API_INTERVAL",
		"RATE_PAYMENT_CAPACITY", "RATE_PAYMENT_INTERVAL",
		"RATE_WEBHOOK_CAPACITY", "RATE_WEBHOOK_INTERVAL",
		"RECONCILE_STALE_AFTER", "RECONCILE_INTERVAL", "RECONCILE_BATCH",
		"PLATFORM_UNLOCK_THRESHOLD", "PLATFORM_UNLOCK_REFRESH",
		"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_SUCCESS_URL", "STRIPE_CANCEL_URL",
		"CRON_SECRET", "JWT_SECRET", "AUTH_ALLOW_DEMO_HEADER",
		"CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "HSTS_MAX_AGE", "IDEMPOTENCY_TTL",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.DBPath != "app.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.RateAPI.Capacity != 60 || cfg.RateAPI.Interval != time.Minute {
		t.Fatalf("RateAPI = %+v", cfg.RateAPI)
	}
	if cfg.RatePayment.Capacity != 10 || cfg.RateWebhook.Capacity != 120 {
		t.Fatalf("rate namespaces: payment=%+v webhook=%+v", cfg.RatePayment, cfg.RateWebhook)
	}
	if cfg.StaleAfter != 10*time.Minute || cfg.SweepInterval != 5*time.Minute || cfg.SweepBatch != 200 {
		t.Fatalf("reconcile defaults: stale=%v interval=%v batch=%d", cfg.StaleAfter, cfg.SweepInterval, cfg.SweepBatch)
	}
	if cfg.UnlockThreshold != 1000 || cfg.UnlockRefresh != time.Minute {
		t.Fatalf("unlock defaults: %d / %v", cfg.UnlockThreshold, cfg.UnlockRefresh)
	}
	if cfg.Stripe.SecretKey != "" || cfg.Stripe.WebhookSecret != "" {
		t.Fatal("stripe credentials must default empty")
	}
	if cfg.Stripe.SuccessURL == "" || cfg.Stripe.CancelURL == "" {
		t.Fatal("stripe redirect URLs must have defaults")
	}
	if cfg.CronSecret != "" || cfg.Auth.JWTSecret != "" || cfg.Auth.AllowDemoHeader {
		t.Fatalf("secrets must default empty/disabled: %+v", cfg.Auth)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("IdempotencyTTL = %v", cfg.IdempotencyTTL)
	}
	if cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "go-access-backend" || cfg.OTEL.SampleRatio != 1.0 {
		t.Fatalf("OTEL defaults: %+v", cfg.OTEL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GIN_MODE", "DEBUG")
	t.Setenv("LOG_LEVEL", "warning") // normalized to warn
	t.Setenv("RATE_PAYMENT_CAPACITY", "3")
	t.Setenv("RATE_PAYMENT_INTERVAL", "10s")
	t.Setenv("RECONCILE_STALE_AFTER", "2m")
	t.Setenv("RECONCILE_BATCH", "50")
	t.Setenv("PLATFORM_UNLOCK_THRESHOLD", "0")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("JWT_SECRET", "hmac-key")
	t.Setenv("AUTH_ALLOW_DEMO_HEADER", "yes")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("IDEMPOTENCY_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "debug" {
		t.Fatalf("GinMode = %q, want lowercased debug", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.RatePayment.Capacity != 3 || cfg.RatePayment.Interval != 10*time.Second {
		t.Fatalf("RatePayment = %+v", cfg.RatePayment)
	}
	if cfg.StaleAfter != 2*time.Minute || cfg.SweepBatch != 50 {
		t.Fatalf("reconcile: stale=%v batch=%d", cfg.StaleAfter, cfg.SweepBatch)
	}
	if cfg.UnlockThreshold != 0 {
		t.Fatalf("UnlockThreshold = %d, want 0 (always unlocked is legal)", cfg.UnlockThreshold)
	}
	if cfg.Stripe.SecretKey != "sk_test_123" || cfg.CronSecret != "s3cret" {
		t.Fatal("secrets not picked up")
	}
	if cfg.Auth.JWTSecret != "hmac-key" || !cfg.Auth.AllowDemoHeader {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.IdempotencyTTL != time.Hour {
		t.Fatalf("IdempotencyTTL = %v", cfg.IdempotencyTTL)
	}
}

func TestLoad_UnknownGinModeFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("GIN_MODE", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q, want release", cfg.GinMode)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string][2]string{
		"bad log level":       {"LOG_LEVEL", "verbose"},
		"zero rate capacity":  {"RATE_API_CAPACITY", "0"},
		"zero sweep batch":    {"RECONCILE_BATCH", "0"},
		"negative threshold":  {"PLATFORM_UNLOCK_THRESHOLD", "-1"},
		"zero idempotency":    {"IDEMPOTENCY_TTL", "0s"},
		"sample ratio beyond": {"OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad did not panic")
		}
	}()
	MustLoad()
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"api":      "/api",
		"/api/v1/": "/api/v1",
		"/":        "/",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
