// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, payment
// gateway credentials, reconciliation, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/veltix/go-access-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-access-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RateConfig defines one token-bucket namespace: Capacity tokens refilled
// evenly over Interval. A bucket starting full allows Capacity immediate
// requests and then refuses until tokens accrue again.
type RateConfig struct {
	Capacity int           // bucket size (>= 1)
	Interval time.Duration // full-refill interval (> 0)
}

// StripeConfig holds payment gateway credentials. SecretKey authenticates
// API calls (checkout creation, payment listing); WebhookSecret verifies
// inbound event signatures.
type StripeConfig struct {
	SecretKey     string // STRIPE_SECRET_KEY
	WebhookSecret string // STRIPE_WEBHOOK_SECRET
	SuccessURL    string // STRIPE_SUCCESS_URL (buyer redirect after payment)
	CancelURL     string // STRIPE_CANCEL_URL (buyer redirect on abandon)
}

// AuthConfig defines how request identity is established.
type AuthConfig struct {
	// JWTSecret is the HMAC key for bearer tokens. Empty disables JWT auth.
	JWTSecret string
	// AllowDemoHeader permits X-User-ID as identity (tests / local dev only).
	AllowDemoHeader bool
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Rate limiting (per endpoint namespace)
	RateAPI     RateConfig
	RatePayment RateConfig
	RateWebhook RateConfig

	// Reconciliation
	StaleAfter    time.Duration // pending orders younger than this are skipped
	SweepInterval time.Duration // scheduled sweep period
	SweepBatch    int           // max candidates per sweep run

	// Platform unlock
	UnlockThreshold int           // paid users needed for platform-wide unlock
	UnlockRefresh   time.Duration // paid-user count recompute period

	// Payments
	Stripe StripeConfig

	// Ops
	CronSecret string // shared secret for /internal endpoints

	// Identity
	Auth AuthConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// Rate limiting
		RateAPI: RateConfig{
			Capacity: getint("RATE_API_CAPACITY", 60),
			Interval: getdur("RATE_API_INTERVAL", time.Minute),
		},
		RatePayment: RateConfig{
			Capacity: getint("RATE_PAYMENT_CAPACITY", 10),
			Interval: getdur("RATE_PAYMENT_INTERVAL", time.Minute),
		},
		RateWebhook: RateConfig{
			Capacity: getint("RATE_WEBHOOK_CAPACITY", 120),
			Interval: getdur("RATE_WEBHOOK_INTERVAL", time.Minute),
		},

		// Reconciliation
		StaleAfter:    getdur("RECONCILE_STALE_AFTER", 10*time.Minute),
		SweepInterval: getdur("RECONCILE_INTERVAL", 5*time.Minute),
		SweepBatch:    getint("RECONCILE_BATCH", 200),

		// Platform unlock
		UnlockThreshold: getint("PLATFORM_UNLOCK_THRESHOLD", 1000),
		UnlockRefresh:   getdur("PLATFORM_UNLOCK_REFRESH", time.Minute),

		// Payments
		Stripe: StripeConfig{
			SecretKey:     getenv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getenv("STRIPE_SUCCESS_URL", "http://localhost:8080/checkout/success"),
			CancelURL:     getenv("STRIPE_CANCEL_URL", "http://localhost:8080/checkout/cancel"),
		},

		// Ops
		CronSecret: getenv("CRON_SECRET", ""),

		// Identity
		Auth: AuthConfig{
			JWTSecret:       getenv("JWT_SECRET", ""),
			AllowDemoHeader: getbool("AUTH_ALLOW_DEMO_HEADER", false),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-access-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	for _, rc := range []RateConfig{cfg.RateAPI, cfg.RatePayment, cfg.RateWebhook} {
		if rc.Capacity < 1 {
			return cfg, errors.New("rate limit capacities must be >= 1")
		}
		if rc.Interval <= 0 {
			return cfg, errors.New("rate limit intervals must be > 0")
		}
	}
	if cfg.StaleAfter <= 0 {
		return cfg, errors.New("RECONCILE_STALE_AFTER must be > 0")
	}
	if cfg.SweepInterval <= 0 {
		return cfg, errors.New("RECONCILE_INTERVAL must be > 0")
	}
	if cfg.SweepBatch < 1 {
		return cfg, errors.New("RECONCILE_BATCH must be >= 1")
	}
	if cfg.UnlockThreshold < 0 {
		return cfg, errors.New("PLATFORM_UNLOCK_THRESHOLD must be >= 0")
	}
	if cfg.UnlockRefresh <= 0 {
		return cfg, errors.New("PLATFORM_UNLOCK_REFRESH must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- env helpers ----
//
// Malformed values fall back to the default rather than fail: a typo in a
// tuning knob should not keep the process from starting. Validation above
// catches values that are well-formed but out of range.

func getenv(k, def string) string {
	return sysutil.FirstNonEmpty(os.Getenv(k), def)
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
