// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, identity, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/veltix/go-access-backend/internal/config"
	"github.com/veltix/go-access-backend/internal/gateway"
	"github.com/veltix/go-access-backend/internal/http/handlers"
	"github.com/veltix/go-access-backend/internal/http/middleware"
	"github.com/veltix/go-access-backend/internal/policy"
	"github.com/veltix/go-access-backend/internal/repo"
	"github.com/veltix/go-access-backend/internal/services"
)

// defaultCatalog is the static set of purchasable products. Prices are minor
// currency units. A real deployment would source this from the billing
// provider's product API; the ids here match the provider dashboard entries.
var defaultCatalog = map[string]services.Product{
	"prod_dashboards":  {Amount: 1999, Currency: "usd"},
	"prod_reports":     {Amount: 4999, Currency: "usd"},
	"prod_api_bundle":  {Amount: 9999, Currency: "usd"},
	"prod_export_pack": {Amount: 2999, Currency: "usd"},
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity,
// idempotency and rate limiting, CORS and security headers, health and metrics
// endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Auth: resolve identity before anything keyed on it
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiters (general budget scoped to the /api group; payment and
//     webhook namespaces attached per route; bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, gw gateway.Client, unlock *services.UnlockState, recon *services.ReconcilerService, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Identity (JWT bearer, optional demo headers)
	r.Use(middleware.Auth(middleware.AuthOptions{
		JWTSecret:       cfg.Auth.JWTSecret,
		AllowDemoHeader: cfg.Auth.AllowDemoHeader,
	}))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, productID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetCheckoutKey(ctx, db, userID, productID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiters. The general API budget covers the public
	// /api group only (attached on the group below); payment initiation adds a
	// tighter per-client bucket on top, and webhook ingestion is governed
	// solely by its own global bucket so provider deliveries are never starved
	// by unrelated unidentified traffic.
	apiRL := middleware.NewRateLimiterFromConfig(cfg.RateAPI, middleware.KeyByUserOrClient())
	paymentRL := middleware.NewRateLimiterFromConfig(cfg.RatePayment, middleware.KeyByClient())
	webhookRL := middleware.NewRateLimiterFromConfig(cfg.RateWebhook, middleware.KeyGlobal("webhook"))

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-User-Plan", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-User-Plan", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// OpenAPI UI (spec registered by the generated docs package)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/gateway
	entSvc := &services.EntitlementService{DB: db}
	accessSvc := &services.AccessService{
		DB:       db,
		Registry: policy.DefaultRegistry(),
		Unlock:   unlock,
	}
	checkoutSvc := &services.CheckoutService{
		DB:      db,
		Gateway: gw,
		Catalog: defaultCatalog,
		KeyTTL:  cfg.IdempotencyTTL,
	}

	h := handlers.New(entSvc, accessSvc, checkoutSvc, recon)
	wh := handlers.NewWebhook(gw, recon)
	ih := handlers.NewInternal(recon, accessSvc, cfg.CronSecret)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	api.Use(apiRL.Handler())
	{
		// Access decisions
		api.GET("/products/:id/access", h.ProductAccess)
		api.GET("/capabilities/:type", h.CapabilityCheck)
		api.POST("/suggestions", h.SubmitSuggestion)

		// Checkout and orders
		api.POST("/products/:id/checkout", paymentRL.Handler(), h.BeginCheckout)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id/status", h.OrderStatus)
	}

	// Provider-facing and operator-facing surfaces live outside the versioned
	// public API.
	r.POST("/webhooks/payment", webhookRL.Handler(), wh.PaymentWebhook)
	r.POST("/internal/reconcile", ih.TriggerReconcile)
	r.POST("/internal/addons", ih.GrantAddOn)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
