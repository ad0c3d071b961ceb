// Command server runs the access-control API.
//
// Startup order:
//  1. Load .env (best effort) and configuration from the environment.
//  2. Configure global logging and OpenTelemetry tracing.
//  3. Open SQLite, run migrations.
//  4. Wire the payment gateway, services, and HTTP routes.
//  5. Start the reconciliation sweep and platform-unlock refresh tickers.
//  6. Serve until SIGINT/SIGTERM, then drain gracefully.
//
// @title       Access Backend API
// @version     1.0
// @description Multi-tenant access control plane: entitlements, capability policy, checkout and payment reconciliation.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/veltix/go-access-backend/docs" // swagger spec registration
	"github.com/veltix/go-access-backend/internal/config"
	"github.com/veltix/go-access-backend/internal/gateway"
	httpapi "github.com/veltix/go-access-backend/internal/http"
	"github.com/veltix/go-access-backend/internal/observability"
	"github.com/veltix/go-access-backend/internal/repo"
	"github.com/veltix/go-access-backend/internal/services"
	"github.com/veltix/go-access-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Local development convenience; absent files are fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	gw := gateway.NewStripeClient(
		cfg.Stripe.SecretKey,
		cfg.Stripe.WebhookSecret,
		cfg.Stripe.SuccessURL,
		cfg.Stripe.CancelURL,
	)

	unlock := &services.UnlockState{Threshold: cfg.UnlockThreshold}
	if err := unlock.Refresh(ctx, db); err != nil {
		// Locked until the first successful refresh; fail closed, not fatal.
		log.Warn().Err(err).Msg("initial platform-unlock refresh failed")
	}

	recon := &services.ReconcilerService{
		DB:         db,
		Gateway:    gw,
		StaleAfter: cfg.StaleAfter,
		Batch:      cfg.SweepBatch,
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, gw, unlock, recon, cfg)

	// Background loops: reconciliation sweep + unlock-threshold refresh.
	go runSweeps(ctx, recon, cfg.SweepInterval)
	go runUnlockRefresh(ctx, unlock, db, cfg.UnlockRefresh)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// runSweeps triggers the reconciliation sweep on a fixed ticker until ctx is
// cancelled. Sweep errors are logged and the next tick retries; the sweep is
// idempotent so overlapping or redundant runs are harmless.
func runSweeps(ctx context.Context, recon *services.ReconcilerService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := recon.SweepOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("reconciliation sweep failed")
				continue
			}
			if res.Scanned > 0 {
				log.Info().
					Int("scanned", res.Scanned).
					Int("settled", res.Settled).
					Int("errors", res.Errors).
					Msg("reconciliation sweep complete")
			}
		}
	}
}

// runUnlockRefresh recomputes the platform-wide unlock snapshot periodically.
// Failures keep the previous snapshot (new processes stay locked), so the
// evaluator never sees a partial count.
func runUnlockRefresh(ctx context.Context, unlock *services.UnlockState, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := unlock.Refresh(ctx, db); err != nil {
				log.Warn().Err(err).Msg("platform-unlock refresh failed")
			}
		}
	}
}
