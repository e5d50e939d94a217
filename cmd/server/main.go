// Package main runs the KALA anonymous messaging API.
//
// @title           KALA API
// @version         1.0
// @description     Anonymous messages behind time-limited share links.
// @BasePath        /api
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
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
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/docs"
	"github.com/tbourn/go-kala-backend/internal/auth"
	"github.com/tbourn/go-kala-backend/internal/cache"
	"github.com/tbourn/go-kala-backend/internal/config"
	httpapi "github.com/tbourn/go-kala-backend/internal/http"
	"github.com/tbourn/go-kala-backend/internal/observability"
	"github.com/tbourn/go-kala-backend/internal/repo"
	"github.com/tbourn/go-kala-backend/internal/services"
	"github.com/tbourn/go-kala-backend/internal/sysutil"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownGrace       = 15 * time.Second
	idempotencyPurgeInt = time.Hour
)

func main() {
	// .env is optional outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogger(os.Stderr, "info", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	version = sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped gracefully")
}

func run(ctx context.Context, cfg config.Config) error {
	log.Info().
		Str("version", version).
		Str("db_driver", cfg.DB.Driver).
		Str("base_path", cfg.APIBasePath).
		Msg("starting kala-backend")

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	profiles, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		// The cache is an optimization; run without it.
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("profile cache disabled")
		profiles = nil
	}
	defer profiles.Close()

	deps := httpapi.Deps{
		DB:         db,
		Identities: auth.NewLocal(db),
		Tokens:     auth.NewTokenMaker(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL),
		Config:     cfg,
	}
	if profiles != nil {
		deps.Cache = profiles
	}
	if cfg.Auth.GoogleClientID != "" {
		deps.Google = auth.NewGoogleVerifier(cfg.Auth.GoogleClientID)
	}
	if cfg.Payments.WebhookSecret == "" {
		log.Warn().Msg("PAYMENT_WEBHOOK_SECRET unset: payment callbacks are accepted unsigned")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = version
	httpapi.RegisterRoutes(r, deps)

	go purgeIdempotency(ctx, db)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

// purgeIdempotency drops expired send keys until ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(idempotencyPurgeInt)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			qctx, cancel := context.WithTimeout(ctx, services.DefaultTimeout)
			n, err := repo.PurgeExpiredIdempotency(qctx, db, now.UTC())
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("expired idempotency keys purged")
			}
		}
	}
}
