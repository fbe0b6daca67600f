package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/clinassist/clinassist/internal/domain/dosage"
	"github.com/clinassist/clinassist/internal/domain/recording"
	"github.com/clinassist/clinassist/internal/domain/reference"
	"github.com/clinassist/clinassist/internal/platform/auth"
	"github.com/clinassist/clinassist/internal/platform/db"
	"github.com/clinassist/clinassist/internal/platform/gateway"
	"github.com/clinassist/clinassist/internal/platform/health"
	"github.com/clinassist/clinassist/internal/platform/middleware"
)

const (
	apiPrefix       = "/api/v1"
	shutdownTimeout = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := loadApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	if a.cfg.IsDev() {
		logger.Warn().Msg("running in development mode: requests without a token are accepted with admin access")
	}
	if a.cfg.APIKey() == "" {
		logger.Warn().Str("problem", "configuration").Msg("OPENAI_API_KEY is not set; gateway calls will fail until it is")
	}

	e := newEcho(a)

	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Str("store", a.cfg.StoreBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the server with middleware and routes but does not start it.
func newEcho(a *app) *echo.Echo {
	cfg := a.cfg
	logger := a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	key := []byte(cfg.AuthSigningKey)
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(key))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: key}))
	}

	e.GET("/health", health.Handler(healthChecks(a)...))

	apiV1 := e.Group(apiPrefix)
	apiV1.Use(auth.RequireRole(auth.RoleClinician))
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		KeyFunc:           auth.RateLimitKey,
	}))
	// Uploads are bounded by the gateway timeout instead.
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout, apiPrefix+"/recordings"))

	reference.NewHandler(a.reference).RegisterRoutes(apiV1)
	dosage.NewHandler(a.dosage).RegisterRoutes(apiV1)
	recording.NewHandler(a.recordings, a.files).RegisterRoutes(apiV1)

	return e
}

func healthChecks(a *app) []health.Check {
	checks := []health.Check{
		{
			Name: "store",
			Run: func(ctx context.Context) error {
				_, _, err := a.store.Get(ctx, recording.ListKey)
				return err
			},
			Details: func() interface{} {
				return map[string]string{"backend": a.cfg.StoreBackend}
			},
		},
		{
			Name: "gateway",
			Run:  func(context.Context) error { return nil },
			Details: func() interface{} {
				return map[string]interface{}{
					"credential_configured": a.cfg.APIKey() != "",
					"transcriber":           a.cfg.Transcriber,
					"on_device_available":   gateway.WhisperSupported,
				}
			},
		},
	}
	if a.pool != nil {
		checks = append(checks, health.Check{
			Name:    "database",
			Run:     a.pool.Ping,
			Details: func() interface{} { return db.Stats(a.pool) },
		})
	}
	return checks
}
