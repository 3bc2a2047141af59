// Command server runs the wallet backend HTTP API.
//
// Startup order: .env → config → logging → OTel → sqlite → runtime →
// router. Shutdown drains the HTTP server first, then flushes the tracer
// provider.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avlonitis/go-wallet-backend/internal/config"
	httpapi "github.com/avlonitis/go-wallet-backend/internal/http"
	"github.com/avlonitis/go-wallet-backend/internal/notify"
	"github.com/avlonitis/go-wallet-backend/internal/observability"
	"github.com/avlonitis/go-wallet-backend/internal/repo"
	"github.com/avlonitis/go-wallet-backend/internal/sysutil"
	"github.com/avlonitis/go-wallet-backend/internal/wallet/sim"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().
		Str("version", sysutil.FirstNonEmpty(os.Getenv("VERSION"), version)).
		Str("port", cfg.Port).
		Str("network", cfg.Network).
		Msg("starting wallet backend")

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("opentelemetry setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("sqlite open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")

	// The in-process runtime stands in for the external wallet runtime in
	// development deployments.
	runtime := sim.New(cfg.Network)
	sink := notify.NewMemorySink(cfg.NotifyBuffer)

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{DB: db, Runtime: runtime, Sink: sink}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
		_ = srv.Close()
	} else {
		log.Info().Msg("http server stopped")
	}

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown error")
	}

	log.Info().Msg("wallet backend stopped")
}
