// Package httpapi wires the HTTP transport (Gin) to the wallet orchestration
// services, middleware, and route handlers. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging/redaction, panic
// recovery, metrics, CORS, security headers, idempotency, and rate limiting.
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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/avlonitis/go-wallet-backend/internal/config"
	"github.com/avlonitis/go-wallet-backend/internal/http/handlers"
	"github.com/avlonitis/go-wallet-backend/internal/http/middleware"
	"github.com/avlonitis/go-wallet-backend/internal/notify"
	"github.com/avlonitis/go-wallet-backend/internal/repo"
	"github.com/avlonitis/go-wallet-backend/internal/services"
	"github.com/avlonitis/go-wallet-backend/internal/wallet"
)

// Deps carries the injected collaborators for route registration. The wallet
// runtime is the only hard external dependency; everything else is built
// here from it and the database handle.
type Deps struct {
	DB      *gorm.DB
	Runtime wallet.Runtime
	// Sink receives user-facing notifications produced by the event
	// dispatcher; the API drains it. If nil, a bounded in-memory sink is
	// created.
	Sink *notify.MemorySink
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with payment-string scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with payment-string redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, deps.DB, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP, cost-weighted so payment
	// executions deplete the bucket faster than state reads
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(), middleware.CostByOperation())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (no-store always; HSTS only when enabled and HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
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

	// Dependency injection: services ← runtime/db
	sink := deps.Sink
	if sink == nil {
		sink = notify.NewMemorySink(cfg.NotifyBuffer)
	}
	sendSvc := services.NewSendService(deps.Runtime)
	walletSvc := services.NewWalletService(deps.Runtime)
	walletSvc.HistoryPage = cfg.HistoryPageSize
	depositSvc := services.NewDepositService(deps.Runtime, deps.DB)
	sessionSvc := services.NewSessionService(deps.Runtime, walletSvc, depositSvc, sink)
	sessionSvc.DedupWindow = cfg.DedupWindow

	h := handlers.New(sendSvc, depositSvc, sessionSvc, walletSvc, sink, deps.DB, cfg.IdempotencyTTL)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Session
		api.POST("/session/connect", h.Connect)
		api.POST("/session/disconnect", h.Disconnect)
		api.GET("/session", h.SessionState)
		api.PUT("/session/focus", h.SetFocus)

		// Wallet snapshot
		api.GET("/wallet", h.WalletSnapshot)
		api.POST("/wallet/refresh", h.RefreshWallet)

		// Notifications
		api.GET("/notifications", h.DrainNotifications)

		// Send workflow
		api.POST("/send", h.SubmitInput)
		api.GET("/send", h.State)
		api.DELETE("/send", h.Close)
		api.POST("/send/amount", h.SubmitAmount)
		api.POST("/send/fee", h.SelectFeeTier)
		api.POST("/send/lnurl", h.SubmitLnurl)
		api.POST("/send/confirm", h.Confirm)
		api.POST("/send/back", h.Back)

		// Deposits
		api.GET("/deposits", h.ListDeposits)
		api.POST("/deposits/refresh", h.RefreshDeposits)
		api.POST("/deposits/claim", h.ApproveDeposit)
		api.POST("/deposits/reject", h.RejectDeposit)

		// Refund sub-flow
		api.POST("/deposits/refund", h.StartRefund)
		api.GET("/deposits/refund", h.RefundFlowState)
		api.DELETE("/deposits/refund", h.CloseRefund)
		api.PUT("/deposits/refund/destination", h.SetRefundDestination)
		api.PUT("/deposits/refund/fee", h.SetRefundTier)
		api.POST("/deposits/refund/confirm", h.ConfirmRefund)
		api.POST("/deposits/refund/back", h.RefundBack)
	}
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
