// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, compression,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rigradar/go-radar-backend/internal/auth"
	"github.com/rigradar/go-radar-backend/internal/billing"
	"github.com/rigradar/go-radar-backend/internal/config"
	"github.com/rigradar/go-radar-backend/internal/http/handlers"
	"github.com/rigradar/go-radar-backend/internal/http/middleware"
	"github.com/rigradar/go-radar-backend/internal/services"
	"github.com/rigradar/go-radar-backend/internal/store"
)

// Backends carries the shared infrastructure the routes are wired to. The
// router owns service construction; callers own connections and clients.
type Backends struct {
	Store       store.Store
	Completions services.Completer
	Queue       services.TaskQueue
	Sessions    *auth.Sessions
	Google      handlers.GoogleTokenVerifier
	GitHub      handlers.GitHubCodeExchanger
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), compression and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Structured request logging
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Response compression
//  8. Optional session resolution (identity for the rate limiter and logs)
//  9. Rate limiter (per session identity, falling back to IP)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, b Backends, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured request logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compress responses (feed and chat history payloads benefit most)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 8) Resolve the session early so the rate limiter can key on identity;
	// enforcement stays with RequireSession on the user group.
	r.Use(middleware.OptionalSession(b.Sessions))

	// 9) Token-bucket rate limiter per identity/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture. The session rides an HttpOnly cookie, so credentialed
	// CORS is only possible against an explicit origin allowlist.
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: true,
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

	// Dependency injection: services ← store/queue/providers
	quota := &services.Quota{Store: b.Store, Limit: cfg.FreeDailyLimit}
	chatSvc := &services.ChatService{Store: b.Store, Completions: b.Completions, Quota: quota}
	scanSvc := &services.ScanService{Store: b.Store, Queue: b.Queue, Quota: quota}
	dealSvc := &services.DealService{Store: b.Store}
	supportSvc := &services.SupportService{Store: b.Store, Completions: b.Completions}
	billingSync := &billing.Sync{Store: b.Store}

	authH := handlers.NewAuth(&auth.Passwords{Store: b.Store}, b.Sessions, b.Google, b.GitHub, b.Store, cfg.CookieSecure, cfg.SessionTTL)
	chatH := handlers.NewChat(chatSvc)
	scanH := handlers.NewScan(scanSvc)
	dealH := handlers.NewDeals(dealSvc)
	ingestH := handlers.NewIngest(dealSvc)
	billingH := handlers.NewBilling(billingSync, cfg.BillingWebhookSecret)
	supportH := handlers.NewSupport(supportSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Sign-in surface and the anonymous support bot
		api.POST("/auth/register", authH.Register)
		api.POST("/auth/login", authH.Login)
		api.POST("/auth/logout", authH.Logout)
		api.POST("/auth/google", authH.GoogleSignIn)
		api.GET("/auth/github/callback", authH.GitHubCallback)
		api.POST("/support", supportH.Ask)

		// Session-gated user surface
		user := api.Group("", middleware.RequireSession(b.Sessions))
		{
			user.GET("/me", authH.Me)

			user.POST("/chat", chatH.Answer)
			user.GET("/chats", chatH.Sidebar)
			user.GET("/chats/:id/messages", chatH.History)

			user.POST("/scans", scanH.Dispatch)

			user.POST("/deals/save", dealH.Save)
			user.POST("/deals/unsave", dealH.Unsave)
			user.GET("/deals/saved", dealH.Saved)
			user.GET("/feed", dealH.Feed)
		}
	}

	// Machine-to-machine surfaces live outside the versioned base path; the
	// worker and the billing provider are configured with fixed URLs.
	worker := r.Group("/internal", middleware.RequireWorkerKey(cfg.WorkerAPIKey))
	worker.POST("/ingest", ingestH.Ingest)
	r.POST("/webhooks/billing", billingH.Webhook)
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
