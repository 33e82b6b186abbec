// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/attendsync/internal/middleware"
)

// RouterConfig holds the HTTP edge settings.
type RouterConfig struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	// SlowRequest is the access log warning threshold. Zero disables it.
	SlowRequest time.Duration
}

// DefaultRouterConfig returns conservative defaults: no CORS origins and
// 100 requests per minute per client IP.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		SlowRequest:       2 * time.Second,
	}
}

// Router builds the chi router.
type Router struct {
	handler *Handler
	cfg     RouterConfig
	ws      http.Handler
}

// NewRouter creates a Router. ws serves /api/v1/ws and may be nil.
func NewRouter(handler *Handler, cfg RouterConfig, ws http.Handler) *Router {
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = DefaultRouterConfig().RateLimitRequests
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = DefaultRouterConfig().RateLimitWindow
	}
	return &Router{handler: handler, cfg: cfg, ws: ws}
}

// Setup returns the root http.Handler.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(rt.cfg.SlowRequest))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.corsHandler())

	h := rt.handler

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Group(func(r chi.Router) {
		r.Use(rt.rateLimit())

		r.Route("/api/v1/sync", func(r chi.Router) {
			r.Get("/status", h.SyncStatus)
			r.Post("/now", h.SyncNow)
			r.Post("/test-connection", h.TestConnection)
			r.Post("/auto/start", h.StartAutoSync)
			r.Post("/auto/stop", h.StopAutoSync)
			r.Get("/latest", h.SyncLatest)
			r.Get("/history/summary", h.SyncHistorySummary)
			r.Get("/audit", h.SyncAudit)
		})

		r.Get("/api/v1/attendance", h.Attendance)
		r.Get("/api/v1/device/users", h.DeviceUsers)

		r.Route("/api/v1/backups", func(r chi.Router) {
			r.Get("/", h.ListBackups)
			r.Post("/", h.CreateBackup)
			r.Post("/{id}/verify", h.VerifyBackup)
		})
	})

	if rt.ws != nil {
		r.Handle("/api/v1/ws", rt.ws)
	}

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusNotFound, ErrCodeNotFound, "Endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}

// corsHandler emits no CORS headers when no origins are configured:
// go-chi/cors treats an empty list as "allow all".
func (rt *Router) corsHandler() func(http.Handler) http.Handler {
	if len(rt.cfg.CORSOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

func (rt *Router) rateLimit() func(http.Handler) http.Handler {
	if rt.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		rt.cfg.RateLimitRequests,
		rt.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(middleware.RateLimitExceeded),
	)
}
