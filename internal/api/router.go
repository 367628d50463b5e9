// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/ws"
)

// Router assembles the HTTP surface.
type Router struct {
	cfg     config.SecurityConfig
	handler *Handler
	auth    *Authenticator
	hub     *ws.Hub
}

// NewRouter wires routes, middleware, and auth. The hub may be nil when
// websockets are not served.
func NewRouter(cfg config.SecurityConfig, handler *Handler, auth *Authenticator, hub *ws.Hub) *Router {
	return &Router{cfg: cfg, handler: handler, auth: auth, hub: hub}
}

// Routes builds the chi handler tree.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(AccessLog)
	r.Use(CORS(rt.cfg.CORSOrigins))

	// Unauthenticated: probes, metrics, API docs.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
		r.Get("/", rt.handler.Health)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
	))

	// Token exchange authenticates with the static token only.
	r.With(RateLimit(rt.cfg)).Post("/api/v1/auth/token", rt.tokenExchange)

	// Everything else requires credentials in token mode.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(rt.cfg))
		r.Use(Metrics)
		r.Use(rt.auth.Middleware)

		r.Post("/retrieve", rt.handler.Retrieve)
		r.Get("/dlq", rt.handler.DLQList)
		r.Post("/dlq/replay", rt.handler.DLQReplay)
		r.Post("/runs/trigger", rt.handler.RunTriggerNow)
		r.Get("/status", rt.handler.Status)
		if rt.hub != nil {
			r.Get("/events", ws.Handler(rt.hub))
		}
	})

	return r
}

// tokenExchangeResponse carries a freshly issued operator JWT.
type tokenExchangeResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// tokenExchange trades the static operator token for a short-lived JWT.
// Disabled when auth mode is none.
//
// @Summary Exchange operator token for a JWT
// @Description Verifies the static operator token and returns a one-hour HS256 JWT. Only the static token is accepted here; a JWT cannot mint another JWT.
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse "Invalid credentials"
// @Failure 404 {object} APIResponse "Token auth not enabled"
// @Router /auth/token [post]
func (rt *Router) tokenExchange(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if rt.auth.Mode() != AuthModeToken {
		rw.NotFound("token auth not enabled")
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		rw.BadRequest("token required")
		return
	}
	if err := rt.auth.VerifyStatic(req.Token); err != nil {
		rw.Unauthorized("invalid credentials")
		return
	}

	signed, expiresAt, err := rt.auth.IssueJWT("operator")
	if err != nil {
		rw.InternalError("token issuance failed")
		return
	}
	rw.Success(tokenExchangeResponse{Token: signed, ExpiresAt: expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00")})
}
