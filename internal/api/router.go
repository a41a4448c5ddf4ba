// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/fieldtrack/internal/auth"
	"github.com/tomtom215/fieldtrack/internal/authz"
	_ "github.com/tomtom215/fieldtrack/internal/docs" // registers the OpenAPI document
	"github.com/tomtom215/fieldtrack/internal/middleware"
)

// Router wires handlers and middleware into one chi tree.
type Router struct {
	handler       *Handler
	authn         *auth.Middleware
	authz         *authz.Middleware
	ingestLimiter *middleware.UserRateLimiter
	chiMiddleware *ChiMiddleware
}

// NewRouter creates the router. ingestLimiter may be nil to disable the
// per-user ingestion limit.
func NewRouter(handler *Handler, authn *auth.Middleware, authzMiddleware *authz.Middleware, ingestLimiter *middleware.UserRateLimiter, chiMw *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		authn:         authn,
		authz:         authzMiddleware,
		ingestLimiter: ingestLimiter,
		chiMiddleware: chiMw,
	}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	// ========================
	// Health (public)
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Get("/", h.Health)
		r.Get("/ready", h.HealthReady)
	})

	// ========================
	// Authenticated API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authn.Authenticate)

		r.Route("/locations", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(router.authz.Authorize(authz.ObjectOwnLocations, authz.ActionWrite))
				if router.ingestLimiter != nil {
					r.Use(router.ingestLimiter.Handler)
				}
				r.Post("/", h.CreateLocation)
				r.Post("/batch", h.CreateLocationBatch)
			})

			// Self-or-other access is decided per request in the handler.
			r.Get("/history", h.LocationHistory)
			r.Get("/history/{userId}", h.LocationHistory)
			r.Get("/stats", h.LocationStats)
			r.Get("/stats/{userId}", h.LocationStats)

			r.With(router.authz.Authorize(authz.ObjectAnyLocations, authz.ActionRead)).
				Get("/current", h.CurrentLocations)

			r.With(router.authz.Authorize(authz.ObjectMaintenance, authz.ActionDelete)).
				Delete("/cleanup", h.CleanupLocations)
			r.With(router.authz.Authorize(authz.ObjectMaintenance, authz.ActionWrite)).
				Post("/compress", h.CompressLocations)
		})

		r.Route("/maintenance/jobs", func(r chi.Router) {
			r.With(router.authz.Authorize(authz.ObjectMaintenance, authz.ActionRead)).
				Get("/", h.ListJobs)
			r.With(router.authz.Authorize(authz.ObjectMaintenance, authz.ActionRead)).
				Get("/{id}", h.GetJob)
			r.With(router.authz.Authorize(authz.ObjectMaintenance, authz.ActionDelete)).
				Delete("/{id}", h.CancelJob)
		})

		r.Get("/ws/locations", h.LiveLocations)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return r
}
