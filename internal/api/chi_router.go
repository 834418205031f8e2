// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fieldsync/internal/canvass"
	"github.com/tomtom215/fieldsync/internal/middleware"
)

// Router wires handlers and middleware.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter builds a router over coord. events may be nil, in which case
// /api/v1/ws answers 503. A nil cfg uses DefaultChiMiddlewareConfig.
func NewRouter(coord *canvass.Coordinator, events http.Handler, cfg *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       NewHandler(coord, events),
		chiMiddleware: NewChiMiddleware(cfg),
	}
}

// SetupChi returns the HTTP handler for every route.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Handle("/metrics", promhttp.Handler())

	h := router.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequestLogging())
		r.Use(router.chiMiddleware.RateLimit())

		// the upgrade must not see JSON headers
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(APISecurityHeaders())
			r.Use(middleware.Compression)

			r.Get("/health/live", h.HealthLive)
			r.Get("/status", h.Status)

			r.Get("/markers", h.Markers)
			r.Get("/markers/{id}", h.Marker)
			r.Get("/list", h.List)

			r.Get("/queue", h.Queue)
			r.Post("/replay", h.Replay)

			r.Post("/position", h.Position)
			r.Post("/region", h.Region)
			r.Post("/refresh", h.Refresh)

			r.Get("/turfs", h.Turfs)
			r.Post("/turfs/select", h.SelectTurf)

			r.Post("/addresses/suggest", h.SuggestAddress)
			r.Post("/addresses", h.ConfirmAddress)
			r.Post("/units", h.AddUnit)
			r.Post("/visits/status", h.RecordStatus)
			r.Post("/visits", h.RecordVisit)

			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.SaveSettings)
			r.Get("/disclosure", h.GetDisclosure)
			r.Post("/disclosure", h.AcceptDisclosure)

			r.Get("/history", h.History)
		})
	})

	return r
}
