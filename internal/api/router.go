// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all routes. adminRateLimit is requests per minute per
// client IP on the /api tree.
func NewRouter(handler *Handler, adminRateLimit int) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handler.HealthLive)
	r.Get("/readyz", handler.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(adminRateLimit, time.Minute))

		r.Get("/stats", handler.Stats)
		r.Route("/accounts/{username}", func(r chi.Router) {
			r.Get("/", handler.Account)
			r.Get("/logins", handler.AccountLogins)
			r.Post("/ban", handler.Ban)
			r.Post("/reset", handler.Reset)
		})
	})

	return r
}
