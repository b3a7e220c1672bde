/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/hortator-ai/conclave/internal/config"
	"github.com/hortator-ai/conclave/internal/coordinator"
	"github.com/hortator-ai/conclave/internal/telemetry"
)

// Router mounts the API. /healthz and /metrics bypass auth and rate
// limiting.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(h.RateLimiter.Middleware)

		r.Get("/agents/{agent}/tasks", h.ListTasks)
		r.Get("/agents/{agent}/messages", h.ListMessages)
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/{id}", h.GetTask)
		r.Patch("/tasks/{id}", h.UpdateTask)
		r.Post("/messages", h.SendMessage)
		r.Get("/state", h.GetState)
		r.Put("/state", h.PutState)
		r.Get("/state/history", h.StateHistory)
		r.Get("/search/tasks", h.SearchTasks)
		r.Get("/search/messages", h.SearchMessages)
		r.Post("/ask", h.Ask)
		r.Get("/activity", h.Activity)
	})
	return r
}

// instrument records request counts and latency per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Run builds a coordinator from cfg and serves the API on cfg.Server.Addr
// until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, log logr.Logger) error {
	coord, closeCoord, err := coordinator.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCoord(); err != nil {
			log.Error(err, "Closing coordinator")
		}
	}()

	h := &Handler{
		Service:     coord,
		Log:         log.WithName("gateway"),
		AuthTokens:  cfg.Server.AuthTokens,
		RateLimiter: NewRateLimiter(cfg.Server.RateLimit),
	}
	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     h.Router(),
		ReadTimeout: 10 * time.Second,
		// Ask waits on the model, including retries.
		WriteTimeout: cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		h.Log.Info("starting gateway", "addr", cfg.Server.Addr, "backend", cfg.Backend,
			"auth", len(cfg.Server.AuthTokens) > 0, "rateLimit", cfg.Server.RateLimit)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	h.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
