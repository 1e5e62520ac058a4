package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// It sets up batch and task routes, worker signals, health check, and the
// Prometheus metrics endpoint.
func NewRouter(service BatchServiceI, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	h := NewHandler(service, logger)

	r.Route("/batches", func(r chi.Router) {
		r.Post("/", h.CreateBatch)
		r.Route("/{batchID}", func(r chi.Router) {
			r.Get("/", h.GetBatch)
			r.Get("/history", h.GetBatchHistory)
			r.Get("/delivery", h.GetDelivery)
			r.Post("/retry", h.RetryBatch)
			r.Post("/cancel", h.CancelBatch)
			r.Post("/recompute", h.RecomputeBatch)
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", h.GetTask)
			r.Get("/history", h.GetTaskHistory)
			r.Post("/start", h.StartTask)
			r.Post("/progress", h.ReportProgress)
			r.Post("/complete", h.CompleteTask)
			r.Post("/fail", h.FailTask)
			r.Post("/retry", h.RetryTask)
			r.Post("/cancel", h.CancelTask)
		})
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
