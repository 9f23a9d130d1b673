package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/designaudit-service/internal/delivery/http/handler"
	"github.com/user/designaudit-service/internal/delivery/http/middleware"
)

func New(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)

	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api/audits", func(r chi.Router) {
		r.Post("/", h.HandleStartAudit)
		r.Get("/{jobID}/status", h.HandleAuditStatus)
		r.Post("/{jobID}/cancel", h.HandleCancelAudit)
		r.Get("/{jobID}/result", h.HandleAuditResult)
		r.Post("/{jobID}/retry", h.HandleRetryPage)
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
