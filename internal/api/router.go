package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wakala/mpesa-analytics/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted. runner may be
// nil, in which case run endpoints answer 503.
func NewRouter(
	stores *repository.Stores,
	runner Runner,
	gatherer prometheus.Gatherer,
	log zerolog.Logger,
) http.Handler {
	h := &Handlers{
		txns:      stores.Transactions,
		summaries: stores.Summaries,
		alerts:    stores.Alerts,
		ping:      stores.Ping,
		runner:    runner,
		log:       log.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/healthz", h.Health)

		r.Route("/api/v1", func(r chi.Router) {
			// Transactions.
			r.Get("/transactions", h.ListTransactions)
			r.Get("/transactions/{id}", h.GetTransaction)

			// Daily summaries.
			r.Get("/summaries", h.ListSummaries)
			r.Get("/summaries/{date}", h.GetSummary)

			// Fraud alerts.
			r.Get("/alerts", h.ListAlerts)

			// Dashboard.
			r.Get("/dashboard", h.GetDashboard)

			// Pipeline runs.
			r.Post("/runs", h.TriggerRun)
			r.Get("/runs/latest", h.GetLatestRun)
		})
	})

	return r
}
