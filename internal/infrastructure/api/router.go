package api

import (
	"encoding/json"
	"net/http"

	"github.com/eleva-labs/chatwoot/internal/application"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Compliance   *ComplianceHandler
	Subscription *application.SubscriptionService
	Hooks        ports.IntegrationHookRepository
	Registry     *prometheus.Registry
	Logger       zerolog.Logger
}

// NewRouter builds the HTTP router: the three webhook endpoints, the
// operator-facing compliance health report, and health/metrics probes.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Post("/webhooks/customers_data_request", deps.Compliance.CustomersDataRequest)
	r.Post("/webhooks/customers_redact", deps.Compliance.CustomersRedact)
	r.Post("/webhooks/shop_redact", deps.Compliance.ShopRedact)

	r.Get("/internal/compliance/health", subscriptionHealthHandler(deps.Subscription, deps.Logger))
	r.Post("/internal/hooks/{hookID}/subscriptions", triggerSubscriptionHandler(deps.Subscription, deps.Hooks, deps.Logger))

	return r
}

func subscriptionHealthHandler(svc *application.SubscriptionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.HealthReport(r.Context())
		if err != nil {
			logger.Error().Err(err).Msg("failed to build subscription health report")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

// triggerSubscriptionHandler kicks off a subscription pass for one
// hook, used by operators after resolving a manual-intervention state.
func triggerSubscriptionHandler(svc *application.SubscriptionService, hooks ports.IntegrationHookRepository, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hookID := chi.URLParam(r, "hookID")
		hook, err := hooks.GetByID(r.Context(), hookID)
		if err != nil {
			logger.Error().Err(err).Str("hook_id", hookID).Msg("failed to load hook")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if hook == nil {
			http.Error(w, "hook not found", http.StatusNotFound)
			return
		}

		if err := svc.BeginOnboarding(r.Context(), hook); err != nil {
			logger.Error().Err(err).Str("hook_id", hookID).Msg("subscription pass failed")
			http.Error(w, "subscription failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
