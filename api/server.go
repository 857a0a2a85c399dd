/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/quotes/*         Rates and prices without persisting anything
  /api/fees             Fee calculator
  /api/contracts/*      Contract lifecycle and reconciliation
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty means the local frontend dev servers.
	AllowedOrigins []string

	// Metrics serves /metrics when set. Nil uses the default gatherer.
	Metrics http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	metricsHandler := opts.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID", "X-Actor-Role", "X-Partner-Session", "X-Agent-Code"},
		AllowCredentials: true,
	}))

	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Quote routes
		r.Route("/quotes", func(r chi.Router) {
			r.Post("/vehicle/rates", h.QuoteVehicleRates)
			r.Post("/vehicle", h.QuoteVehicle)
			r.Post("/health", h.QuoteHealth)
			r.Post("/travel", h.QuoteTravel)
		})
		r.Post("/fees", h.ComputeFees)

		r.Get("/products", h.ListProducts)

		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/by-number/{number}", h.GetContractByNumber)
			r.Get("/{id}", h.GetContract)
			r.Patch("/{id}", h.UpdateContract)
			r.Get("/{id}/history", h.GetHistory)
			r.Get("/{id}/transitions", h.AvailableTransitions)
			r.Post("/{id}/transitions", h.TransitionContract)
			r.Post("/{id}/reconcile", h.ReconcileContract)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
