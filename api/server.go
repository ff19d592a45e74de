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
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/businesses/*   Business payer management
  /api/properties/*   Property payer management
  /api/bills/*        Payment recording
  /api/adjustments    Bill adjustments
  /api/fees/*         Fee catalog
  /api/zones/*        Zone and sub-zone administration

SECURITY NOTE:
  No authentication middleware currently. Identity arrives via the
  X-Actor-Id / X-Actor-Name headers set by the auth gateway.

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

	"github.com/munirev/revenue-engine/ledger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Id", "X-Actor-Name"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// The two payer kinds share handlers; the route group fixes the kind.
		r.Route("/businesses", payerRoutes(h, ledger.KindBusiness))
		r.Route("/properties", payerRoutes(h, ledger.KindProperty))

		// Payment routes
		r.Route("/bills", func(r chi.Router) {
			r.Post("/{id}/payments", h.recordPayment)
		})

		// Adjustment routes
		r.Post("/adjustments", h.recordAdjustment)

		// Fee catalog routes
		r.Route("/fees", func(r chi.Router) {
			r.Get("/", h.listFees)
			r.Post("/", h.saveFee)
			r.Get("/resolve", h.resolveFee)
		})

		// Zone routes
		r.Route("/zones", func(r chi.Router) {
			r.Get("/", h.listZones)
			r.Post("/", h.createZone)
			r.Get("/{id}/subzones", h.listSubZones)
			r.Post("/{id}/subzones", h.createSubZone)
		})

		// Demo scenario routes (development only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Health check for load balancers.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

func payerRoutes(h *Handler, kind ledger.PayerKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.listPayers(kind))
		r.Post("/", h.createPayer(kind))
		r.Get("/{id}", h.getPayer(kind))
		r.Put("/{id}", h.updatePayer(kind))
		r.Delete("/{id}", h.deletePayer(kind))
		r.Get("/{id}/relationships", h.inspectRelationships(kind))
		r.Get("/{id}/audit", h.payerAudit(kind))
		r.Post("/{id}/bills", h.recordBill(kind))
	}
}
