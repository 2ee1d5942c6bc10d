// Package httptransport assembles the HTTP surface: management endpoints
// behind JWT, the dispatcher surface behind its API key, and the operational
// endpoints (health, metrics).
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dispatcherhandler "twinhub/internal/dispatcher/handler"
	parthandler "twinhub/internal/part/handler"
	"twinhub/internal/platform/middleware"
	"twinhub/internal/transport/http/shared"
	twinhandler "twinhub/internal/twin/handler"
)

// Health reports readiness of a backing dependency.
type Health func() error

// Deps carries everything the router mounts.
type Deps struct {
	Parts      *parthandler.Handler
	Twins      *twinhandler.Handler
	Dispatcher *dispatcherhandler.Handler
	Logger     *slog.Logger

	// Named health checks, reported by /healthz.
	Checks map[string]Health
}

// NewRouter wires all endpoints with the shared middleware chain.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", handleHealth(deps.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		deps.Parts.Register(api)
		deps.Twins.Register(api)
	})
	deps.Dispatcher.Register(r)

	return r
}

func handleHealth(checks map[string]Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		shared.WriteJSON(w, status, results)
	}
}
