package reporthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers the reporting endpoints. The dashboard group
// carries an outer per-user request limiter; the orchestrator enforces
// the finer refresh and prediction budgets itself.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/reports", func(gr chi.Router) {
		gr.Get("/sales", h.handleSales)
		gr.Get("/stock", h.handleStock)
		gr.Get("/services", h.handleServices)
		gr.Get("/arqueos", h.handleArqueos)
		gr.Get("/customers", h.handleCustomers)
		gr.Get("/comparison", h.handleComparison)
	})

	r.Route("/dashboard", func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/summary", h.handleSummary)
		gr.Post("/refresh", h.handleRefresh)
		gr.Post("/predictions", h.handlePredictions)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return "user:" + id, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
