package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	financehttp "github.com/odyssey-erp/fincore/internal/finance/http"
	"github.com/odyssey-erp/fincore/internal/observability"
	reporthttp "github.com/odyssey-erp/fincore/internal/report/http"
	"github.com/odyssey-erp/fincore/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Metrics        *observability.Metrics
	FinanceHandler *financehttp.Handler
	ReportHandler  *reporthttp.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(CallerIdentity)
		if params.FinanceHandler != nil {
			params.FinanceHandler.MountRoutes(r)
		}
		if params.ReportHandler != nil {
			params.ReportHandler.MountRoutes(r)
		}
	})

	return r
}
