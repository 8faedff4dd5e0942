package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/kpi"
	"github.com/nuzulstay/nuzulstay/internal/ledger"
	"github.com/nuzulstay/nuzulstay/internal/observability"
	"github.com/nuzulstay/nuzulstay/internal/occupancy"
	"github.com/nuzulstay/nuzulstay/internal/renewal"
	"github.com/nuzulstay/nuzulstay/internal/units"
	"github.com/nuzulstay/nuzulstay/internal/webhook"
	"github.com/nuzulstay/nuzulstay/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	LedgerHandler    *ledger.Handler
	OccupancyHandler *occupancy.Handler
	UnitsHandler     *units.Handler
	RenewalHandler   *renewal.Handler
	KPIHandler       *kpi.Handler
	AuditHandler     *audit.Handler
	WebhookHandler   *webhook.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults. The admin API
// sits under /api behind the actor middleware; webhook ingestion has its own
// root because the payment provider authenticates differently.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(ActorMiddleware)

		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.OccupancyHandler != nil {
			r.Route("/occupancy", params.OccupancyHandler.MountRoutes)
		}
		if params.UnitsHandler != nil {
			params.UnitsHandler.MountRoutes(r)
		}
		if params.RenewalHandler != nil {
			r.Route("/renewals", params.RenewalHandler.MountRoutes)
		}
		if params.KPIHandler != nil {
			r.Route("/reports", params.KPIHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	if params.WebhookHandler != nil {
		r.Route("/webhooks", params.WebhookHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
