package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmos-erp/pharmos-erp/internal/eopa"
	"github.com/pharmos-erp/pharmos-erp/internal/invoice"
	"github.com/pharmos-erp/pharmos-erp/internal/ledger"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/vendors"
	"github.com/pharmos-erp/pharmos-erp/internal/observability"
	"github.com/pharmos-erp/pharmos-erp/internal/procurement"
	"github.com/pharmos-erp/pharmos-erp/internal/sysconfig"
	"github.com/pharmos-erp/pharmos-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	OrderHandler       *eopa.Handler
	ProcurementHandler *procurement.Handler
	InvoiceHandler     *invoice.Handler
	LedgerHandler      *ledger.Handler
	SysconfigHandler   *sysconfig.Handler
	VendorHandler      *vendors.Handler
	JobHandler         *jobs.Handler
	Pool               *pgxpool.Pool
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Warn("healthz db ping", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.OrderHandler != nil {
		r.Route("/eopa", params.OrderHandler.MountRoutes)
	}
	r.Route("/procurement", func(r chi.Router) {
		params.ProcurementHandler.MountRoutes(r)
		if params.InvoiceHandler != nil {
			params.InvoiceHandler.MountRoutes(r)
		}
	})
	if params.LedgerHandler != nil {
		params.LedgerHandler.MountRoutes(r)
	}
	if params.SysconfigHandler != nil {
		r.Route("/sysconfig", params.SysconfigHandler.MountRoutes)
	}
	if params.VendorHandler != nil {
		r.Route("/masterdata", params.VendorHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
