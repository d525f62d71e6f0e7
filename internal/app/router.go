package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RouterParams groups dependencies for the ops HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Metrics    *observability.Metrics
	JobHandler *jobs.Handler
	Checks     map[string]Pinger
}

// NewRouter builds the worker's ops endpoints: /healthz, /metrics and /jobs.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.Checks))
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	return r
}

type healthStatus struct {
	Status string `json:"status"`
	Check  string `json:"check,omitempty"`
}

func healthz(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Check: name})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, healthStatus{Status: "ok"})
	}
}

// NewOpsServer wraps handler with the configured address and timeouts.
func NewOpsServer(cfg *Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           handler,
		ReadTimeout:       cfg.OpsReadTimeout,
		ReadHeaderTimeout: cfg.OpsReadTimeout,
		WriteTimeout:      cfg.OpsWriteTimeout,
	}
}
