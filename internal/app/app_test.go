package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://ledger@localhost/ledger")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "0 2 * * *", cfg.BackfillCron)
	require.Equal(t, "30 2 * * *", cfg.ReconcileCron)
	require.True(t, cfg.ProvisionBankSubAccounts)
	require.Equal(t, 2, cfg.WorkerConcurrency)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadCron(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BACKFILL_CRON", "every night")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "BACKFILL_CRON")
}

func TestLoadConfigAllowsDisabledSchedule(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RECONCILE_CRON", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Empty(t, cfg.ReconcileCron)
}

func TestLoadConfigRejectsNonPositiveConcurrency(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)
	logger.Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "production", line["env"])
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestRouterHealthz(t *testing.T) {
	healthy := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("refused") })

	cases := []struct {
		name   string
		checks map[string]Pinger
		code   int
	}{
		{"all healthy", map[string]Pinger{"postgres": healthy, "redis": healthy}, http.StatusOK},
		{"redis down", map[string]Pinger{"postgres": healthy, "redis": down}, http.StatusServiceUnavailable},
		{"no checks", nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(RouterParams{Config: &Config{}, Metrics: observability.NewMetrics(), Checks: tc.checks})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tc.code, rec.Code)
			require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRouterServesMetricsAndJobs(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:     &Config{},
		Metrics:    observability.NewMetrics(),
		JobHandler: jobs.NewHandler(nil, nil),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"queue":"default"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "odyssey_http_requests_total")
}
