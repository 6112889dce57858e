package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"trendboard/internal/cache"
	"trendboard/internal/catalog"
	"trendboard/internal/jobs"
	"trendboard/internal/models"
	"trendboard/internal/query"
	"trendboard/internal/testutil"
)

type stubRunner struct {
	result *models.SyncResult
	err    error
	calls  int
}

func (r *stubRunner) Run(ctx context.Context, trigger string) (*models.SyncResult, error) {
	r.calls++
	if r.result != nil {
		r.result.Trigger = trigger
	}
	return r.result, r.err
}

type testApp struct {
	app    *fiber.App
	store  *testutil.MemStore
	runner *stubRunner
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cat, err := catalog.Load("")
	require.NoError(t, err)

	store := testutil.NewMemStore(cat.Models()...)
	backend := cache.NewMemoryBackend()
	t.Cleanup(func() { _ = backend.Close() })

	svc := query.NewService(query.Options{
		Store:    store,
		Cache:    cache.New(backend, nil),
		Catalog:  cat,
		Schedule: jobs.DefaultSchedule(),
		Clock:    clockwork.NewFakeClockAt(time.Date(2024, 6, 12, 1, 0, 0, 0, time.UTC)),
	})
	runner := &stubRunner{result: &models.SyncResult{ID: uuid.New(), Status: models.SyncSuccess}}

	stats := NewStatsHandler(svc, nil)
	legacy := NewLegacyHandler(svc, stats)
	admin := NewAdminHandler(runner, nil)
	health := NewHealthHandler(store)

	app := fiber.New()
	app.Get("/api/health", health.Check)
	app.Get("/api/v1/dashboard/overview", stats.Dashboard)
	app.Get("/api/v1/meta/last-sync", stats.LastSync)
	app.Get("/api/v1/indicators", stats.Indicators)
	app.Get("/api/v1/indicators/:id", stats.Latest)
	app.Get("/api/v1/indicators/:id/series", stats.Series)
	app.Get("/api/v1/macro/comparison/:indicator", stats.Comparison)
	app.Post("/api/admin/sync", admin.Sync)
	app.Get("/api/stats/students", legacy.Students)
	app.Get("/api/stats/visa", legacy.Visa)
	app.Get("/api/stats/cpi", legacy.CPI)
	app.Get("/api/stats/jobs", legacy.Jobs)

	return &testApp{app: app, store: store, runner: runner}
}

func (a *testApp) do(t *testing.T, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := a.app.Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "connected", body["database"])
	require.NotEmpty(t, body["timestamp"])

	a.store.SetError("Ping", errors.New("connection refused"))
	status, body = a.do(t, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "error: connection refused", body["database"])
}

func TestDashboard_FromCacheMarker(t *testing.T) {
	a := newTestApp(t)
	a.store.Put("cpi_total", models.Observation{Period: "2024-06", Value: 108.2})

	status, body := a.do(t, http.MethodGet, "/api/v1/dashboard/overview")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.NotContains(t, body, "fromCache")

	data := body["data"].(map[string]any)
	require.Contains(t, data, "nextSync")
	cpi := data["indicators"].(map[string]any)["cpi_total"].(map[string]any)
	require.Equal(t, 108.2, cpi["value"])

	_, body = a.do(t, http.MethodGet, "/api/v1/dashboard/overview")
	require.Equal(t, true, body["fromCache"])
}

func TestDashboard_StoreFailure(t *testing.T) {
	a := newTestApp(t)
	a.store.SetError("LatestObservation", errors.New("db down"))

	status, body := a.do(t, http.MethodGet, "/api/v1/dashboard/overview")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, false, body["success"])
	require.NotContains(t, body, "data")
}

func TestLatest_NotFound(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"unknown", "/api/v1/indicators/no_such_indicator", "Indicator not found"},
		{"malformed id", "/api/v1/indicators/DROP%20TABLE", "Indicator not found"},
		{"no data", "/api/v1/indicators/job_ratio", "No data available for indicator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(t, http.MethodGet, tt.path)
			require.Equal(t, http.StatusNotFound, status)
			require.Equal(t, false, body["success"])
			require.Equal(t, tt.want, body["error"])
		})
	}
}

func TestLatest(t *testing.T) {
	a := newTestApp(t)
	a.store.Put("job_ratio", models.Observation{Period: "2024-06", Value: 1.25})

	status, body := a.do(t, http.MethodGet, "/api/v1/indicators/job_ratio")
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	require.Equal(t, "job_ratio", data["indicator"])
	latest := data["latest"].(map[string]any)
	require.Equal(t, "2024-06", latest["period"])
	require.Equal(t, 1.25, latest["value"])
	require.Contains(t, data, "meta")
}

func TestSeries(t *testing.T) {
	a := newTestApp(t)
	for _, p := range []string{"2022", "2019", "2021"} {
		a.store.Put("students_total", models.Observation{Period: p, Value: 1})
	}

	status, body := a.do(t, http.MethodGet, "/api/v1/indicators/students_total/series?limit=3")
	require.Equal(t, http.StatusOK, status)

	points := body["data"].(map[string]any)["series"].([]any)
	var periods []string
	for _, p := range points {
		periods = append(periods, p.(map[string]any)["time_period"].(string))
	}
	require.Equal(t, []string{"2019", "2021", "2022"}, periods)

	status, body = a.do(t, http.MethodGet, "/api/v1/indicators/students_total/series?limit=abc")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, body["success"])
}

func TestComparison(t *testing.T) {
	a := newTestApp(t)
	a.store.Put("wb_gdp_growth_cn", models.Observation{Period: "2021", Value: 8.4})

	status, body := a.do(t, http.MethodGet, "/api/v1/macro/comparison/gdp_growth")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	require.Equal(t, "gdp_growth", data["indicator"])
	require.Len(t, data["china"], 1)
	require.Empty(t, data["japan"])

	status, body = a.do(t, http.MethodGet, "/api/v1/macro/comparison/trade_balance")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, body["success"])
}

func TestAdminSync(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, http.MethodPost, "/api/admin/sync")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	result := body["result"].(map[string]any)
	require.Equal(t, models.TriggerManual, result["trigger"])
	require.Equal(t, models.SyncSuccess, result["status"])

	a.runner.result = nil
	a.runner.err = errors.New("create sync log: db down")
	status, body = a.do(t, http.MethodPost, "/api/admin/sync")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, false, body["success"])
	require.Equal(t, "create sync log: db down", body["error"])
	require.Equal(t, 2, a.runner.calls)
}

func TestLegacy(t *testing.T) {
	a := newTestApp(t)

	status, students := a.do(t, http.MethodGet, "/api/stats/students")
	require.Equal(t, http.StatusOK, status)
	require.NotContains(t, students, "success")
	require.Contains(t, students, "summary")

	_, visa := a.do(t, http.MethodGet, "/api/stats/visa")
	require.Equal(t, students, visa)

	_, cpi := a.do(t, http.MethodGet, "/api/stats/cpi")
	require.Equal(t, 110.0, cpi["summary"].(map[string]any)["current"])

	_, jobs := a.do(t, http.MethodGet, "/api/stats/jobs")
	require.Equal(t, "stable", jobs["summary"].(map[string]any)["trend"])
}
