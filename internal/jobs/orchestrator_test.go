package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"trendboard/internal/cache"
	"trendboard/internal/catalog"
	"trendboard/internal/models"
	"trendboard/internal/sources"
	"trendboard/internal/testutil"
)

const testCatalog = `
headline: [gdp_cn]
indicators:
  - id: gdp_cn
    name_zh: 中国GDP增长率
    name_ja: 中国GDP成長率
    unit: "%"
    source: World Bank
    category: macro
    frequency: annual
    fetch: {kind: worldbank, country: CN, code: GDP}
  - id: cpi_cn
    name_zh: 中国通胀率
    name_ja: 中国インフレ率
    unit: "%"
    source: World Bank
    category: macro
    frequency: annual
    fetch: {kind: worldbank, country: CN, code: CPI}
  - id: unemp_cn
    name_zh: 中国失业率
    name_ja: 中国失業率
    unit: "%"
    source: World Bank
    category: macro
    frequency: annual
    fetch: {kind: worldbank, country: CN, code: UNEMP}
`

const seededCatalog = `
indicators:
  - id: job_ratio
    name_zh: 有效求人倍率
    name_ja: 有効求人倍率
    unit: 倍
    source: e-Stat
    category: jobs
    frequency: monthly
    fetch: {kind: worldbank, country: JP, code: JOBS}
    seed:
      - {period: "2024-05", value: 1.24}
      - {period: "2024-06", value: 1.25}
  - id: notes_only
    name_zh: 无数据
    name_ja: データなし
    unit: ""
    source: none
    category: zz
    frequency: annual
`

type fakeFetcher struct {
	mu          sync.Mutex
	series      map[string][]models.Point
	errs        map[string]error
	unavailable bool
	calls       map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		series: make(map[string][]models.Point),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) Available(kind string) bool { return !f.unavailable }

func (f *fakeFetcher) Fetch(ctx context.Context, spec models.SourceSpec) ([]models.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[spec.Code]++
	if err := f.errs[spec.Code]; err != nil {
		return nil, err
	}
	return append([]models.Point(nil), f.series[spec.Code]...), nil
}

type harness struct {
	orch    *Orchestrator
	store   *testutil.MemStore
	fetcher *fakeFetcher
	cache   *cache.Cache
}

func newHarness(t *testing.T, doc string) *harness {
	t.Helper()

	cat, err := catalog.Parse([]byte(doc))
	require.NoError(t, err)

	store := testutil.NewMemStore(cat.Models()...)
	fetcher := newFakeFetcher()
	backend := cache.NewMemoryBackend()
	t.Cleanup(func() { _ = backend.Close() })
	c := cache.New(backend, nil)

	orch := NewOrchestrator(OrchestratorOptions{
		Store:   store,
		Fetcher: fetcher,
		Catalog: cat,
		Cache:   c,
		Clock:   clockwork.NewFakeClockAt(time.Date(2024, 6, 17, 7, 0, 0, 0, time.UTC)),
	})
	return &harness{orch: orch, store: store, fetcher: fetcher, cache: c}
}

func (h *harness) setSeries(code string, values ...float64) {
	points := make([]models.Point, len(values))
	for i, v := range values {
		points[i] = models.Point{Period: fmt.Sprintf("%d", 2020+i), Value: v}
	}
	h.fetcher.series[code] = points
}

func TestRun_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		failing     []string
		wantStatus  string
		wantUpdated int
		wantErrMsg  bool
	}{
		{"all succeed", nil, models.SyncSuccess, 3, false},
		{"one fails", []string{"UNEMP"}, models.SyncPartial, 2, true},
		{"all fail", []string{"GDP", "CPI", "UNEMP"}, models.SyncFailed, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testCatalog)
			h.setSeries("GDP", 2.2, 8.4, 3.0)
			h.setSeries("CPI", 2.5, 0.9, 2.0)
			h.setSeries("UNEMP", 5.0, 4.6, 5.0)
			for _, code := range tt.failing {
				h.fetcher.errs[code] = &sources.HTTPError{Source: "worldbank", StatusCode: 503}
			}

			result, err := h.orch.Run(context.Background(), models.TriggerManual)
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, result.Status)
			require.Equal(t, tt.wantUpdated, result.IndicatorsUpdated)
			require.Equal(t, tt.wantErrMsg, result.Error != "")

			logs := h.store.Logs()
			require.Len(t, logs, 1)
			require.Equal(t, tt.wantStatus, logs[0].Status)
			require.Equal(t, models.TriggerManual, logs[0].Trigger)
			require.NotNil(t, logs[0].CompletedAt)
			require.Len(t, logs[0].Indicators, 3)

			// last_sync_time is persisted whenever the run did not abort
			_, err = h.store.GetConfigValue(context.Background(), models.ConfigLastSyncTime)
			require.NoError(t, err)
		})
	}
}

func TestRun_RecordsCounts(t *testing.T) {
	h := newHarness(t, testCatalog)
	h.setSeries("GDP", 2.2, 8.4, 3.0)
	h.setSeries("CPI", 2.5, 0.9)
	h.setSeries("UNEMP", 5.0)

	result, err := h.orch.Run(context.Background(), models.TriggerScheduled)
	require.NoError(t, err)
	require.Equal(t, 6, result.RecordsAdded)
	require.Equal(t, 0, result.RecordsUpdated)
	require.Equal(t, 3, h.store.RowCount("gdp_cn"))

	row, ok := h.store.Row("gdp_cn", "2021")
	require.True(t, ok)
	require.Equal(t, models.ProvenanceLive, row.Provenance)
	require.NotNil(t, row.YoYChange)
	require.Equal(t, 281.82, *row.YoYChange)

	// unchanged data is a no-op
	result, err = h.orch.Run(context.Background(), models.TriggerScheduled)
	require.NoError(t, err)
	require.Equal(t, models.SyncSuccess, result.Status)
	require.Equal(t, 0, result.RecordsAdded)
	require.Equal(t, 0, result.RecordsUpdated)
	require.Equal(t, 0, result.IndicatorsUpdated)

	// a revised value is an update with a revision
	h.setSeries("UNEMP", 5.2)
	result, err = h.orch.Run(context.Background(), models.TriggerScheduled)
	require.NoError(t, err)
	require.Equal(t, 1, result.RecordsUpdated)
	require.Equal(t, 1, result.IndicatorsUpdated)

	row, _ = h.store.Row("unemp_cn", "2020")
	require.Equal(t, 5.2, row.Value)
	require.Equal(t, 1, row.Revision)
}

func TestRun_FallsBackToSeed(t *testing.T) {
	h := newHarness(t, seededCatalog)
	h.fetcher.errs["JOBS"] = errors.New("connection refused")

	result, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, models.SyncSuccess, result.Status)
	require.Equal(t, 2, result.RecordsAdded)

	entries := map[string]models.IndicatorSyncEntry{}
	for _, e := range result.Indicators {
		entries[e.IndicatorID] = e
	}
	require.Equal(t, models.ProvenanceSeed, entries["job_ratio"].Provenance)
	require.Equal(t, models.IndicatorOK, entries["job_ratio"].Status)
	require.NotNil(t, entries["job_ratio"].ErrorMessage)
	require.Contains(t, *entries["job_ratio"].ErrorMessage, "connection refused")
	require.Equal(t, models.IndicatorSkipped, entries["notes_only"].Status)
	require.Equal(t, models.ProvenanceNone, entries["notes_only"].Provenance)
	require.Empty(t, result.Error)

	logs := h.store.Logs()
	require.Len(t, logs, 1)
	require.Nil(t, logs[0].ErrorMessage)
	var persisted *models.IndicatorSyncEntry
	for i := range logs[0].Indicators {
		if logs[0].Indicators[i].IndicatorID == "job_ratio" {
			persisted = &logs[0].Indicators[i]
		}
	}
	require.NotNil(t, persisted)
	require.NotNil(t, persisted.ErrorMessage)
	require.Contains(t, *persisted.ErrorMessage, "connection refused")

	row, ok := h.store.Row("job_ratio", "2024-06")
	require.True(t, ok)
	require.Equal(t, models.ProvenanceSeed, row.Provenance)
	require.NotNil(t, row.MoMChange)
	require.Equal(t, 0.81, *row.MoMChange)
}

func TestRun_UnavailableSourceUsesSeed(t *testing.T) {
	h := newHarness(t, seededCatalog)
	h.fetcher.unavailable = true

	result, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, models.SyncSuccess, result.Status)
	require.Zero(t, h.fetcher.calls["JOBS"])
	require.Equal(t, 2, h.store.RowCount("job_ratio"))
	for _, e := range result.Indicators {
		require.Nil(t, e.ErrorMessage, e.IndicatorID)
	}
}

func TestRun_LiveReplacesSeedProvenance(t *testing.T) {
	h := newHarness(t, seededCatalog)
	h.fetcher.unavailable = true
	_, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	h.fetcher.unavailable = false
	h.fetcher.series["JOBS"] = []models.Point{{Period: "2024-06", Value: 1.26}}
	result, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 1, result.RecordsUpdated)

	row, _ := h.store.Row("job_ratio", "2024-06")
	require.Equal(t, models.ProvenanceLive, row.Provenance)
	require.Equal(t, 1, row.Revision)
}

func TestRun_UpsertFailureIsIsolated(t *testing.T) {
	h := newHarness(t, testCatalog)
	h.setSeries("GDP", 2.2)
	h.setSeries("CPI", 2.5)
	h.setSeries("UNEMP", 5.0)
	h.store.UpsertErrors["cpi_cn"] = errors.New("deadlock detected")

	result, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, models.SyncPartial, result.Status)
	require.Equal(t, 2, result.IndicatorsUpdated)
	require.Contains(t, result.Error, "cpi_cn")
	require.Contains(t, result.Error, "deadlock detected")
}

func TestRun_FatalStoreError(t *testing.T) {
	h := newHarness(t, testCatalog)
	h.store.SetError("ListIndicators", errors.New("connection reset"))

	result, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.Error(t, err)
	require.Equal(t, models.SyncFailed, result.Status)

	logs := h.store.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, models.SyncFailed, logs[0].Status)
	require.NotNil(t, logs[0].ErrorMessage)

	_, err = h.store.GetConfigValue(context.Background(), models.ConfigLastSyncTime)
	require.Error(t, err)
}

func TestRun_CreateLogFailure(t *testing.T) {
	h := newHarness(t, testCatalog)
	h.store.SetError("CreateSyncLog", errors.New("read-only transaction"))

	result, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.Error(t, err)
	require.Nil(t, result)
	require.Zero(t, h.store.CallCount("UpsertObservation"))
}

func TestRun_InvalidatesCache(t *testing.T) {
	h := newHarness(t, testCatalog)
	h.setSeries("GDP", 2.2)

	h.cache.Put(cache.KeyDashboard, "stale", time.Hour)
	h.cache.Put(cache.KeyIndicators, "stale", time.Hour)
	h.cache.Put(cache.LatestKey("gdp_cn"), "stale", time.Hour)

	_, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	var s string
	require.False(t, h.cache.Get(cache.KeyDashboard, &s))
	require.False(t, h.cache.Get(cache.KeyIndicators, &s))
	require.False(t, h.cache.Get(cache.LatestKey("gdp_cn"), &s))
}

func TestRun_PartialWritesInvalidateLatest(t *testing.T) {
	h := newHarness(t, testCatalog)
	h.fetcher.series["GDP"] = []models.Point{
		{Period: "2020", Value: 2.2},
		{Period: "2021", Value: math.NaN()},
	}
	h.setSeries("CPI", 2.5)
	h.setSeries("UNEMP", 5.0)
	h.cache.Put(cache.LatestKey("gdp_cn"), "stale", time.Hour)

	result, err := h.orch.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, models.SyncPartial, result.Status)
	require.Equal(t, 2, result.IndicatorsUpdated)
	require.Equal(t, 3, result.RecordsAdded)

	var gdp models.IndicatorSyncEntry
	for _, e := range result.Indicators {
		if e.IndicatorID == "gdp_cn" {
			gdp = e
		}
	}
	require.Equal(t, models.IndicatorFailed, gdp.Status)
	require.Equal(t, 1, gdp.RecordsAdded)
	require.Contains(t, result.Error, "not a finite number")

	require.Equal(t, 1, h.store.RowCount("gdp_cn"))
	var s string
	require.False(t, h.cache.Get(cache.LatestKey("gdp_cn"), &s))
}

func TestRun_ConcurrentRunsConverge(t *testing.T) {
	h := newHarness(t, testCatalog)
	h.setSeries("GDP", 2.2, 8.4, 3.0)
	h.setSeries("CPI", 2.5, 0.9, 2.0)
	h.setSeries("UNEMP", 5.0, 4.6, 5.0)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.orch.Run(context.Background(), models.TriggerManual)
		}()
	}
	wg.Wait()

	require.Equal(t, 3, h.store.RowCount("gdp_cn"))
	row, _ := h.store.Row("gdp_cn", "2022")
	require.Equal(t, 3.0, row.Value)
	require.Equal(t, 0, row.Revision)
}

func TestRun_SourceRetryExhaustedFallsBackToSeed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cat, err := catalog.Parse([]byte(seededCatalog))
	require.NoError(t, err)
	store := testutil.NewMemStore(cat.Models()...)

	registry := sources.NewRegistry(sources.NewWorldBank(sources.WorldBankOptions{
		BaseURL: srv.URL,
		Retry: sources.RetryPolicy{
			MaxAttempts: 3,
			Timeout:     time.Second,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		},
	}))

	orch := NewOrchestrator(OrchestratorOptions{Store: store, Fetcher: registry, Catalog: cat})
	result, err := orch.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, models.SyncSuccess, result.Status)
	require.Equal(t, int32(3), calls.Load())

	row, ok := store.Row("job_ratio", "2024-05")
	require.True(t, ok)
	require.Equal(t, models.ProvenanceSeed, row.Provenance)
}
