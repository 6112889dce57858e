package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"trendboard/internal/cache"
	"trendboard/internal/catalog"
	"trendboard/internal/db"
	"trendboard/internal/jobs"
	"trendboard/internal/models"
	"trendboard/internal/testutil"
)

func f(v float64) *float64 { return &v }

type fixture struct {
	svc   *Service
	store *testutil.MemStore
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.Load("")
	require.NoError(t, err)

	store := testutil.NewMemStore(cat.Models()...)
	backend := cache.NewMemoryBackend()
	t.Cleanup(func() { _ = backend.Close() })

	// Wednesday 2024-06-12 10:00 Tokyo
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 12, 1, 0, 0, 0, time.UTC))

	svc := NewService(Options{
		Store:    store,
		Cache:    cache.New(backend, nil),
		Catalog:  cat,
		Schedule: jobs.DefaultSchedule(),
		Clock:    clock,
	})
	return &fixture{svc: svc, store: store, clock: clock}
}

func TestDashboard_MissThenHit(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.store.Put("cpi_total", models.Observation{Period: "2024-05", Value: 108.1, YoYChange: f(2.8)})
	fx.store.Put("cpi_total", models.Observation{Period: "2024-06", Value: 108.2, YoYChange: f(2.9), MoMChange: f(0.1)})
	require.NoError(t, fx.store.SetConfigValue(ctx, models.ConfigLastSyncTime, "2024-06-10T07:00:00Z"))

	first, fromCache, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.False(t, fromCache)
	require.Equal(t, 108.2, *first.Indicators["cpi_total"].Value)
	require.Equal(t, "2024-06", first.Indicators["cpi_total"].TimePeriod)
	require.Nil(t, first.Indicators["job_ratio"].Value)
	require.Equal(t, "2024-06-10T07:00:00Z", *first.LastSync)
	require.Len(t, first.Indicators, 4)

	reads := fx.store.ReadCalls()

	second, fromCache, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.True(t, fromCache)
	require.Equal(t, first.Indicators, second.Indicators)
	require.Equal(t, first.LastSync, second.LastSync)
	require.Equal(t, reads, fx.store.ReadCalls())
}

func TestDashboard_NextSyncIsFreshOnHit(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, _, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)

	fx.clock.Advance(7 * 24 * time.Hour)

	second, fromCache, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.True(t, fromCache)
	require.True(t, second.NextSync.Equal(first.NextSync.Add(7*24*time.Hour)), "nextSync = %v", second.NextSync)
}

func TestDashboard_StoreFailure(t *testing.T) {
	fx := newFixture(t)
	fx.store.SetError("LatestObservation", errors.New("connection reset"))

	_, _, err := fx.svc.Dashboard(context.Background())
	require.Error(t, err)

	// failures are not cached
	fx.store.SetError("LatestObservation", nil)
	_, fromCache, err := fx.svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.False(t, fromCache)
}

func TestNextSync(t *testing.T) {
	fx := newFixture(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	require.True(t, fx.svc.NextSync().Equal(time.Date(2024, 6, 17, 16, 0, 0, 0, tokyo)))

	// Monday 2024-06-17 10:00 Tokyo advertises the following Monday
	fx.clock.Advance(5 * 24 * time.Hour)
	require.True(t, fx.svc.NextSync().Equal(time.Date(2024, 6, 24, 16, 0, 0, 0, tokyo)))
}

func TestSeries_Ascending(t *testing.T) {
	fx := newFixture(t)

	for _, p := range []string{"2022", "2019", "2021"} {
		fx.store.Put("population_total", models.Observation{Period: p, Value: 1})
	}

	out, fromCache, err := fx.svc.Series(context.Background(), "population_total", 3)
	require.NoError(t, err)
	require.False(t, fromCache)

	var periods []string
	for _, p := range out.Series {
		periods = append(periods, p.TimePeriod)
	}
	require.Equal(t, []string{"2019", "2021", "2022"}, periods)
}

func TestSeries_LimitKeepsMostRecent(t *testing.T) {
	fx := newFixture(t)

	for _, p := range []string{"2024-01", "2024-02", "2024-03", "2024-04"} {
		fx.store.Put("job_ratio", models.Observation{Period: p, Value: 1.2})
	}

	out, _, err := fx.svc.Series(context.Background(), "job_ratio", 2)
	require.NoError(t, err)
	require.Len(t, out.Series, 2)
	require.Equal(t, "2024-03", out.Series[0].TimePeriod)
	require.Equal(t, "2024-04", out.Series[1].TimePeriod)
}

func TestSeries_UnknownIndicator(t *testing.T) {
	fx := newFixture(t)

	_, _, err := fx.svc.Series(context.Background(), "no_such_indicator", 10)
	require.ErrorIs(t, err, db.ErrIndicatorNotFound)

	_, _, err = fx.svc.Series(context.Background(), "../etc", 10)
	require.ErrorIs(t, err, ErrInvalidIndicator)
}

func TestClampSeriesLimit(t *testing.T) {
	require.Equal(t, DefaultSeriesLimit, ClampSeriesLimit(0))
	require.Equal(t, DefaultSeriesLimit, ClampSeriesLimit(-5))
	require.Equal(t, 12, ClampSeriesLimit(12))
	require.Equal(t, MaxSeriesLimit, ClampSeriesLimit(5000))
}

func TestLatest(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, _, err := fx.svc.Latest(ctx, "no_such_indicator")
	require.ErrorIs(t, err, db.ErrIndicatorNotFound)

	_, _, err = fx.svc.Latest(ctx, "job_ratio")
	require.ErrorIs(t, err, db.ErrObservationNotFound)

	fx.store.Put("job_ratio", models.Observation{Period: "2024-05", Value: 1.24})
	fx.store.Put("job_ratio", models.Observation{Period: "2024-06", Value: 1.25, MoMChange: f(0.81)})

	out, fromCache, err := fx.svc.Latest(ctx, "job_ratio")
	require.NoError(t, err)
	require.False(t, fromCache)
	require.Equal(t, "2024-06", out.Latest.Period)
	require.Equal(t, 1.25, out.Latest.Value)
	require.Equal(t, 0.81, *out.Latest.MoMChange)
	require.NotEmpty(t, out.Meta.NameZh)

	_, fromCache, err = fx.svc.Latest(ctx, "job_ratio")
	require.NoError(t, err)
	require.True(t, fromCache)
}

func TestComparison_Aligned(t *testing.T) {
	fx := newFixture(t)

	fx.store.Put("wb_gdp_growth_cn", models.Observation{Period: "2020", Value: 5})
	fx.store.Put("wb_gdp_growth_cn", models.Observation{Period: "2021", Value: 7})
	fx.store.Put("wb_gdp_growth_jp", models.Observation{Period: "2021", Value: 1})

	out, _, err := fx.svc.Comparison(context.Background(), "gdp_growth")
	require.NoError(t, err)
	require.Equal(t, "gdp_growth", out.Indicator)
	require.Equal(t, "World Bank", out.Source)
	require.Equal(t, []models.YearValue{{Year: 2020, Period: "2020", Value: 5}, {Year: 2021, Period: "2021", Value: 7}}, out.China)
	require.Equal(t, []models.YearValue{{Year: 2021, Period: "2021", Value: 1}}, out.Japan)
	require.Equal(t, []string{"2020", "2021"}, out.Aligned.Periods)
	require.Equal(t, []*float64{f(5), f(7)}, out.Aligned.China)
	require.Equal(t, []*float64{nil, f(1)}, out.Aligned.Japan)
}

func TestComparison_Unknown(t *testing.T) {
	fx := newFixture(t)
	_, _, err := fx.svc.Comparison(context.Background(), "trade_balance")
	require.ErrorIs(t, err, ErrUnknownComparison)
}

func TestIndicators(t *testing.T) {
	fx := newFixture(t)

	list, fromCache, err := fx.svc.Indicators(context.Background())
	require.NoError(t, err)
	require.False(t, fromCache)
	require.NotEmpty(t, list)

	_, fromCache, err = fx.svc.Indicators(context.Background())
	require.NoError(t, err)
	require.True(t, fromCache)
	require.Equal(t, 1, fx.store.CallCount("ListIndicators"))
}

func TestSyncStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	status, _, err := fx.svc.SyncStatus(ctx)
	require.NoError(t, err)
	require.Nil(t, status.LastSyncTime)
	require.Nil(t, status.LastSyncLog)
	require.True(t, status.NextSyncTime.After(fx.clock.Now()))
}

func TestNoCache(t *testing.T) {
	cat, err := catalog.Load("")
	require.NoError(t, err)
	store := testutil.NewMemStore(cat.Models()...)
	svc := NewService(Options{Store: store, Catalog: cat})

	for i := 0; i < 2; i++ {
		_, fromCache, err := svc.Indicators(context.Background())
		require.NoError(t, err)
		require.False(t, fromCache)
	}
	require.Equal(t, 2, store.CallCount("ListIndicators"))
}
