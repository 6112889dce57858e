// Package query answers the read API from the time-series store, with the
// cache layer in front of every read.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"trendboard/internal/cache"
	"trendboard/internal/catalog"
	"trendboard/internal/db"
	"trendboard/internal/jobs"
	"trendboard/internal/models"
	"trendboard/internal/series"
	"trendboard/internal/validation"
)

// Series limits.
const (
	DefaultSeriesLimit = 60
	MaxSeriesLimit     = 1000

	comparisonLimit = 100
)

// Errors returned to handlers. Not-found outcomes wrap the store sentinels.
var (
	ErrUnknownComparison = errors.New("unknown comparison indicator")
	ErrInvalidIndicator  = errors.New("invalid indicator id")
)

// Store is the read side of the time-series store.
type Store interface {
	ListIndicators(ctx context.Context) ([]models.Indicator, error)
	GetIndicator(ctx context.Context, id string) (*models.Indicator, error)
	LatestObservation(ctx context.Context, indicatorID string) (*models.Observation, error)
	QueryObservations(ctx context.Context, indicatorID string, limit int) ([]models.Observation, error)
	GetConfigValue(ctx context.Context, key string) (string, error)
	GetLatestSyncLog(ctx context.Context) (*models.SyncLog, error)
}

// Service composes store and cache reads.
type Service struct {
	store    Store
	cache    *cache.Cache
	catalog  *catalog.Catalog
	schedule jobs.Schedule
	clock    clockwork.Clock
	log      *slog.Logger
}

// Options configures a Service. Cache may be nil.
type Options struct {
	Store    Store
	Cache    *cache.Cache
	Catalog  *catalog.Catalog
	Schedule jobs.Schedule
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// NewService creates a query service.
func NewService(opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	schedule := opts.Schedule
	if schedule.Location == nil {
		schedule = jobs.DefaultSchedule()
	}
	return &Service{
		store:    opts.Store,
		cache:    opts.Cache,
		catalog:  opts.Catalog,
		schedule: schedule,
		clock:    clock,
		log:      log.With("component", "query"),
	}
}

// NextSync returns the next scheduled sync instant.
func (s *Service) NextSync() time.Time {
	return s.schedule.Upcoming(s.clock.Now())
}

// dashboardBody is the cached part of the overview; nextSync is always fresh.
type dashboardBody struct {
	Indicators map[string]models.HeadlineValue `json:"indicators"`
	LastSync   *string                         `json:"lastSync"`
}

// Dashboard returns the headline snapshot.
func (s *Service) Dashboard(ctx context.Context) (*models.DashboardOverview, bool, error) {
	body, fromCache, err := cache.ReadThrough(ctx, s.cache, cache.KeyDashboard, cache.TTLDashboard, func(ctx context.Context) (dashboardBody, error) {
		out := dashboardBody{Indicators: make(map[string]models.HeadlineValue)}
		for _, id := range s.catalog.Headline {
			obs, err := s.store.LatestObservation(ctx, id)
			if errors.Is(err, db.ErrObservationNotFound) {
				out.Indicators[id] = models.HeadlineValue{}
				continue
			}
			if err != nil {
				return out, fmt.Errorf("latest %s: %w", id, err)
			}
			value := obs.Value
			out.Indicators[id] = models.HeadlineValue{
				Value:      &value,
				YoYChange:  obs.YoYChange,
				MoMChange:  obs.MoMChange,
				TimePeriod: obs.Period,
			}
		}
		lastSync, err := s.lastSyncTime(ctx)
		if err != nil {
			return out, err
		}
		out.LastSync = lastSync
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}

	return &models.DashboardOverview{
		Indicators: body.Indicators,
		LastSync:   body.LastSync,
		NextSync:   s.NextSync(),
	}, fromCache, nil
}

// syncStatusBody is the cached part of the sync status.
type syncStatusBody struct {
	LastSyncTime *string         `json:"lastSyncTime"`
	LastSyncLog  *models.SyncLog `json:"lastSyncLog"`
}

// SyncStatus returns the last run and the next scheduled one.
func (s *Service) SyncStatus(ctx context.Context) (*models.SyncStatus, bool, error) {
	body, fromCache, err := cache.ReadThrough(ctx, s.cache, cache.KeySyncStatus, cache.TTLSyncStatus, func(ctx context.Context) (syncStatusBody, error) {
		var out syncStatusBody
		lastSync, err := s.lastSyncTime(ctx)
		if err != nil {
			return out, err
		}
		out.LastSyncTime = lastSync

		log, err := s.store.GetLatestSyncLog(ctx)
		if err != nil && !errors.Is(err, db.ErrSyncLogNotFound) {
			return out, fmt.Errorf("latest sync log: %w", err)
		}
		out.LastSyncLog = log
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}

	return &models.SyncStatus{
		LastSyncTime: body.LastSyncTime,
		NextSyncTime: s.NextSync(),
		LastSyncLog:  body.LastSyncLog,
	}, fromCache, nil
}

func (s *Service) lastSyncTime(ctx context.Context) (*string, error) {
	v, err := s.store.GetConfigValue(ctx, models.ConfigLastSyncTime)
	if errors.Is(err, db.ErrConfigNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last sync time: %w", err)
	}
	return &v, nil
}

// Indicators returns the indicator catalog.
func (s *Service) Indicators(ctx context.Context) ([]models.Indicator, bool, error) {
	return cache.ReadThrough(ctx, s.cache, cache.KeyIndicators, cache.TTLCatalog, func(ctx context.Context) ([]models.Indicator, error) {
		return s.store.ListIndicators(ctx)
	})
}

// Latest returns the newest observation of an indicator. Unknown indicators
// yield db.ErrIndicatorNotFound; known ones without data db.ErrObservationNotFound.
func (s *Service) Latest(ctx context.Context, id string) (*models.IndicatorLatest, bool, error) {
	if !validation.ValidateIndicatorID(id) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidIndicator, id)
	}
	ttl := cache.TTLForFrequency(s.catalog.Frequency(id))

	out, fromCache, err := cache.ReadThrough(ctx, s.cache, cache.LatestKey(id), ttl, func(ctx context.Context) (models.IndicatorLatest, error) {
		ind, err := s.store.GetIndicator(ctx, id)
		if err != nil {
			return models.IndicatorLatest{}, err
		}
		obs, err := s.store.LatestObservation(ctx, id)
		if err != nil {
			return models.IndicatorLatest{}, err
		}
		return models.IndicatorLatest{
			Indicator: id,
			Latest: models.LatestValue{
				Period:    obs.Period,
				Value:     obs.Value,
				YoYChange: obs.YoYChange,
				MoMChange: obs.MoMChange,
			},
			Meta: models.IndicatorMeta{
				NameZh: ind.NameZh,
				NameJa: ind.NameJa,
				Unit:   ind.Unit,
				Source: ind.Source,
			},
		}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, fromCache, nil
}

// ClampSeriesLimit applies the default and maximum to a requested limit.
func ClampSeriesLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSeriesLimit
	case limit > MaxSeriesLimit:
		return MaxSeriesLimit
	}
	return limit
}

// Series returns the most recent limit observations in ascending period order.
func (s *Service) Series(ctx context.Context, id string, limit int) (*models.IndicatorSeries, bool, error) {
	if !validation.ValidateIndicatorID(id) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidIndicator, id)
	}
	limit = ClampSeriesLimit(limit)
	ttl := cache.TTLForFrequency(s.catalog.Frequency(id))

	out, fromCache, err := cache.ReadThrough(ctx, s.cache, cache.SeriesKey(id, limit), ttl, func(ctx context.Context) (models.IndicatorSeries, error) {
		if _, err := s.store.GetIndicator(ctx, id); err != nil {
			return models.IndicatorSeries{}, err
		}
		rows, err := s.store.QueryObservations(ctx, id, limit)
		if err != nil {
			return models.IndicatorSeries{}, err
		}

		points := make([]models.SeriesPoint, len(rows))
		for i, row := range rows {
			points[len(rows)-1-i] = models.SeriesPoint{
				TimePeriod: row.Period,
				Value:      row.Value,
				YoYChange:  row.YoYChange,
				MoMChange:  row.MoMChange,
			}
		}
		return models.IndicatorSeries{Indicator: id, Series: points}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, fromCache, nil
}

// Comparison aligns the China and Japan series of a macro indicator.
func (s *Service) Comparison(ctx context.Context, key string) (*models.Comparison, bool, error) {
	cfg := s.catalog.GetComparison(key)
	if cfg == nil {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownComparison, key)
	}

	out, fromCache, err := cache.ReadThrough(ctx, s.cache, cache.ComparisonKey(key), cache.TTLComparison, func(ctx context.Context) (models.Comparison, error) {
		var china, japan []models.YearValue

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			china, err = s.yearValues(gctx, cfg.China)
			return err
		})
		g.Go(func() error {
			var err error
			japan, err = s.yearValues(gctx, cfg.Japan)
			return err
		})
		if err := g.Wait(); err != nil {
			return models.Comparison{}, err
		}

		return models.Comparison{
			Indicator: cfg.Key,
			Label:     cfg.Label,
			Source:    cfg.Source,
			China:     china,
			Japan:     japan,
			Aligned:   series.Align(china, japan),
		}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, fromCache, nil
}

// yearValues reads an indicator's observations ascending by period.
func (s *Service) yearValues(ctx context.Context, indicatorID string) ([]models.YearValue, error) {
	rows, err := s.store.QueryObservations(ctx, indicatorID, comparisonLimit)
	if err != nil {
		return nil, fmt.Errorf("observations %s: %w", indicatorID, err)
	}
	out := make([]models.YearValue, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		year, err := validation.PeriodYearOf(rows[i].Period)
		if err != nil {
			return nil, err
		}
		out = append(out, models.YearValue{Year: year, Period: rows[i].Period, Value: rows[i].Value})
	}
	return out, nil
}
