package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"trendboard/internal/cache"
	"trendboard/internal/catalog"
	"trendboard/internal/metrics"
	"trendboard/internal/models"
	"trendboard/internal/series"
)

// ErrNoSource is recorded for an indicator with a live source configured but
// neither live data nor seed data available.
var ErrNoSource = errors.New("no live data and no seed data")

// Store is the write side of the time-series store used by a sync run.
type Store interface {
	ListIndicators(ctx context.Context) ([]models.Indicator, error)
	UpsertObservation(ctx context.Context, indicatorID string, p models.Point, provenance string) (models.UpsertResult, error)
	CreateSyncLog(ctx context.Context, log *models.SyncLog) error
	FinishSyncLog(ctx context.Context, log *models.SyncLog) error
	SetConfigValue(ctx context.Context, key, value string) error
}

// Fetcher fetches live series. *sources.Registry implements it.
type Fetcher interface {
	Available(kind string) bool
	Fetch(ctx context.Context, spec models.SourceSpec) ([]models.Point, error)
}

// Orchestrator runs sync jobs: every registered indicator is fetched from its
// live source (or seed data), reconciled into the store, and the run logged.
// Scheduled and manual runs share the same path.
type Orchestrator struct {
	store   Store
	fetcher Fetcher
	catalog *catalog.Catalog
	cache   *cache.Cache
	clock   clockwork.Clock
	log     *slog.Logger
}

// OrchestratorOptions configures an Orchestrator. Cache may be nil.
type OrchestratorOptions struct {
	Store   Store
	Fetcher Fetcher
	Catalog *catalog.Catalog
	Cache   *cache.Cache
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:   opts.Store,
		fetcher: opts.Fetcher,
		catalog: opts.Catalog,
		cache:   opts.Cache,
		clock:   clock,
		log:     log.With("component", "sync"),
	}
}

// Run executes one sync run. A non-nil error means the run aborted fatally;
// the returned result then carries status failed when a log was created.
// Per-indicator failures are not errors: they yield a partial or failed status.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*models.SyncResult, error) {
	start := o.clock.Now()
	o.log.Info("sync started", "trigger", trigger)

	runLog := &models.SyncLog{Trigger: trigger}
	if err := o.store.CreateSyncLog(ctx, runLog); err != nil {
		metrics.RecordSyncRun(trigger, models.SyncFailed, o.clock.Since(start))
		o.log.Error("sync aborted: cannot create run log", "error", err)
		return nil, fmt.Errorf("create sync log: %w", err)
	}

	status := newRunStatus()
	errs := &multierror.Error{ErrorFormat: joinErrors}

	indicators, err := o.store.ListIndicators(ctx)
	if err != nil {
		return o.abort(ctx, runLog, status, start, fmt.Errorf("load indicators: %w", err))
	}

	var succeeded, failed int
	var changed []string
	for _, ind := range indicators {
		entry := o.syncIndicator(ctx, ind)
		runLog.Indicators = append(runLog.Indicators, entry.IndicatorSyncEntry)
		metrics.RecordIndicatorOutcome(entry.Provenance, entry.Status)

		// partial writes before a failure still count and still stale the cache
		wrote := entry.RecordsAdded+entry.RecordsUpdated > 0
		runLog.RecordsAdded += entry.RecordsAdded
		runLog.RecordsUpdated += entry.RecordsUpdated
		if wrote {
			changed = append(changed, ind.ID)
		}

		switch entry.Status {
		case models.IndicatorOK:
			succeeded++
			if wrote {
				runLog.IndicatorsUpdated++
			}
		case models.IndicatorFailed:
			failed++
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", ind.ID, entry.err))
		}
	}

	now := o.clock.Now()
	if err := o.store.SetConfigValue(ctx, models.ConfigLastSyncTime, now.UTC().Format(time.RFC3339)); err != nil {
		return o.abort(ctx, runLog, status, start, fmt.Errorf("persist last sync time: %w", err))
	}

	o.cache.Delete(cache.SyncInvalidations(changed)...)

	if err := status.finish(succeeded, failed); err != nil {
		return o.abort(ctx, runLog, status, start, err)
	}
	if msg := errs.ErrorOrNil(); msg != nil {
		text := msg.Error()
		runLog.ErrorMessage = &text
	}
	if err := o.finalize(ctx, runLog, status, now); err != nil {
		metrics.RecordSyncRun(trigger, models.SyncFailed, o.clock.Since(start))
		o.log.Error("sync aborted: cannot finalize run log", "error", err)
		return o.result(runLog, start), fmt.Errorf("finish sync log: %w", err)
	}

	duration := o.clock.Since(start)
	metrics.RecordSyncRun(trigger, runLog.Status, duration)
	o.log.Info("sync completed",
		"trigger", trigger,
		"status", runLog.Status,
		"indicators_updated", runLog.IndicatorsUpdated,
		"records_added", runLog.RecordsAdded,
		"records_updated", runLog.RecordsUpdated,
		"duration", duration,
	)
	return o.result(runLog, start), nil
}

// abort finalizes the run as failed after a fatal error.
func (o *Orchestrator) abort(ctx context.Context, runLog *models.SyncLog, status *runStatus, start time.Time, cause error) (*models.SyncResult, error) {
	o.log.Error("sync aborted", "trigger", runLog.Trigger, "error", cause)

	msg := cause.Error()
	runLog.ErrorMessage = &msg
	if err := status.abort(); err != nil {
		o.log.Error("sync status transition failed", "error", err)
	}
	if err := o.finalize(ctx, runLog, status, o.clock.Now()); err != nil {
		o.log.Error("failed to finalize aborted sync log", "error", err)
	}

	metrics.RecordSyncRun(runLog.Trigger, models.SyncFailed, o.clock.Since(start))
	result := o.result(runLog, start)
	result.Status = models.SyncFailed
	return result, cause
}

func (o *Orchestrator) finalize(ctx context.Context, runLog *models.SyncLog, status *runStatus, at time.Time) error {
	runLog.Status = status.state()
	runLog.CompletedAt = &at
	// the run log must be written even when the run's context is done
	return o.store.FinishSyncLog(context.WithoutCancel(ctx), runLog)
}

func (o *Orchestrator) result(runLog *models.SyncLog, start time.Time) *models.SyncResult {
	res := &models.SyncResult{
		ID:                runLog.ID,
		Trigger:           runLog.Trigger,
		Status:            runLog.Status,
		IndicatorsUpdated: runLog.IndicatorsUpdated,
		RecordsAdded:      runLog.RecordsAdded,
		RecordsUpdated:    runLog.RecordsUpdated,
		DurationMs:        o.clock.Since(start).Milliseconds(),
		Indicators:        runLog.Indicators,
	}
	if runLog.ErrorMessage != nil {
		res.Error = *runLog.ErrorMessage
	}
	return res
}

// indicatorOutcome is an IndicatorSyncEntry plus the failure cause.
type indicatorOutcome struct {
	models.IndicatorSyncEntry
	err error
}

// syncIndicator reconciles one indicator. It never returns an error: failures
// are captured in the outcome so the run continues.
func (o *Orchestrator) syncIndicator(ctx context.Context, ind models.Indicator) indicatorOutcome {
	out := indicatorOutcome{IndicatorSyncEntry: models.IndicatorSyncEntry{
		IndicatorID: ind.ID,
		Provenance:  models.ProvenanceNone,
	}}
	log := o.log.With("indicator", ind.ID)

	cfg := o.catalog.GetIndicator(ind.ID)
	if cfg == nil {
		out.Status = models.IndicatorSkipped
		log.Debug("indicator not in catalog, skipping")
		return out
	}

	points, provenance, fetchErr := o.collect(ctx, cfg, log)
	if len(points) == 0 {
		if cfg.Fetch == nil && fetchErr == nil {
			out.Status = models.IndicatorSkipped
			return out
		}
		if fetchErr == nil {
			fetchErr = ErrNoSource
		}
		return o.fail(out, fetchErr, log)
	}
	out.Provenance = provenance

	for _, p := range series.Derive(points) {
		res, err := o.store.UpsertObservation(ctx, ind.ID, p, provenance)
		if err != nil {
			return o.fail(out, fmt.Errorf("upsert %s: %w", p.Period, err), log)
		}
		if res.Added {
			out.RecordsAdded++
		}
		if res.Updated {
			out.RecordsUpdated++
		}
	}

	out.Status = models.IndicatorOK
	if fetchErr != nil {
		msg := "live fetch failed, seed data used: " + fetchErr.Error()
		out.ErrorMessage = &msg
	}
	log.Debug("indicator synced", "provenance", provenance, "added", out.RecordsAdded, "updated", out.RecordsUpdated)
	return out
}

// collect returns live points when a configured source answers, otherwise the
// seed set. fetchErr is the live failure, if any, even when seed data is used.
func (o *Orchestrator) collect(ctx context.Context, cfg *catalog.IndicatorConfig, log *slog.Logger) (points []models.Point, provenance string, fetchErr error) {
	if cfg.Fetch != nil {
		if o.fetcher != nil && o.fetcher.Available(cfg.Fetch.Kind) {
			live, err := o.fetcher.Fetch(ctx, *cfg.Fetch)
			if err == nil && len(live) > 0 {
				return live, models.ProvenanceLive, nil
			}
			if err == nil {
				err = fmt.Errorf("%s returned no observations", cfg.Fetch.Kind)
			}
			fetchErr = err
			log.Warn("live fetch failed, falling back to seed data", "source", cfg.Fetch.Kind, "error", err)
		} else {
			log.Debug("live source unavailable, using seed data", "source", cfg.Fetch.Kind)
		}
	}
	return o.catalog.Seed(cfg.ID), models.ProvenanceSeed, fetchErr
}

func (o *Orchestrator) fail(out indicatorOutcome, err error, log *slog.Logger) indicatorOutcome {
	msg := err.Error()
	out.Status = models.IndicatorFailed
	out.ErrorMessage = &msg
	out.err = err
	log.Warn("indicator sync failed", "error", err)
	return out
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
