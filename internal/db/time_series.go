package db

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"trendboard/internal/models"
	"trendboard/internal/validation"
)

const observationColumns = `indicator_id, period, value, yoy_change, mom_change, revision, provenance, fetched_at`

func scanObservation(row pgx.Row) (*models.Observation, error) {
	var o models.Observation
	err := row.Scan(&o.IndicatorID, &o.Period, &o.Value, &o.YoYChange, &o.MoMChange, &o.Revision, &o.Provenance, &o.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrObservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ValidateWrite rejects points the store must never hold: non-canonical
// periods, NaN or infinite values and unknown provenance.
func ValidateWrite(p models.Point, provenance string) error {
	if !validation.IsCanonicalPeriod(p.Period) {
		return &validation.ErrInvalidPeriod{Period: p.Period}
	}
	if !finite(p.Value) {
		return fmt.Errorf("%w: %s value %v", ErrNonFiniteValue, p.Period, p.Value)
	}
	for _, v := range []*float64{p.YoY, p.MoM} {
		if v != nil && !finite(*v) {
			return fmt.Errorf("%w: %s change %v", ErrNonFiniteValue, p.Period, *v)
		}
	}
	if provenance != models.ProvenanceLive && provenance != models.ProvenanceSeed {
		return fmt.Errorf("%w: %q", ErrInvalidProvenance, provenance)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// UpsertObservation reconciles one observation into the store, keyed by
// (indicator, period):
//   - absent: inserted with revision 0, reported as added
//   - present with a different value: value and derived fields overwritten,
//     revision incremented, fetch time refreshed, reported as updated
//   - present with the same value: untouched, reported as neither
//
// The whole decision happens in one statement so concurrent runs converge.
func (d *DB) UpsertObservation(ctx context.Context, indicatorID string, p models.Point, provenance string) (models.UpsertResult, error) {
	if err := ValidateWrite(p, provenance); err != nil {
		return models.UpsertResult{}, err
	}

	query := `
		INSERT INTO time_series (indicator_id, period, value, yoy_change, mom_change, revision, provenance, fetched_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, NOW())
		ON CONFLICT (indicator_id, period) DO UPDATE SET
			value = EXCLUDED.value,
			yoy_change = EXCLUDED.yoy_change,
			mom_change = EXCLUDED.mom_change,
			revision = time_series.revision + 1,
			provenance = EXCLUDED.provenance,
			fetched_at = NOW()
		WHERE time_series.value <> EXCLUDED.value
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := d.Pool.QueryRow(ctx, query, indicatorID, p.Period, p.Value, p.YoY, p.MoM, provenance).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.UpsertResult{}, nil
	}
	if err != nil {
		return models.UpsertResult{}, err
	}
	return models.UpsertResult{Added: inserted, Updated: !inserted}, nil
}

// QueryObservations returns up to limit observations, newest period first.
func (d *DB) QueryObservations(ctx context.Context, indicatorID string, limit int) ([]models.Observation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM time_series
		WHERE indicator_id = $1
		ORDER BY period DESC
		LIMIT $2
	`
	rows, err := d.Pool.Query(ctx, query, indicatorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	observations := []models.Observation{}
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.IndicatorID, &o.Period, &o.Value, &o.YoYChange, &o.MoMChange, &o.Revision, &o.Provenance, &o.FetchedAt); err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// LatestObservation returns the observation with the greatest period.
func (d *DB) LatestObservation(ctx context.Context, indicatorID string) (*models.Observation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM time_series
		WHERE indicator_id = $1
		ORDER BY period DESC
		LIMIT 1
	`
	return scanObservation(d.Pool.QueryRow(ctx, query, indicatorID))
}
