package db

import (
	"context"

	"trendboard/internal/models"
)

// GetObservationStats returns per-indicator row and revision totals for metrics export.
func (d *DB) GetObservationStats(ctx context.Context) ([]models.ObservationStat, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT indicator_id, provenance, COUNT(*), COALESCE(SUM(revision), 0)
		FROM time_series
		GROUP BY indicator_id, provenance
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.ObservationStat
	for rows.Next() {
		var s models.ObservationStat
		if err := rows.Scan(&s.IndicatorID, &s.Provenance, &s.Count, &s.Revisions); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
