package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trendboard/internal/models"
)

const indicatorColumns = `id, name_zh, name_ja, unit, source, category, frequency`

func scanIndicator(row pgx.Row) (*models.Indicator, error) {
	var ind models.Indicator
	err := row.Scan(&ind.ID, &ind.NameZh, &ind.NameJa, &ind.Unit, &ind.Source, &ind.Category, &ind.Frequency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIndicatorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ind, nil
}

// SyncIndicators writes the catalog's reference data into the indicators
// table. Existing rows get their display metadata refreshed.
func (d *DB) SyncIndicators(ctx context.Context, indicators []models.Indicator) error {
	query := `
		INSERT INTO indicators (id, name_zh, name_ja, unit, source, category, frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name_zh = EXCLUDED.name_zh,
			name_ja = EXCLUDED.name_ja,
			unit = EXCLUDED.unit,
			source = EXCLUDED.source,
			category = EXCLUDED.category,
			frequency = EXCLUDED.frequency,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, ind := range indicators {
		batch.Queue(query, ind.ID, ind.NameZh, ind.NameJa, ind.Unit, ind.Source, ind.Category, ind.Frequency)
	}

	results := d.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, ind := range indicators {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to sync indicator %s: %w", ind.ID, err)
		}
	}
	return nil
}

// ListIndicators returns all indicators ordered by category, then id.
func (d *DB) ListIndicators(ctx context.Context) ([]models.Indicator, error) {
	rows, err := d.Pool.Query(ctx, `SELECT `+indicatorColumns+` FROM indicators ORDER BY category, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indicators := []models.Indicator{}
	for rows.Next() {
		var ind models.Indicator
		if err := rows.Scan(&ind.ID, &ind.NameZh, &ind.NameJa, &ind.Unit, &ind.Source, &ind.Category, &ind.Frequency); err != nil {
			return nil, err
		}
		indicators = append(indicators, ind)
	}
	return indicators, rows.Err()
}

// GetIndicator retrieves an indicator by id.
func (d *DB) GetIndicator(ctx context.Context, id string) (*models.Indicator, error) {
	return scanIndicator(d.Pool.QueryRow(ctx, `SELECT `+indicatorColumns+` FROM indicators WHERE id = $1`, id))
}
