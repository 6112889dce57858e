package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"trendboard/internal/models"
)

const syncLogColumns = `id, trigger, status, started_at, completed_at, indicators_updated,
	records_added, records_updated, error_message`

// CreateSyncLog inserts a run in the running state and fills in its id and start time.
func (d *DB) CreateSyncLog(ctx context.Context, log *models.SyncLog) error {
	query := `
		INSERT INTO sync_logs (trigger, status)
		VALUES ($1, $2)
		RETURNING id, started_at
	`
	log.Status = models.SyncRunning
	return d.Pool.QueryRow(ctx, query, log.Trigger, log.Status).Scan(&log.ID, &log.StartedAt)
}

// FinishSyncLog finalizes a run together with its per-indicator entries.
// Only a running log can be finalized, so a run is closed exactly once.
func (d *DB) FinishSyncLog(ctx context.Context, log *models.SyncLog) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE sync_logs
		SET status = $1, completed_at = $2, indicators_updated = $3,
			records_added = $4, records_updated = $5, error_message = $6
		WHERE id = $7 AND status = $8
	`,
		log.Status,
		log.CompletedAt,
		log.IndicatorsUpdated,
		log.RecordsAdded,
		log.RecordsUpdated,
		log.ErrorMessage,
		log.ID,
		models.SyncRunning,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSyncLogNotFound
	}

	batch := &pgx.Batch{}
	for _, e := range log.Indicators {
		batch.Queue(`
			INSERT INTO sync_log_indicators (sync_log_id, indicator_id, provenance, status, records_added, records_updated, error_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, log.ID, e.IndicatorID, e.Provenance, e.Status, e.RecordsAdded, e.RecordsUpdated, e.ErrorMessage)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to record indicator outcomes: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetLatestSyncLog returns the most recently started run with its indicator entries.
func (d *DB) GetLatestSyncLog(ctx context.Context) (*models.SyncLog, error) {
	var log models.SyncLog
	err := d.Pool.QueryRow(ctx, `SELECT `+syncLogColumns+` FROM sync_logs ORDER BY started_at DESC LIMIT 1`).Scan(
		&log.ID,
		&log.Trigger,
		&log.Status,
		&log.StartedAt,
		&log.CompletedAt,
		&log.IndicatorsUpdated,
		&log.RecordsAdded,
		&log.RecordsUpdated,
		&log.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSyncLogNotFound
	}
	if err != nil {
		return nil, err
	}

	entries, err := d.getSyncLogIndicators(ctx, log.ID)
	if err != nil {
		return nil, err
	}
	log.Indicators = entries
	return &log, nil
}

func (d *DB) getSyncLogIndicators(ctx context.Context, id uuid.UUID) ([]models.IndicatorSyncEntry, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT indicator_id, provenance, status, records_added, records_updated, error_message
		FROM sync_log_indicators
		WHERE sync_log_id = $1
		ORDER BY indicator_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.IndicatorSyncEntry
	for rows.Next() {
		var e models.IndicatorSyncEntry
		if err := rows.Scan(&e.IndicatorID, &e.Provenance, &e.Status, &e.RecordsAdded, &e.RecordsUpdated, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
