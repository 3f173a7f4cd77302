package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/history"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, rec history.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	// created_at is written explicitly rather than left to the column
	// default: the archive key is partitioned by this timestamp, so the
	// row and the archived object must agree on the day.
	query := `
INSERT INTO traversal (traversal_id, question, status, sql_text, reasoning, retry_count, row_count, chart_type, error_message, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Question,
		rec.Status,
		rec.SQL,
		rec.Reasoning,
		rec.RetryCount,
		rec.RowCount,
		rec.ChartType,
		rec.ErrorMessage,
		rec.Duration.Milliseconds(),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert traversal: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (history.Record, error) {
	query := `
SELECT traversal_id, question, status, sql_text, reasoning, retry_count, row_count, chart_type, error_message, duration_ms, created_at
FROM traversal
WHERE traversal_id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Record{}, history.ErrNotFound
		}
		return history.Record{}, fmt.Errorf("get traversal: %w", err)
	}
	return rec, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT traversal_id, question, status, sql_text, reasoning, retry_count, row_count, chart_type, error_message, duration_ms, created_at
FROM traversal
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list traversals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]history.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan traversal: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traversals: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (history.Record, error) {
	var rec history.Record
	var durationMS int64
	if err := row.Scan(
		&rec.ID,
		&rec.Question,
		&rec.Status,
		&rec.SQL,
		&rec.Reasoning,
		&rec.RetryCount,
		&rec.RowCount,
		&rec.ChartType,
		&rec.ErrorMessage,
		&durationMS,
		&rec.CreatedAt,
	); err != nil {
		return history.Record{}, err
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}
