package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"coinmetrics-collector/internal/models"
)

// SQLiteManifest implements Manifest using SQLite.
type SQLiteManifest struct {
	db *sql.DB
}

// NewSQLiteManifest creates a new SQLite-backed export manifest.
func NewSQLiteManifest(dbPath string) (*SQLiteManifest, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating manifest directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	m := &SQLiteManifest{db: db}
	if err := m.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return m, nil
}

func (m *SQLiteManifest) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market TEXT NOT NULL,
		data_type TEXT NOT NULL,
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL,
		row_count INTEGER NOT NULL,
		path TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(market, data_type, window_start, window_end)
	);

	CREATE INDEX IF NOT EXISTS idx_exports_type ON exports(data_type);
	CREATE INDEX IF NOT EXISTS idx_exports_market ON exports(market);
	`
	_, err := m.db.Exec(schema)
	return err
}

// RecordExport upserts a completed export.
func (m *SQLiteManifest) RecordExport(ctx context.Context, rec models.ExportRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO exports (market, data_type, window_start, window_end, row_count, path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(market, data_type, window_start, window_end)
		DO UPDATE SET row_count = excluded.row_count, path = excluded.path, created_at = CURRENT_TIMESTAMP`,
		rec.Market, string(rec.DataType), rec.WindowStart.UTC(), rec.WindowEnd.UTC(), rec.Rows, rec.Path)
	if err != nil {
		return fmt.Errorf("recording export for %s: %w", rec.Market, err)
	}
	return nil
}

// HasExport reports whether an export exists for the exact window.
func (m *SQLiteManifest) HasExport(ctx context.Context, market string, dataType models.DataType, windowStart, windowEnd time.Time) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM exports
		WHERE market = ? AND data_type = ? AND window_start = ? AND window_end = ?`,
		market, string(dataType), windowStart.UTC(), windowEnd.UTC()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking export for %s: %w", market, err)
	}
	return count > 0, nil
}

// ListExports returns exports matching the filter, newest first.
func (m *SQLiteManifest) ListExports(ctx context.Context, filter ExportFilter) ([]models.ExportRecord, error) {
	query := `SELECT id, market, data_type, window_start, window_end, row_count, path, created_at FROM exports`
	var conds []string
	var args []interface{}

	if filter.DataType != "" {
		conds = append(conds, "data_type = ?")
		args = append(args, string(filter.DataType))
	}
	if filter.Market != "" {
		conds = append(conds, "market = ?")
		args = append(args, filter.Market)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	defer rows.Close()

	var records []models.ExportRecord
	for rows.Next() {
		var rec models.ExportRecord
		var dataType string
		if err := rows.Scan(&rec.ID, &rec.Market, &dataType, &rec.WindowStart, &rec.WindowEnd, &rec.Rows, &rec.Path, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		rec.DataType = models.DataType(dataType)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (m *SQLiteManifest) Close() error {
	return m.db.Close()
}
