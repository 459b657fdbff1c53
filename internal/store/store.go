// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"coinmetrics-collector/internal/models"
)

// Manifest tracks completed per-market CSV exports so repeated runs can
// skip markets already downloaded for the same window.
type Manifest interface {
	// RecordExport upserts a completed export for (market, data type, window).
	RecordExport(ctx context.Context, rec models.ExportRecord) error

	// HasExport reports whether an export exists for the exact window.
	HasExport(ctx context.Context, market string, dataType models.DataType, windowStart, windowEnd time.Time) (bool, error)

	// ListExports returns exports matching the filter, newest first.
	ListExports(ctx context.Context, filter ExportFilter) ([]models.ExportRecord, error)

	Close() error
}

// ExportFilter narrows ListExports results. Zero values match everything.
type ExportFilter struct {
	DataType models.DataType
	Market   string
	Since    time.Time
	Limit    int
}
