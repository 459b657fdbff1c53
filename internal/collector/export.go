package collector

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"coinmetrics-collector/internal/errors"
	"coinmetrics-collector/internal/logging"
	"coinmetrics-collector/internal/models"
)

// writeMarketCSV writes one market's rows to <outDir>/<type-dir>/<market>.csv.
func writeMarketCSV[T any](outDir string, dataType models.DataType, marketName string, rows []T) (string, error) {
	dir := filepath.Join(outDir, dataType.Dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.NewExportError(marketName, dir, err)
	}

	path := filepath.Join(dir, marketName+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", errors.NewExportError(marketName, path, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return "", errors.NewExportError(marketName, path, err)
	}
	return path, nil
}

// exportByMarket splits fetched rows by market name, writes one CSV per
// market and records each file in the manifest. Markets with no rows in
// the window produce no file.
func exportByMarket[T any](ctx context.Context, c *Collector, dataType models.DataType, rows []T, marketOf func(T) string, windowStart, windowEnd time.Time) (files, total int, err error) {
	byMarket := make(map[string][]T)
	for _, row := range rows {
		name := marketOf(row)
		byMarket[name] = append(byMarket[name], row)
	}

	for name, marketRows := range byMarket {
		path, err := writeMarketCSV(c.outDir, dataType, name, marketRows)
		if err != nil {
			return files, total, err
		}
		logging.LogExport(c.logger, name, path, len(marketRows))

		if c.manifest != nil {
			rec := models.ExportRecord{
				Market:      name,
				DataType:    dataType,
				WindowStart: windowStart,
				WindowEnd:   windowEnd,
				Rows:        len(marketRows),
				Path:        path,
			}
			if err := c.manifest.RecordExport(ctx, rec); err != nil {
				c.logger.Warn().Err(err).Str("market", name).Msg("Failed to record export in manifest")
			}
		}

		files++
		total += len(marketRows)
	}
	return files, total, nil
}
