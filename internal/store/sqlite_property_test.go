package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"coinmetrics-collector/internal/models"
)

func TestProperty_ManifestRoundTrip(t *testing.T) {
	m, err := NewSQLiteManifest(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	defer m.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	dataTypes := models.AllDataTypes()

	properties.Property("recorded exports are found for their exact window", prop.ForAll(
		func(strike int, typeIdx int, dayOffset int, rowCount int) bool {
			ctx := context.Background()
			dataType := dataTypes[typeIdx%len(dataTypes)]
			expiry := time.Date(2024, time.December, 13, 0, 0, 0, 0, time.UTC).AddDate(0, 0, dayOffset)
			start := expiry.AddDate(0, 0, -22)
			market := fmt.Sprintf("deribit-BTC-%s-%d-C-option", expiry.Format("2Jan06"), strike)

			rec := models.ExportRecord{
				Market:      market,
				DataType:    dataType,
				WindowStart: start,
				WindowEnd:   expiry,
				Rows:        rowCount,
				Path:        filepath.Join(dataType.Dir(), market+".csv"),
			}
			if err := m.RecordExport(ctx, rec); err != nil {
				return false
			}

			has, err := m.HasExport(ctx, market, dataType, start, expiry)
			if err != nil || !has {
				return false
			}

			// A shifted window never matches.
			has, err = m.HasExport(ctx, market, dataType, start.AddDate(0, 0, -1), expiry)
			if err != nil || has {
				return false
			}

			records, err := m.ListExports(ctx, ExportFilter{Market: market, DataType: dataType})
			if err != nil || len(records) != 1 {
				return false
			}
			got := records[0]
			return got.Market == market &&
				got.DataType == dataType &&
				got.Rows == rowCount &&
				got.WindowStart.UTC().Equal(start) &&
				got.WindowEnd.UTC().Equal(expiry)
		},
		gen.IntRange(1000, 200000),
		gen.IntRange(0, len(dataTypes)-1),
		gen.IntRange(0, 365),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}
