// Package collector orchestrates downloading options market data by
// expiry date and exporting it to per-market CSV files.
package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"coinmetrics-collector/internal/coinmetrics"
	"coinmetrics-collector/internal/config"
	"coinmetrics-collector/internal/errors"
	"coinmetrics-collector/internal/logging"
	"coinmetrics-collector/internal/market"
	"coinmetrics-collector/internal/models"
	"coinmetrics-collector/internal/store"
)

// Client is the subset of the CoinMetrics API the collector uses.
type Client interface {
	Catalog(ctx context.Context, dataType models.DataType, q coinmetrics.CatalogQuery) ([]models.CatalogEntry, error)
	MarketGreeks(ctx context.Context, q coinmetrics.TimeseriesQuery) ([]models.GreeksRow, error)
	MarketImpliedVolatility(ctx context.Context, q coinmetrics.TimeseriesQuery) ([]models.ImpliedVolatilityRow, error)
	MarketContractPrices(ctx context.Context, q coinmetrics.TimeseriesQuery) ([]models.ContractPriceRow, error)
	MarketOpenInterest(ctx context.Context, q coinmetrics.TimeseriesQuery) ([]models.OpenInterestRow, error)
}

// Collector downloads and exports options market data.
type Collector struct {
	client   Client
	manifest store.Manifest // optional
	cfg      config.CollectionConfig
	outDir   string
	logger   zerolog.Logger
}

// New creates a Collector.
func New(client Client, manifest store.Manifest, cfg config.CollectionConfig, outDir string, logger zerolog.Logger) *Collector {
	if outDir == "" {
		outDir = "."
	}
	return &Collector{
		client:   client,
		manifest: manifest,
		cfg:      cfg,
		outDir:   outDir,
		logger:   logger,
	}
}

// Options selects what to collect.
type Options struct {
	StartDate        time.Time // expiry range start (midnight UTC)
	EndDate          time.Time // expiry range end (midnight UTC)
	DaysBeforeExpiry int
	Granularity      string
	Types            []models.DataType
	Force            bool // re-download markets already in the manifest
}

// TypeResult summarizes one data type's collection run.
type TypeResult struct {
	DataType     models.DataType `json:"data_type"`
	ExpiryGroups int             `json:"expiry_groups"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	Files        int             `json:"files"`
	Rows         int             `json:"rows"`
	Skipped      int             `json:"skipped_markets"`
}

// Run collects every requested data type. Per-expiry failures are logged
// and tallied; Run returns an error only when a pre-flight step fails or
// every expiry group of a type failed.
func (c *Collector) Run(ctx context.Context, opts Options) ([]TypeResult, error) {
	types := opts.Types
	if len(types) == 0 {
		types = models.AllDataTypes()
	}

	results := make([]TypeResult, 0, len(types))
	for _, dt := range types {
		res, err := c.collectType(ctx, dt, opts)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (c *Collector) collectType(ctx context.Context, dataType models.DataType, opts Options) (TypeResult, error) {
	logger := logging.WithDataType(c.logger, string(dataType))
	res := TypeResult{DataType: dataType}

	entries, err := c.client.Catalog(ctx, dataType, c.catalogQuery(dataType))
	if err != nil {
		return res, err
	}

	entries = c.filterBase(entries)
	groups := market.GroupByExpiry(entries, opts.StartDate, opts.EndDate)
	if len(groups) == 0 {
		// A normal outcome: the other data types still get collected.
		logger.Warn().
			Str("from", opts.StartDate.Format("2006-01-02")).
			Str("to", opts.EndDate.Format("2006-01-02")).
			Msg("No markets found within the requested expiry range")
		return res, nil
	}

	totalMarkets := 0
	for _, g := range groups {
		totalMarkets += len(g.Markets)
	}
	res.ExpiryGroups = len(groups)
	logger.Info().
		Int("markets", totalMarkets).
		Int("expiry_dates", len(groups)).
		Str("from", opts.StartDate.Format("2006-01-02")).
		Str("to", opts.EndDate.Format("2006-01-02")).
		Msg("Markets grouped by expiry")

	var mu sync.Mutex
	batchPause := time.Duration(c.cfg.BatchPauseSec) * time.Second

	// Expiry groups are fetched in batches with a short pause in between
	// so a long catalog does not hammer the API all at once.
	for start := 0; start < len(groups); start += c.cfg.MaxConcurrent {
		end := start + c.cfg.MaxConcurrent
		if end > len(groups) {
			end = len(groups)
		}

		p := pool.New().WithMaxGoroutines(c.cfg.MaxConcurrent)
		for _, g := range groups[start:end] {
			g := g
			p.Go(func() {
				files, rows, skipped, err := c.collectExpiry(ctx, dataType, g, opts)
				mu.Lock()
				defer mu.Unlock()
				res.Skipped += skipped
				if err != nil {
					res.Failed++
					logger.Error().Err(err).
						Str("expiry", g.Expiry.Format("2006-01-02")).
						Msg("Expiry group failed")
					return
				}
				res.Succeeded++
				res.Files += files
				res.Rows += rows
			})
		}
		p.Wait()

		if end < len(groups) && batchPause > 0 {
			logger.Debug().Msg("Batch complete, pausing before next batch")
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(batchPause):
			}
		}
	}

	logger.Info().
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("files", res.Files).
		Msg("Data type collection complete")

	if res.Succeeded == 0 && res.Failed > 0 {
		return res, errors.Wrapf(errors.ErrDataNotFound, "all %d expiry groups failed for %s", res.Failed, dataType)
	}
	return res, nil
}

// collectExpiry fetches the timeseries for one expiry group's markets and
// writes the per-market CSV files.
func (c *Collector) collectExpiry(ctx context.Context, dataType models.DataType, g market.ExpiryGroup, opts Options) (files, rows, skipped int, err error) {
	windowStart, windowEnd := market.CollectionWindow(g.Expiry, opts.DaysBeforeExpiry)
	logger := logging.WithExpiry(logging.WithDataType(c.logger, string(dataType)), g.Expiry)

	markets := g.Markets
	if c.manifest != nil && !opts.Force {
		markets, skipped = c.filterDone(ctx, dataType, markets, windowStart, windowEnd)
		if len(markets) == 0 {
			logger.Debug().Int("skipped", skipped).Msg("All markets already exported")
			return 0, 0, skipped, nil
		}
	}

	logger.Info().
		Int("markets", len(markets)).
		Str("from", windowStart.Format("2006-01-02")).
		Str("to", windowEnd.Format("2006-01-02")).
		Msg("Fetching market data")

	q := coinmetrics.TimeseriesQuery{
		Markets:     markets,
		StartTime:   windowStart,
		EndTime:     windowEnd,
		Granularity: opts.Granularity,
		PageSize:    c.cfg.PageSize,
	}

	expiry := g.Expiry.Format("2006-01-02")
	switch dataType {
	case models.DataTypeGreeks:
		data, ferr := c.client.MarketGreeks(ctx, q)
		if ferr != nil {
			return 0, 0, skipped, errors.NewFetchError(string(dataType), expiry, len(markets), ferr)
		}
		files, rows, err = exportByMarket(ctx, c, dataType, data, func(r models.GreeksRow) string { return r.Market }, windowStart, windowEnd)
	case models.DataTypeImpliedVolatility:
		data, ferr := c.client.MarketImpliedVolatility(ctx, q)
		if ferr != nil {
			return 0, 0, skipped, errors.NewFetchError(string(dataType), expiry, len(markets), ferr)
		}
		files, rows, err = exportByMarket(ctx, c, dataType, data, func(r models.ImpliedVolatilityRow) string { return r.Market }, windowStart, windowEnd)
	case models.DataTypeContractPrices:
		data, ferr := c.client.MarketContractPrices(ctx, q)
		if ferr != nil {
			return 0, 0, skipped, errors.NewFetchError(string(dataType), expiry, len(markets), ferr)
		}
		files, rows, err = exportByMarket(ctx, c, dataType, data, func(r models.ContractPriceRow) string { return r.Market }, windowStart, windowEnd)
	case models.DataTypeOpenInterest:
		data, ferr := c.client.MarketOpenInterest(ctx, q)
		if ferr != nil {
			return 0, 0, skipped, errors.NewFetchError(string(dataType), expiry, len(markets), ferr)
		}
		files, rows, err = exportByMarket(ctx, c, dataType, data, func(r models.OpenInterestRow) string { return r.Market }, windowStart, windowEnd)
	default:
		return 0, 0, skipped, errors.NewValidationError("data_type", string(dataType), "unknown data type")
	}
	return files, rows, skipped, err
}

// catalogQuery builds the catalog query for a data type. The implied
// volatility catalog does not accept a base filter, so it is queried by
// exchange only and filtered by parsed market name afterwards.
func (c *Collector) catalogQuery(dataType models.DataType) coinmetrics.CatalogQuery {
	q := coinmetrics.CatalogQuery{Exchange: c.cfg.Exchange, Base: c.cfg.Base}
	if dataType == models.DataTypeImpliedVolatility {
		q.Base = ""
	}
	return q
}

// filterBase keeps entries whose parsed base asset matches the configured
// one. Unparseable market names are dropped here as well.
func (c *Collector) filterBase(entries []models.CatalogEntry) []models.CatalogEntry {
	if c.cfg.Base == "" {
		return entries
	}
	filtered := entries[:0]
	for _, e := range entries {
		inst, err := market.Parse(e.Market)
		if err != nil {
			continue
		}
		if strings.EqualFold(inst.Base, c.cfg.Base) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// filterDone drops markets already recorded in the manifest for the window.
func (c *Collector) filterDone(ctx context.Context, dataType models.DataType, markets []string, windowStart, windowEnd time.Time) (remaining []string, skipped int) {
	for _, name := range markets {
		done, err := c.manifest.HasExport(ctx, name, dataType, windowStart, windowEnd)
		if err != nil {
			c.logger.Warn().Err(err).Str("market", name).Msg("Manifest lookup failed")
			remaining = append(remaining, name)
			continue
		}
		if done {
			skipped++
			continue
		}
		remaining = append(remaining, name)
	}
	return remaining, skipped
}
