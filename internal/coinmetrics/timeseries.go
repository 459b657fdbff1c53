package coinmetrics

import (
	"context"
	"encoding/json"
	"strings"

	"coinmetrics-collector/internal/errors"
	"coinmetrics-collector/internal/models"
)

// timeFormat is the instant format the timeseries endpoints accept.
const timeFormat = "2006-01-02T15:04:05Z"

func (q TimeseriesQuery) params() *timeseriesParams {
	p := &timeseriesParams{
		Markets:     strings.Join(q.Markets, ","),
		Granularity: q.Granularity,
		PageSize:    q.PageSize,
	}
	if !q.StartTime.IsZero() {
		p.StartTime = q.StartTime.UTC().Format(timeFormat)
	}
	if !q.EndTime.IsZero() {
		p.EndTime = q.EndTime.UTC().Format(timeFormat)
	}
	return p
}

// fetchTimeseries pulls every page of the given timeseries endpoint and
// decodes each page into rows of type T.
func fetchTimeseries[T any](ctx context.Context, c *Client, dataType models.DataType, q TimeseriesQuery) ([]T, error) {
	if len(q.Markets) == 0 {
		return nil, errors.NewValidationError("markets", q.Markets, "at least one market required")
	}

	var rows []T
	path := endpointPath("timeseries", string(dataType))

	err := c.collectPages(ctx, path, q.params(), func(data json.RawMessage) error {
		var page []T
		if err := json.Unmarshal(data, &page); err != nil {
			return errors.Wrap(err, "decoding timeseries page")
		}
		rows = append(rows, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("data_type", string(dataType)).
		Int("markets", len(q.Markets)).
		Int("rows", len(rows)).
		Msg("Timeseries fetched")

	return rows, nil
}

// MarketGreeks fetches Greek observations for the given markets and window.
func (c *Client) MarketGreeks(ctx context.Context, q TimeseriesQuery) ([]models.GreeksRow, error) {
	return fetchTimeseries[models.GreeksRow](ctx, c, models.DataTypeGreeks, q)
}

// MarketImpliedVolatility fetches implied volatility observations.
func (c *Client) MarketImpliedVolatility(ctx context.Context, q TimeseriesQuery) ([]models.ImpliedVolatilityRow, error) {
	return fetchTimeseries[models.ImpliedVolatilityRow](ctx, c, models.DataTypeImpliedVolatility, q)
}

// MarketContractPrices fetches contract mark/index price observations.
func (c *Client) MarketContractPrices(ctx context.Context, q TimeseriesQuery) ([]models.ContractPriceRow, error) {
	return fetchTimeseries[models.ContractPriceRow](ctx, c, models.DataTypeContractPrices, q)
}

// MarketOpenInterest fetches open interest observations.
func (c *Client) MarketOpenInterest(ctx context.Context, q TimeseriesQuery) ([]models.OpenInterestRow, error) {
	return fetchTimeseries[models.OpenInterestRow](ctx, c, models.DataTypeOpenInterest, q)
}
