package coinmetrics

import (
	"context"
	"encoding/json"

	"coinmetrics-collector/internal/errors"
	"coinmetrics-collector/internal/models"
)

// Catalog fetches every catalog entry for the given data type, following
// pagination to exhaustion.
func (c *Client) Catalog(ctx context.Context, dataType models.DataType, q CatalogQuery) ([]models.CatalogEntry, error) {
	if !dataType.Valid() {
		return nil, errors.NewValidationError("data_type", string(dataType), "unknown data type")
	}

	params := &catalogParams{
		Exchange: q.Exchange,
		Base:     q.Base,
		PageSize: q.PageSize,
	}

	var entries []models.CatalogEntry
	path := endpointPath("catalog-v2", string(dataType))

	err := c.collectPages(ctx, path, params, func(data json.RawMessage) error {
		var page []catalogWireEntry
		if err := json.Unmarshal(data, &page); err != nil {
			return errors.Wrap(err, "decoding catalog page")
		}
		for _, e := range page {
			entries = append(entries, models.CatalogEntry{
				Market:  e.Market,
				MinTime: e.MinTime.Time,
				MaxTime: e.MaxTime.Time,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewCatalogError(string(dataType), q.Exchange, err)
	}

	c.logger.Debug().
		Str("data_type", string(dataType)).
		Str("exchange", q.Exchange).
		Int("markets", len(entries)).
		Msg("Catalog fetched")

	return entries, nil
}
