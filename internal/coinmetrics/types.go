package coinmetrics

import (
	"time"

	"coinmetrics-collector/internal/models"
)

// catalogParams are the query parameters for /catalog-v2 endpoints.
type catalogParams struct {
	Exchange      string `url:"exchange,omitempty"`
	Base          string `url:"base,omitempty"`
	PageSize      int    `url:"page_size,omitempty"`
	NextPageToken string `url:"next_page_token,omitempty"`
}

func (p *catalogParams) setPageToken(token string) {
	p.NextPageToken = token
}

// timeseriesParams are the query parameters for /timeseries endpoints.
type timeseriesParams struct {
	Markets       string `url:"markets"`
	StartTime     string `url:"start_time,omitempty"`
	EndTime       string `url:"end_time,omitempty"`
	Granularity   string `url:"granularity,omitempty"`
	PageSize      int    `url:"page_size,omitempty"`
	NextPageToken string `url:"next_page_token,omitempty"`
}

func (p *timeseriesParams) setPageToken(token string) {
	p.NextPageToken = token
}

// CatalogQuery selects markets from the data-type catalog.
type CatalogQuery struct {
	Exchange string
	Base     string // empty means no base filter
	PageSize int
}

// TimeseriesQuery selects a timeseries slice for a set of markets.
type TimeseriesQuery struct {
	Markets     []string
	StartTime   time.Time
	EndTime     time.Time
	Granularity string
	PageSize    int
}

// catalogWireEntry is the catalog record as returned by the API.
type catalogWireEntry struct {
	Market  string           `json:"market"`
	MinTime models.Timestamp `json:"min_time"`
	MaxTime models.Timestamp `json:"max_time"`
}
