package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampJSON(t *testing.T) {
	var row GreeksRow
	payload := `{
		"market": "deribit-BTC-13DEC24-100000-C-option",
		"time": "2024-12-01T00:00:00.000000000Z",
		"delta": "0.4821", "gamma": "0.00001", "theta": "-120.5",
		"rho": "12.3", "vega": "85.2"
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &row))

	assert.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), row.Time.Time)
	assert.InDelta(t, 0.4821, row.Delta, 1e-9)
	assert.InDelta(t, 0.00001, row.Gamma, 1e-12)
}

func TestTimestampCSVRoundTrip(t *testing.T) {
	ts := Timestamp{Time: time.Date(2024, time.December, 1, 8, 30, 0, 0, time.UTC)}
	s, err := ts.MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "2024-12-01T08:30:00Z", s)

	var parsed Timestamp
	require.NoError(t, parsed.UnmarshalCSV(s))
	assert.True(t, parsed.Equal(ts.Time))

	assert.Error(t, parsed.UnmarshalCSV("not-a-time"))
}

func TestDataTypeValid(t *testing.T) {
	for _, dt := range AllDataTypes() {
		assert.True(t, dt.Valid(), string(dt))
	}
	assert.False(t, DataType("market-trades").Valid())
}

func TestCatalogEntryTradingDays(t *testing.T) {
	e := CatalogEntry{
		MinTime: time.Date(2024, time.November, 13, 0, 0, 0, 0, time.UTC),
		MaxTime: time.Date(2024, time.December, 13, 8, 0, 0, 0, time.UTC),
	}
	assert.InDelta(t, 30.33, e.TradingDays(), 0.01)

	// Inverted periods clamp to zero.
	e.MinTime, e.MaxTime = e.MaxTime, e.MinTime
	assert.Equal(t, 0.0, e.TradingDays())
}
