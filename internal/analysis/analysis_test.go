package analysis

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinmetrics-collector/internal/errors"
	"coinmetrics-collector/internal/market"
	"coinmetrics-collector/internal/models"
)

func TestDescribe(t *testing.T) {
	d, err := Describe([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)

	assert.Equal(t, 10, d.Count)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 10.0, d.Max)
	assert.InDelta(t, 5.5, d.Mean, 1e-9)
	assert.Greater(t, d.Std, 0.0)
	assert.GreaterOrEqual(t, d.P50, d.P25)
	assert.GreaterOrEqual(t, d.P90, d.P50)
	assert.GreaterOrEqual(t, d.P99, d.P90)
}

func TestDescribeEmpty(t *testing.T) {
	_, err := Describe(nil)
	assert.ErrorIs(t, err, errors.ErrDataNotFound)
}

func catalogEntry(m string, minTime, maxTime time.Time) models.CatalogEntry {
	return models.CatalogEntry{Market: m, MinTime: minTime, MaxTime: maxTime}
}

func TestAnalyzeCatalog(t *testing.T) {
	decExpiry := time.Date(2024, time.December, 13, 8, 0, 0, 0, time.UTC)
	marExpiry := time.Date(2025, time.March, 28, 8, 0, 0, 0, time.UTC)
	now := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)

	entries := []models.CatalogEntry{
		catalogEntry("deribit-BTC-13DEC24-100000-C-option", decExpiry.AddDate(0, 0, -30), decExpiry),
		catalogEntry("deribit-BTC-13DEC24-100000-P-option", decExpiry.AddDate(0, 0, -30), decExpiry),
		catalogEntry("deribit-BTC-28MAR25-120000-C-option", marExpiry.AddDate(0, 0, -30), marExpiry),
		catalogEntry("deribit-BTC-PERPETUAL", now, now), // skipped
	}

	st, rows, err := AnalyzeCatalog(entries, now)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 3, st.Markets)
	assert.Equal(t, 3, st.ActiveMarkets)
	assert.Equal(t, 2, st.OptionTypes[models.OptionCall])
	assert.Equal(t, 1, st.OptionTypes[models.OptionPut])

	// All markets were listed 30 days before expiry.
	assert.InDelta(t, 30, st.DaysBeforeExpiration.Mean, 0.5)
	assert.InDelta(t, st.DaysBeforeExpiration.P90, st.RecommendedDays, 1e-9)

	require.Len(t, st.MonthlyTradingDays, 2)
	assert.Equal(t, "2024-12", st.MonthlyTradingDays[0].Month)
	assert.Equal(t, 2, st.MonthlyTradingDays[0].MarketCount)
	assert.Equal(t, "2025-03", st.MonthlyTradingDays[1].Month)

	assert.Equal(t, 100000.0, rows[0].Strike)
	assert.InDelta(t, 30, rows[0].TradingDays, 0.01)
}

func TestAnalyzeCatalogNoParseableMarkets(t *testing.T) {
	entries := []models.CatalogEntry{
		catalogEntry("deribit-BTC-PERPETUAL", time.Now(), time.Now()),
	}
	_, _, err := AnalyzeCatalog(entries, time.Now())
	assert.ErrorIs(t, err, errors.ErrNoMarkets)
}

func TestWriteCatalogCSV(t *testing.T) {
	dir := t.TempDir()
	rows := []CatalogRow{{
		Market:     "deribit-BTC-13DEC24-100000-C-option",
		Strike:     100000,
		OptionType: models.OptionCall,
	}}

	path, err := WriteCatalogCSV(dir, rows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "greeks_market_analysis.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "market,expiration_date,strike,option_type")
	assert.Contains(t, string(content), "deribit-BTC-13DEC24-100000-C-option")
}

func writeGreeksFile(t *testing.T, dir, market string, lines string) string {
	t.Helper()
	path := filepath.Join(dir, market+".csv")
	content := "market,time,delta,gamma,theta,rho,vega\n" + lines
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadGreeksCSV(t *testing.T) {
	dir := t.TempDir()
	market := "deribit-BTC-13DEC24-100000-C-option"
	// Rows intentionally out of order.
	path := writeGreeksFile(t, dir, market,
		market+",2024-12-02T00:00:00Z,0.51,0.00001,-130.0,12.5,80.0\n"+
			market+",2024-12-01T00:00:00Z,0.48,0.00001,-120.5,12.3,85.2\n")

	s, err := LoadGreeksCSV(path)
	require.NoError(t, err)

	assert.Equal(t, market, s.Market)
	assert.Equal(t, 100000.0, s.Instrument.Strike)
	assert.True(t, s.Instrument.IsCall())
	require.Len(t, s.Rows, 2)
	assert.True(t, s.Rows[0].Time.Before(s.Rows[1].Time.Time))
	assert.InDelta(t, 0.48, s.Rows[0].Delta, 1e-9)

	assert.Equal(t, "Call 100000 13Dec24", s.Label())
}

func TestLoadGreeksCSVEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeGreeksFile(t, dir, "deribit-BTC-13DEC24-100000-C-option", "")

	_, err := LoadGreeksCSV(path)
	assert.ErrorIs(t, err, errors.ErrDataNotFound)
}

func TestLoadGreeksCSVBadName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.csv")
	require.NoError(t, os.WriteFile(path, []byte("market,time\n"), 0644))

	_, err := LoadGreeksCSV(path)
	assert.Error(t, err)
}

func seriesFromRows(t *testing.T, name string, rows []models.GreeksRow) *OptionSeries {
	t.Helper()
	inst, err := market.Parse(name)
	require.NoError(t, err)
	return &OptionSeries{Market: name, Instrument: inst, Rows: rows}
}

func greeksRow(market string, day time.Time, delta, gamma, theta, vega float64) models.GreeksRow {
	return models.GreeksRow{
		Market: market,
		Time:   models.Timestamp{Time: day},
		Delta:  delta,
		Gamma:  gamma,
		Theta:  theta,
		Rho:    10,
		Vega:   vega,
	}
}

func TestStatsAndDailyAggregate(t *testing.T) {
	market := "deribit-BTC-13DEC24-100000-C-option"
	day := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	s := seriesFromRows(t, market, []models.GreeksRow{
		greeksRow(market, day, 0.40, 0.00001, -100, 80),
		greeksRow(market, day.Add(12*time.Hour), 0.60, 0.00001, -110, 90),
		greeksRow(market, day.AddDate(0, 0, 1), 0.50, 0.00002, -150, 70),
	})

	st := s.Stats()
	assert.InDelta(t, 0.40, st["delta"].Min, 1e-9)
	assert.InDelta(t, 0.60, st["delta"].Max, 1e-9)
	assert.InDelta(t, 0.50, st["delta"].Mean, 1e-9)

	daily := s.DailyAggregate()
	require.Len(t, daily, 2)
	assert.Equal(t, day, daily[0].Date)
	assert.InDelta(t, 0.50, daily[0].Delta, 1e-9)
	assert.InDelta(t, -105, daily[0].Theta, 1e-9)
	assert.InDelta(t, 0.50, daily[1].Delta, 1e-9)
}

func TestAssess(t *testing.T) {
	callMarket := "deribit-BTC-13DEC24-100000-C-option"
	putMarket := "deribit-BTC-13DEC24-100000-P-option"
	far := time.Date(2024, time.November, 25, 0, 0, 0, 0, time.UTC)
	near := time.Date(2024, time.December, 11, 0, 0, 0, 0, time.UTC)

	call := seriesFromRows(t, callMarket, []models.GreeksRow{
		greeksRow(callMarket, far, 0.45, 0.00001, -100, 85),
		greeksRow(callMarket, near, 0.55, 0.00003, -200, 40),
	})
	put := seriesFromRows(t, putMarket, []models.GreeksRow{
		greeksRow(putMarket, far, -0.55, 0.00001, -100, 85),
		greeksRow(putMarket, near, -0.45, 0.00003, -200, 40),
	})

	a := Assess([]*OptionSeries{call, put})

	assert.Equal(t, 2, a.Options)
	assert.True(t, a.DeltaInBounds)
	assert.True(t, a.ThetaDecays)
	assert.True(t, a.GammaRises)
	assert.InDelta(t, 0.45, a.CallDeltaMin, 1e-9)
	assert.InDelta(t, 0.55, a.CallDeltaMax, 1e-9)

	require.Len(t, a.PairChecks, 1)
	check := a.PairChecks[0]
	assert.Equal(t, 100000.0, check.Strike)
	assert.InDelta(t, 1.0, check.DeltaSum, 1e-9)
	assert.InDelta(t, 1.0, check.GammaRatio, 1e-9)
	assert.InDelta(t, 1.0, check.VegaRatio, 1e-9)
}

func TestAssessOutOfBoundsDelta(t *testing.T) {
	market := "deribit-BTC-13DEC24-100000-C-option"
	day := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	s := seriesFromRows(t, market, []models.GreeksRow{
		greeksRow(market, day, 1.2, 0.00001, -100, 85),
	})

	a := Assess([]*OptionSeries{s})
	assert.False(t, a.DeltaInBounds)
}

func TestWriteAssessment(t *testing.T) {
	dir := t.TempDir()
	a := Assessment{
		Options:       2,
		CallDeltaMin:  0.45,
		CallDeltaMax:  0.55,
		PutDeltaMin:   -0.55,
		PutDeltaMax:   -0.45,
		DeltaInBounds: true,
		ThetaDecays:   true,
		GammaRises:    true,
		PairChecks: []PairCheck{{
			Strike:     100000,
			Expiry:     time.Date(2024, time.December, 13, 0, 0, 0, 0, time.UTC),
			DeltaSum:   1.0,
			GammaRatio: 1.0,
			VegaRatio:  1.0,
		}},
	}

	path, err := WriteAssessment(dir, a)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "greeks_summary", "data_validity_assessment.txt"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "Delta values within theoretical bounds: YES")
	assert.Contains(t, text, "Strike 100000 expiry 2024-12-13")
	assert.Contains(t, text, "appears valid and plausible")
}
