// Package analysis inspects the market catalog and validates downloaded
// Greeks data.
package analysis

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"

	"coinmetrics-collector/internal/errors"
	"coinmetrics-collector/internal/market"
	"coinmetrics-collector/internal/models"
)

// Distribution summarizes a sample of values.
type Distribution struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Describe computes a Distribution for the sample.
func Describe(sample []float64) (Distribution, error) {
	if len(sample) == 0 {
		return Distribution{}, errors.ErrDataNotFound
	}

	data := stats.Float64Data(sample)
	d := Distribution{Count: len(sample)}

	var err error
	if d.Min, err = data.Min(); err != nil {
		return d, err
	}
	if d.Max, err = data.Max(); err != nil {
		return d, err
	}
	if d.Mean, err = data.Mean(); err != nil {
		return d, err
	}
	if d.Std, err = data.StandardDeviation(); err != nil {
		return d, err
	}
	for _, pct := range []struct {
		p    float64
		dest *float64
	}{
		{25, &d.P25}, {50, &d.P50}, {75, &d.P75}, {90, &d.P90}, {95, &d.P95}, {99, &d.P99},
	} {
		if *pct.dest, err = data.Percentile(pct.p); err != nil {
			return d, err
		}
	}
	return d, nil
}

// MonthlyTradingDays is the average trading period for options expiring in
// one calendar month.
type MonthlyTradingDays struct {
	Month       string  `json:"month"` // YYYY-MM
	AvgDays     float64 `json:"avg_days"`
	MarketCount int     `json:"market_count"`
}

// CatalogStats is the full catalog analysis.
type CatalogStats struct {
	Markets              int                       `json:"markets"`
	ActiveMarkets        int                       `json:"active_markets"`
	TradingDays          Distribution              `json:"trading_days"`
	DaysBeforeExpiration Distribution              `json:"days_before_expiration"`
	Strikes              Distribution              `json:"strikes"`
	OptionTypes          map[models.OptionType]int `json:"option_types"`
	MonthlyTradingDays   []MonthlyTradingDays      `json:"monthly_trading_days"`
	RecommendedDays      float64                   `json:"recommended_days_before_expiry"`
}

// CatalogRow is one analyzed catalog entry, exported to CSV alongside the
// printed report.
type CatalogRow struct {
	Market               string            `csv:"market"`
	ExpirationDate       models.Timestamp  `csv:"expiration_date"`
	Strike               float64           `csv:"strike"`
	OptionType           models.OptionType `csv:"option_type"`
	MinTime              models.Timestamp  `csv:"min_time"`
	MaxTime              models.Timestamp  `csv:"max_time"`
	TradingDays          float64           `csv:"trading_days"`
	DaysBeforeExpiration float64           `csv:"days_before_expiration"`
	DaysToExpiration     float64           `csv:"days_to_expiration"`
}

// AnalyzeCatalog derives trading-period statistics and a collection-window
// recommendation from catalog entries. Entries with unparseable market
// names are skipped. The recommendation is the 90th percentile of the
// days-before-expiration distribution: collecting from that many days
// before expiry captures roughly 90% of the observed trading activity.
func AnalyzeCatalog(entries []models.CatalogEntry, now time.Time) (*CatalogStats, []CatalogRow, error) {
	rows := buildRows(entries, now)
	if len(rows) == 0 {
		return nil, nil, errors.ErrNoMarkets
	}

	st := &CatalogStats{
		Markets:     len(rows),
		OptionTypes: make(map[models.OptionType]int),
	}

	tradingDays := make([]float64, 0, len(rows))
	beforeExp := make([]float64, 0, len(rows))
	strikes := make([]float64, 0, len(rows))
	byMonth := make(map[string][]float64)

	for _, r := range rows {
		tradingDays = append(tradingDays, r.TradingDays)
		beforeExp = append(beforeExp, r.DaysBeforeExpiration)
		strikes = append(strikes, r.Strike)
		st.OptionTypes[r.OptionType]++
		if r.DaysToExpiration > 0 {
			st.ActiveMarkets++
		}
		month := r.ExpirationDate.Format("2006-01")
		byMonth[month] = append(byMonth[month], r.TradingDays)
	}

	var err error
	if st.TradingDays, err = Describe(tradingDays); err != nil {
		return nil, nil, err
	}
	if st.DaysBeforeExpiration, err = Describe(beforeExp); err != nil {
		return nil, nil, err
	}
	if st.Strikes, err = Describe(strikes); err != nil {
		return nil, nil, err
	}
	st.RecommendedDays = st.DaysBeforeExpiration.P90

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		mean, _ := stats.Mean(stats.Float64Data(byMonth[m]))
		st.MonthlyTradingDays = append(st.MonthlyTradingDays, MonthlyTradingDays{
			Month:       m,
			AvgDays:     mean,
			MarketCount: len(byMonth[m]),
		})
	}

	return st, rows, nil
}

func buildRows(entries []models.CatalogEntry, now time.Time) []CatalogRow {
	rows := make([]CatalogRow, 0, len(entries))
	for _, e := range entries {
		inst, err := market.Parse(e.Market)
		if err != nil {
			continue
		}
		rows = append(rows, CatalogRow{
			Market:               e.Market,
			ExpirationDate:       models.Timestamp{Time: inst.Expiry},
			Strike:               inst.Strike,
			OptionType:           inst.OptionType,
			MinTime:              models.Timestamp{Time: e.MinTime},
			MaxTime:              models.Timestamp{Time: e.MaxTime},
			TradingDays:          e.TradingDays(),
			DaysBeforeExpiration: inst.Expiry.Sub(e.MinTime).Hours() / 24,
			DaysToExpiration:     inst.Expiry.Sub(now).Hours() / 24,
		})
	}
	return rows
}

// WriteCatalogCSV writes the analyzed catalog rows under the analysis
// directory and returns the file path.
func WriteCatalogCSV(analysisDir string, rows []CatalogRow) (string, error) {
	if err := os.MkdirAll(analysisDir, 0755); err != nil {
		return "", errors.Wrap(err, "creating analysis directory")
	}

	path := filepath.Join(analysisDir, "greeks_market_analysis.csv")
	file, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "creating catalog analysis file")
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return "", errors.Wrap(err, "writing catalog analysis")
	}
	return path, nil
}
