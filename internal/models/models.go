// Package models defines the domain types for options market data collection.
package models

import (
	"fmt"
	"time"
)

// DataType identifies one of the collected market data series.
type DataType string

const (
	DataTypeGreeks            DataType = "market-greeks"
	DataTypeImpliedVolatility DataType = "market-implied-volatility"
	DataTypeContractPrices    DataType = "market-contract-prices"
	DataTypeOpenInterest      DataType = "market-openinterest"
)

// AllDataTypes lists every collectable data type.
func AllDataTypes() []DataType {
	return []DataType{
		DataTypeGreeks,
		DataTypeImpliedVolatility,
		DataTypeContractPrices,
		DataTypeOpenInterest,
	}
}

// Valid reports whether the data type is one of the known series.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeGreeks, DataTypeImpliedVolatility, DataTypeContractPrices, DataTypeOpenInterest:
		return true
	}
	return false
}

// Dir returns the output directory name for the data type.
// Files for each type are grouped under their own directory.
func (d DataType) Dir() string {
	return string(d)
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionCall OptionType = "C"
	OptionPut  OptionType = "P"
)

// Instrument is a single option contract parsed from a market name
// like "deribit-BTC-13DEC24-100000-C-option".
type Instrument struct {
	Exchange   string
	Base       string
	Expiry     time.Time // settlement instant, 08:00 UTC on the expiry day
	Strike     float64
	OptionType OptionType
}

// ExpiryDay returns the expiry truncated to midnight UTC.
// Grouping and collection windows operate on day boundaries.
func (i Instrument) ExpiryDay() time.Time {
	return time.Date(i.Expiry.Year(), i.Expiry.Month(), i.Expiry.Day(), 0, 0, 0, 0, time.UTC)
}

// IsCall reports whether the instrument is a call option.
func (i Instrument) IsCall() bool {
	return i.OptionType == OptionCall
}

// CatalogEntry is one market from the vendor catalog with its observed
// trading period.
type CatalogEntry struct {
	Market  string
	MinTime time.Time
	MaxTime time.Time
}

// TradingDays returns the length of the observed trading period in days.
func (c CatalogEntry) TradingDays() float64 {
	if c.MaxTime.Before(c.MinTime) {
		return 0
	}
	return c.MaxTime.Sub(c.MinTime).Hours() / 24
}

// Timestamp wraps time.Time so gocsv can marshal row times as RFC 3339.
type Timestamp struct {
	time.Time
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (t Timestamp) MarshalCSV() (string, error) {
	return t.UTC().Format(time.RFC3339), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (t *Timestamp) UnmarshalCSV(s string) error {
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler. The API reports times with
// nanosecond precision.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid timestamp %s", s)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s[1:len(s)-1])
	if err != nil {
		return fmt.Errorf("parsing timestamp %s: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// GreeksRow is one observation of option risk sensitivities.
type GreeksRow struct {
	Market string    `csv:"market" json:"market"`
	Time   Timestamp `csv:"time" json:"time"`
	Delta  float64   `csv:"delta" json:"delta,string"`
	Gamma  float64   `csv:"gamma" json:"gamma,string"`
	Theta  float64   `csv:"theta" json:"theta,string"`
	Rho    float64   `csv:"rho" json:"rho,string"`
	Vega   float64   `csv:"vega" json:"vega,string"`
}

// ImpliedVolatilityRow is one observation of market implied volatility.
type ImpliedVolatilityRow struct {
	Market string    `csv:"market" json:"market"`
	Time   Timestamp `csv:"time" json:"time"`
	IVBid  float64   `csv:"iv_bid" json:"iv_bid,string"`
	IVAsk  float64   `csv:"iv_ask" json:"iv_ask,string"`
	IVMark float64   `csv:"iv_mark" json:"iv_mark,string"`
}

// ContractPriceRow is one observation of contract mark and index prices.
type ContractPriceRow struct {
	Market     string    `csv:"market" json:"market"`
	Time       Timestamp `csv:"time" json:"time"`
	MarkPrice  float64   `csv:"mark_price" json:"mark_price,string"`
	IndexPrice float64   `csv:"index_price" json:"index_price,string"`
}

// OpenInterestRow is one observation of outstanding contracts.
type OpenInterestRow struct {
	Market        string    `csv:"market" json:"market"`
	Time          Timestamp `csv:"time" json:"time"`
	ContractCount float64   `csv:"contract_count" json:"contract_count,string"`
	ValueUSD      float64   `csv:"value_usd" json:"value_usd,string"`
}

// ExportRecord is one completed per-market CSV export kept in the manifest.
type ExportRecord struct {
	ID          int64
	Market      string
	DataType    DataType
	WindowStart time.Time
	WindowEnd   time.Time
	Rows        int
	Path        string
	CreatedAt   time.Time
}
