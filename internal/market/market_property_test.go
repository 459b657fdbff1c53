package market

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"coinmetrics-collector/internal/models"
)

// Property: For any valid instrument, building the market name and parsing
// it back should produce an equivalent instrument (round-trip consistency).
func TestProperty_MarketNameRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	optionTypeGen := gen.OneConstOf(models.OptionCall, models.OptionPut)

	properties.Property("Name then Parse produces the same instrument", prop.ForAll(
		func(year, month, day, strike int, optType models.OptionType) bool {
			expiry := time.Date(year, time.Month(month), 1, SettlementHour, 0, 0, 0, time.UTC)
			// Clamp the day to the month's length so the date stays valid.
			lastDay := expiry.AddDate(0, 1, -1).Day()
			if day > lastDay {
				day = lastDay
			}
			expiry = time.Date(year, time.Month(month), day, SettlementHour, 0, 0, 0, time.UTC)

			inst := models.Instrument{
				Exchange:   "deribit",
				Base:       "BTC",
				Expiry:     expiry,
				Strike:     float64(strike),
				OptionType: optType,
			}

			parsed, err := Parse(Name(inst))
			if err != nil {
				t.Logf("Parse failed for %s: %v", Name(inst), err)
				return false
			}
			return parsed == inst
		},
		gen.IntRange(2020, 2099),
		gen.IntRange(1, 12),
		gen.IntRange(1, 31),
		gen.IntRange(1000, 500000),
		optionTypeGen,
	))

	properties.Property("Parsed expiry settles at 08:00 UTC", prop.ForAll(
		func(year, month, day int) bool {
			expiry := time.Date(year, time.Month(month), 1, SettlementHour, 0, 0, 0, time.UTC)
			lastDay := expiry.AddDate(0, 1, -1).Day()
			if day > lastDay {
				day = lastDay
			}
			expiry = time.Date(year, time.Month(month), day, SettlementHour, 0, 0, 0, time.UTC)

			inst := models.Instrument{
				Exchange:   "deribit",
				Base:       "BTC",
				Expiry:     expiry,
				Strike:     50000,
				OptionType: models.OptionCall,
			}

			parsed, err := Parse(Name(inst))
			if err != nil {
				return false
			}
			return parsed.Expiry.Hour() == SettlementHour && parsed.Expiry.Location() == time.UTC
		},
		gen.IntRange(2020, 2099),
		gen.IntRange(1, 12),
		gen.IntRange(1, 31),
	))

	properties.TestingRun(t)
}
