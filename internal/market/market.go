// Package market parses option market names and groups markets by expiry.
package market

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"coinmetrics-collector/internal/models"
)

// SettlementHour is the UTC hour at which Deribit options settle.
const SettlementHour = 8

var monthAbbrev = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

var monthName = [13]string{
	"", "JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

// Parse extracts an Instrument from a market name such as
// "deribit-BTC-10APR22-34000-C-option". The expiry date segment uses a
// two-digit day, three-letter month abbreviation and two-digit year,
// always interpreted as 20xx.
func Parse(name string) (models.Instrument, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 6 || parts[5] != "option" {
		return models.Instrument{}, fmt.Errorf("market %q: not an option market name", name)
	}

	expiry, err := parseExpiry(parts[2])
	if err != nil {
		return models.Instrument{}, fmt.Errorf("market %q: %w", name, err)
	}

	strike, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return models.Instrument{}, fmt.Errorf("market %q: invalid strike %q", name, parts[3])
	}

	optType := models.OptionType(parts[4])
	if optType != models.OptionCall && optType != models.OptionPut {
		return models.Instrument{}, fmt.Errorf("market %q: invalid option type %q", name, parts[4])
	}

	return models.Instrument{
		Exchange:   parts[0],
		Base:       parts[1],
		Expiry:     expiry,
		Strike:     strike,
		OptionType: optType,
	}, nil
}

func parseExpiry(s string) (time.Time, error) {
	if len(s) != 7 {
		return time.Time{}, fmt.Errorf("invalid expiry segment %q", s)
	}

	day, err := strconv.Atoi(s[:2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid expiry day in %q", s)
	}

	month, ok := monthAbbrev[s[2:5]]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid expiry month in %q", s)
	}

	yy, err := strconv.Atoi(s[5:7])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry year in %q", s)
	}

	t := time.Date(2000+yy, month, day, SettlementHour, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		// Date normalized away, e.g. 31FEB24.
		return time.Time{}, fmt.Errorf("nonexistent expiry date %q", s)
	}
	return t, nil
}

// Name rebuilds the market name for an instrument.
func Name(inst models.Instrument) string {
	return fmt.Sprintf("%s-%s-%02d%s%02d-%d-%s-option",
		inst.Exchange,
		inst.Base,
		inst.Expiry.Day(),
		monthName[inst.Expiry.Month()],
		inst.Expiry.Year()%100,
		int64(inst.Strike),
		inst.OptionType,
	)
}

// ExpiryGroup is the set of markets settling on the same day.
type ExpiryGroup struct {
	Expiry  time.Time // midnight UTC of the expiry day
	Markets []string
}

// GroupByExpiry filters catalog entries to those whose expiry falls within
// [start, end] and groups the market names by expiry day, sorted ascending.
// Entries whose names cannot be parsed are dropped.
func GroupByExpiry(entries []models.CatalogEntry, start, end time.Time) []ExpiryGroup {
	byDay := make(map[time.Time][]string)
	for _, e := range entries {
		inst, err := Parse(e.Market)
		if err != nil {
			continue
		}
		day := inst.ExpiryDay()
		if day.Before(start) || day.After(end) {
			continue
		}
		byDay[day] = append(byDay[day], e.Market)
	}

	groups := make([]ExpiryGroup, 0, len(byDay))
	for day, markets := range byDay {
		sort.Strings(markets)
		groups = append(groups, ExpiryGroup{Expiry: day, Markets: markets})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Expiry.Before(groups[j].Expiry) })
	return groups
}

// CollectionWindow returns the data collection period for an expiry day:
// it starts daysBefore days ahead of the expiry and ends at the expiry
// day's midnight boundary.
func CollectionWindow(expiryDay time.Time, daysBefore int) (start, end time.Time) {
	end = time.Date(expiryDay.Year(), expiryDay.Month(), expiryDay.Day(), 0, 0, 0, 0, time.UTC)
	start = end.AddDate(0, 0, -daysBefore)
	return start, end
}
