package provider

import (
	"context"
	"time"

	"BTCMonitor/internal/model"
)

// Mock returns controllable fixed data for development and testing.
type Mock struct {
	Source  string
	Cap     model.Capability
	Records []model.DailyPrice
	Err     error

	// Calls counts FetchDailyPrices invocations that reached this source.
	Calls int
}

func (m *Mock) Name() string { return m.Source }

func (m *Mock) Coverage() model.Capability { return m.Cap }

// FetchDailyPrices returns the configured records that fall inside the
// clamped range, or the configured error.
func (m *Mock) FetchDailyPrices(_ context.Context, start, end time.Time) ([]model.DailyPrice, error) {
	rng, ok := clamp(m.Cap, start, end)
	if !ok {
		return nil, nil
	}
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.DailyPrice
	for _, r := range m.Records {
		if r.Date.Before(rng.Start) || r.Date.After(rng.End) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// GenerateDays builds one record per day from start for n days, with a
// slowly drifting price. Useful for mock data and tests.
func GenerateDays(start time.Time, n int, basePrice float64) []model.DailyPrice {
	records := make([]model.DailyPrice, n)
	for i := 0; i < n; i++ {
		records[i] = model.DailyPrice{
			Date:     model.Day(start).AddDate(0, 0, i),
			PriceUSD: basePrice * (1 + float64(i)*0.001),
			Volume:   1000000,
		}
	}
	return records
}
