package provider

import (
	"context"
	"time"

	"BTCMonitor/internal/model"
)

// Provider is one source of daily Bitcoin price history.
type Provider interface {
	Name() string

	// Coverage reports the span of dates this source can answer for.
	Coverage() model.Capability

	// FetchDailyPrices returns records for [start, end], clamped internally
	// to the source's coverage. An empty clamped range returns an empty
	// slice and no error; a transport failure returns (nil, err).
	FetchDailyPrices(ctx context.Context, start, end time.Time) ([]model.DailyPrice, error)
}

// clamp intersects the requested range with a capability. ok is false when
// the request is invalid or entirely outside coverage, so nothing to fetch.
func clamp(c model.Capability, start, end time.Time) (model.DateRange, bool) {
	req := model.NewDateRange(start, end)
	if req.End.Before(req.Start) {
		return model.DateRange{}, false
	}
	return req.Intersect(c.Range(model.Day(time.Now())))
}
