package provider

import (
	"context"
	"time"

	"BTCMonitor/internal/model"

	"golang.org/x/sync/errgroup"
)

// HealthStatus is the outcome of probing one provider.
type HealthStatus struct {
	Provider   string
	OK         bool
	Detail     string
	LatestDate string
	Latency    time.Duration
}

// CheckAll probes every provider concurrently by fetching its trailing
// five days of coverage. A provider whose coverage ended long ago (the
// bundled seed) is healthy as long as the read succeeds.
func CheckAll(ctx context.Context, providers []Provider) []HealthStatus {
	statuses := make([]HealthStatus, len(providers))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			statuses[i] = check(ctx, p)
			return nil
		})
	}
	g.Wait()
	return statuses
}

func check(ctx context.Context, p Provider) HealthStatus {
	status := HealthStatus{Provider: p.Name()}

	end := p.Coverage().Range(model.Day(time.Now())).End
	start := end.AddDate(0, 0, -4)

	began := time.Now()
	records, err := p.FetchDailyPrices(ctx, start, end)
	status.Latency = time.Since(began)

	switch {
	case err != nil:
		status.Detail = err.Error()
	case len(records) == 0:
		status.OK = true
		status.Detail = "no data in probe window"
	default:
		status.OK = true
		status.Detail = "ok"
		status.LatestDate = records[len(records)-1].DateKey()
	}
	return status
}
