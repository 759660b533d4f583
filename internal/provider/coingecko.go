package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"
	"time"

	"BTCMonitor/internal/httpx"
	"BTCMonitor/internal/model"
)

// DefaultCoinGeckoURL is the public CoinGecko v3 API endpoint.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// coinGeckoWindow is how far back the free-tier market_chart endpoint
// reaches with daily granularity.
const coinGeckoWindow = 365

// CoinGecko fetches daily prices from the CoinGecko market_chart API.
// Highest fidelity source: carries market cap and volume alongside price,
// but the free tier only covers the trailing year.
type CoinGecko struct {
	client *httpx.Client
}

// NewCoinGecko creates the adapter on top of a resilient client.
func NewCoinGecko(client *httpx.Client) *CoinGecko {
	return &CoinGecko{client: client}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// Coverage is the trailing free-tier window, open-ended at the recent side.
func (c *CoinGecko) Coverage() model.Capability {
	return model.Capability{
		Earliest: model.Day(time.Now()).AddDate(0, 0, -(coinGeckoWindow - 1)),
	}
}

// coinGeckoChart is the market_chart response: arrays of [unix_ms, value].
type coinGeckoChart struct {
	Prices     [][2]float64 `json:"prices"`
	MarketCaps [][2]float64 `json:"market_caps"`
	Volumes    [][2]float64 `json:"total_volumes"`
}

func (c *CoinGecko) FetchDailyPrices(ctx context.Context, start, end time.Time) ([]model.DailyPrice, error) {
	rng, ok := clamp(c.Coverage(), start, end)
	if !ok {
		return nil, nil
	}

	// Free tier only takes a trailing day count, so fetch back to the
	// range start and filter afterwards.
	days := int(model.Day(time.Now()).Sub(rng.Start).Hours()/24) + 1
	if days > coinGeckoWindow {
		days = coinGeckoWindow
	}
	if days < 1 {
		days = 1
	}

	body, err := c.client.Get(ctx, "/coins/bitcoin/market_chart", url.Values{
		"vs_currency": {"usd"},
		"days":        {strconv.Itoa(days)},
		"interval":    {"daily"},
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko market_chart: %w", err)
	}

	var chart coinGeckoChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("coingecko decode: %w", err)
	}

	// Index by date, later points win (the final element is the current
	// moment, replacing the midnight point for today).
	byDate := make(map[string]model.DailyPrice, len(chart.Prices))
	order := make([]string, 0, len(chart.Prices))
	for i, pt := range chart.Prices {
		day := model.Day(time.UnixMilli(int64(pt[0])).UTC())
		if day.Before(rng.Start) || day.After(rng.End) {
			continue
		}
		rec := model.DailyPrice{Date: day, PriceUSD: pt[1]}
		if i < len(chart.MarketCaps) {
			rec.MarketCap = chart.MarketCaps[i][1]
		}
		if i < len(chart.Volumes) {
			rec.Volume = chart.Volumes[i][1]
		}
		key := rec.DateKey()
		if _, seen := byDate[key]; !seen {
			order = append(order, key)
		}
		byDate[key] = rec
	}

	records := make([]model.DailyPrice, 0, len(order))
	for _, key := range order {
		records = append(records, byDate[key])
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })

	log.Printf("[INFO] coingecko: fetched %d days (%s)", len(records), rng)
	return records, nil
}
