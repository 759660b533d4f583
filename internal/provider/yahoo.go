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

// DefaultYahooURL is the Yahoo Finance v8 chart API endpoint.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

const yahooTicker = "BTC-USD"

// yahooEarliest is the first day Yahoo has BTC-USD data for.
var yahooEarliest = time.Date(2014, 9, 17, 0, 0, 0, 0, time.UTC)

// Yahoo fetches daily BTC-USD closes from the Yahoo Finance chart API.
// Long-range source: 2014-09-17 onward, no API key required.
type Yahoo struct {
	client *httpx.Client
}

// NewYahoo creates the adapter on top of a resilient client.
func NewYahoo(client *httpx.Client) *Yahoo {
	return &Yahoo{client: client}
}

func (y *Yahoo) Name() string { return "yahoo" }

func (y *Yahoo) Coverage() model.Capability {
	return model.Capability{Earliest: yahooEarliest}
}

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) FetchDailyPrices(ctx context.Context, start, end time.Time) ([]model.DailyPrice, error) {
	rng, ok := clamp(y.Coverage(), start, end)
	if !ok {
		return nil, nil
	}

	// period2 is exclusive, push it one day past the range end.
	body, err := y.client.Get(ctx, "/v8/finance/chart/"+yahooTicker, url.Values{
		"period1":  {strconv.FormatInt(rng.Start.Unix(), 10)},
		"period2":  {strconv.FormatInt(rng.End.AddDate(0, 0, 1).Unix(), 10)},
		"interval": {"1d"},
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo chart: %w", err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	records := make([]model.DailyPrice, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // null bars (holidays etc.)
		}
		day := model.Day(time.Unix(ts, 0).UTC())
		if day.Before(rng.Start) || day.After(rng.End) {
			continue
		}
		rec := model.DailyPrice{Date: day, PriceUSD: *quote.Close[i]}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			rec.Volume = *quote.Volume[i]
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })

	log.Printf("[INFO] yahoo: fetched %d days (%s)", len(records), rng)
	return records, nil
}
