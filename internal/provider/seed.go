package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"BTCMonitor/internal/model"
)

// Seed reads the bundled CSV of early Bitcoin prices, covering the era
// before Yahoo Finance data begins. No network dependency; always
// available for its supported range.
type Seed struct {
	Path string
}

var (
	seedEarliest = time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	seedLatest   = time.Date(2014, 9, 16, 0, 0, 0, 0, time.UTC)
)

// NewSeed creates a seed provider reading from csvPath.
func NewSeed(csvPath string) *Seed {
	return &Seed{Path: csvPath}
}

func (s *Seed) Name() string { return "seed-csv" }

func (s *Seed) Coverage() model.Capability {
	return model.Capability{Earliest: seedEarliest, Latest: seedLatest}
}

// FetchDailyPrices reads the seed file filtered to [start, end].
// Expected columns: date, price_usd, volume (header row required).
func (s *Seed) FetchDailyPrices(_ context.Context, start, end time.Time) ([]model.DailyPrice, error) {
	rng, ok := clamp(s.Coverage(), start, end)
	if !ok {
		return nil, nil
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open seed csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read seed header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"date", "price_usd"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("seed csv missing %q column", required)
		}
	}

	var records []model.DailyPrice
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed row: %w", err)
		}

		day, err := model.ParseDate(row[col["date"]])
		if err != nil {
			continue // malformed row, skip
		}
		if day.Before(rng.Start) || day.After(rng.End) {
			continue
		}
		price, err := strconv.ParseFloat(row[col["price_usd"]], 64)
		if err != nil || price <= 0 {
			continue
		}

		rec := model.DailyPrice{Date: day, PriceUSD: price}
		if vi, ok := col["volume"]; ok && vi < len(row) {
			if vol, err := strconv.ParseFloat(row[vi], 64); err == nil {
				rec.Volume = vol
			}
		}
		records = append(records, rec)
	}

	log.Printf("[INFO] seed-csv: read %d records (%s)", len(records), rng)
	return records, nil
}
