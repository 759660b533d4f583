package backfill

import (
	"log"
	"sort"

	"BTCMonitor/internal/model"
)

// maxSanePrice guards against corrupted provider payloads.
const maxSanePrice = 10_000_000

// Validate filters a batch of candidate records down to the ones safe to
// persist. Rules, in order: drop prices outside (0, 10M); drop records with
// a missing date; deduplicate by date, keeping the last occurrence in input
// order. A rejected record is fully excluded, never patched. Output is
// sorted by date.
func Validate(records []model.DailyPrice) []model.DailyPrice {
	byDate := make(map[string]model.DailyPrice, len(records))
	for _, r := range records {
		if r.PriceUSD <= 0 || r.PriceUSD >= maxSanePrice {
			log.Printf("[WARN] skipping invalid price: %s = $%.2f", r.DateKey(), r.PriceUSD)
			continue
		}
		if r.Date.IsZero() {
			log.Printf("[WARN] skipping record with missing date (price $%.2f)", r.PriceUSD)
			continue
		}
		byDate[r.DateKey()] = r
	}

	out := make([]model.DailyPrice, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
