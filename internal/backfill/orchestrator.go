package backfill

import (
	"context"
	"log"
	"time"

	"BTCMonitor/internal/model"
	"BTCMonitor/internal/provider"

	"github.com/google/uuid"
)

// Store is the narrow persistence contract the orchestrator consumes.
// Writes are insert-or-replace by date and idempotent.
type Store interface {
	Dates(r model.DateRange) (map[string]struct{}, error)
	UpsertPrices(records []model.DailyPrice) error
	Coverage() (model.DateRange, error)
}

// ProgressFunc is invoked after each gap/provider step with the records
// added so far and the total days in the target range.
type ProgressFunc func(recordsAdded, totalDays int)

// Orchestrator fills gaps in persisted price history by walking providers
// in priority order. It holds no state between runs; re-runs are idempotent
// because all resume state lives in the persisted records.
type Orchestrator struct {
	store      Store
	providers  []provider.Provider
	minGapDays int
}

// NewOrchestrator creates an orchestrator over providers in priority order
// (highest fidelity first). minGapDays <= 0 selects the default threshold.
func NewOrchestrator(store Store, providers []provider.Provider, minGapDays int) *Orchestrator {
	if minGapDays < 1 {
		minGapDays = DefaultMinGapDays
	}
	return &Orchestrator{store: store, providers: providers, minGapDays: minGapDays}
}

// Run backfills the target range and returns a report. It never returns an
// error: provider and storage failures are collected as tagged messages on
// the result, and total failure shows up as zero records added with the
// original gaps still remaining. progress may be nil.
func (o *Orchestrator) Run(ctx context.Context, target model.DateRange, progress ProgressFunc) *model.BackfillResult {
	result := &model.BackfillResult{RunID: uuid.NewString()}
	target = model.NewDateRange(target.Start, target.End)
	totalDays := target.Days()
	today := model.Day(time.Now())

	log.Printf("[INFO] backfill %s: target %s (%d days)", result.RunID, target, totalDays)

	existing, err := o.store.Dates(target)
	if err != nil {
		result.Errors = append(result.Errors, model.ProviderError{
			Provider: "store", Gap: target, Message: "read persisted dates: " + err.Error(),
		})
		return result
	}
	log.Printf("[INFO] backfill %s: %d existing records in range", result.RunID, len(existing))

	gaps := FindGaps(target.Start, target.End, existing, o.minGapDays)
	if len(gaps) == 0 {
		log.Printf("[INFO] backfill %s: no gaps, history is complete", result.RunID)
		o.finish(result, target, existing)
		return result
	}
	log.Printf("[INFO] backfill %s: %d gaps to fill", result.RunID, len(gaps))

	for _, p := range o.providers {
		if ctx.Err() != nil {
			log.Printf("[WARN] backfill %s: cancelled, skipping remaining providers", result.RunID)
			break
		}
		if len(gaps) == 0 {
			break
		}
		coverage := p.Coverage().Range(today)

		for _, gap := range gaps {
			if ctx.Err() != nil {
				break
			}
			sub, ok := gap.Intersect(coverage)
			if !ok {
				continue // provider doesn't cover these dates; not an error
			}

			records, err := p.FetchDailyPrices(ctx, sub.Start, sub.End)
			if err != nil {
				log.Printf("[WARN] backfill %s: %s failed on %s: %v", result.RunID, p.Name(), sub, err)
				result.Errors = append(result.Errors, model.ProviderError{
					Provider: p.Name(), Gap: sub, Message: err.Error(),
				})
				continue // one source outage never aborts the run
			}

			// Drop dates an earlier (higher-priority) provider or a previous
			// run already filled: priority wins over recency across sources.
			fresh := records[:0:0]
			for _, r := range records {
				if _, have := existing[r.DateKey()]; !have {
					fresh = append(fresh, r)
				}
			}

			valid := Validate(fresh)
			if len(valid) > 0 {
				if err := o.store.UpsertPrices(valid); err != nil {
					result.Errors = append(result.Errors, model.ProviderError{
						Provider: p.Name(), Gap: sub, Message: "persist: " + err.Error(),
					})
					continue
				}
				result.RecordsAdded += len(valid)
				for _, r := range valid {
					existing[r.DateKey()] = struct{}{}
				}
				if !contains(result.ProvidersUsed, p.Name()) {
					result.ProvidersUsed = append(result.ProvidersUsed, p.Name())
				}
			}

			if progress != nil {
				progress(result.RecordsAdded, totalDays)
			}
		}

		// Later providers only see what's still missing after this merge.
		gaps = FindGaps(target.Start, target.End, existing, o.minGapDays)
	}

	o.finish(result, target, existing)
	log.Printf("[INFO] backfill %s: added %d records, %d gaps remaining, %d errors",
		result.RunID, result.RecordsAdded, len(result.GapsRemaining), len(result.Errors))
	return result
}

// finish reconciles the result against the final persisted state.
func (o *Orchestrator) finish(result *model.BackfillResult, target model.DateRange, existing map[string]struct{}) {
	// Re-read from storage; the in-memory set is the fallback if that fails.
	if persisted, err := o.store.Dates(target); err == nil {
		existing = persisted
	}
	result.GapsRemaining = FindGaps(target.Start, target.End, existing, o.minGapDays)
	cov, err := o.store.Coverage()
	if err != nil {
		result.Errors = append(result.Errors, model.ProviderError{
			Provider: "store", Gap: target, Message: "read coverage: " + err.Error(),
		})
		return
	}
	result.CoveredRange = cov
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
