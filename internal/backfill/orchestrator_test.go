package backfill

import (
	"context"
	"errors"
	"testing"

	"BTCMonitor/internal/model"
	"BTCMonitor/internal/provider"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	records   map[string]model.DailyPrice
	datesErr  error
	upsertErr error
}

func newMemStore(dates ...string) *memStore {
	s := &memStore{records: make(map[string]model.DailyPrice)}
	for _, d := range dates {
		s.records[d] = model.DailyPrice{Date: day(d), PriceUSD: 40000}
	}
	return s
}

func (s *memStore) Dates(r model.DateRange) (map[string]struct{}, error) {
	if s.datesErr != nil {
		return nil, s.datesErr
	}
	set := make(map[string]struct{})
	for key, rec := range s.records {
		if !rec.Date.Before(r.Start) && !rec.Date.After(r.End) {
			set[key] = struct{}{}
		}
	}
	return set, nil
}

func (s *memStore) UpsertPrices(records []model.DailyPrice) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, r := range records {
		s.records[r.DateKey()] = r
	}
	return nil
}

func (s *memStore) Coverage() (model.DateRange, error) {
	var cov model.DateRange
	for _, rec := range s.records {
		if cov.Start.IsZero() || rec.Date.Before(cov.Start) {
			cov.Start = rec.Date
		}
		if rec.Date.After(cov.End) {
			cov.End = rec.Date
		}
	}
	return cov, nil
}

func rangeOf(start, end string) model.DateRange {
	return model.DateRange{Start: day(start), End: day(end)}
}

func janCap(start, end string) model.Capability {
	return model.Capability{Earliest: day(start), Latest: day(end)}
}

func TestRun_WaterfallFillsGap(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-10")
	provA := &provider.Mock{
		Source:  "provider-a",
		Cap:     janCap("2024-01-01", "2024-01-05"),
		Records: provider.GenerateDays(day("2024-01-01"), 5, 42000),
	}
	provB := &provider.Mock{
		Source:  "provider-b",
		Cap:     janCap("2024-01-01", "2024-12-31"),
		Records: provider.GenerateDays(day("2024-01-01"), 31, 43000),
	}

	o := NewOrchestrator(store, []provider.Provider{provA, provB}, 3)
	result := o.Run(context.Background(), rangeOf("2024-01-01", "2024-01-10"), nil)

	if result.RecordsAdded != 8 {
		t.Errorf("RecordsAdded = %d, want 8", result.RecordsAdded)
	}
	for d := day("2024-01-02"); !d.After(day("2024-01-09")); d = d.AddDate(0, 0, 1) {
		if _, ok := store.records[d.Format(model.DateLayout)]; !ok {
			t.Errorf("date %s not persisted", d.Format(model.DateLayout))
		}
	}
	if len(result.ProvidersUsed) != 2 || result.ProvidersUsed[0] != "provider-a" || result.ProvidersUsed[1] != "provider-b" {
		t.Errorf("ProvidersUsed = %v, want [provider-a provider-b]", result.ProvidersUsed)
	}
	if len(result.GapsRemaining) != 0 {
		t.Errorf("GapsRemaining = %v, want none", result.GapsRemaining)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if result.RunID == "" {
		t.Error("expected a run ID")
	}
}

func TestRun_PartialOutage(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-10")
	provA := &provider.Mock{
		Source:  "provider-a",
		Cap:     janCap("2024-01-01", "2024-01-05"),
		Records: provider.GenerateDays(day("2024-01-01"), 5, 42000),
	}
	provB := &provider.Mock{
		Source: "provider-b",
		Cap:    janCap("2024-01-01", "2024-12-31"),
		Err:    errors.New("connection refused"),
	}

	o := NewOrchestrator(store, []provider.Provider{provA, provB}, 3)
	result := o.Run(context.Background(), rangeOf("2024-01-01", "2024-01-10"), nil)

	if result.RecordsAdded != 4 {
		t.Errorf("RecordsAdded = %d, want 4 (provider A only)", result.RecordsAdded)
	}
	if len(result.GapsRemaining) != 1 {
		t.Fatalf("GapsRemaining = %v, want one range", result.GapsRemaining)
	}
	remaining := result.GapsRemaining[0]
	if !remaining.Start.Equal(day("2024-01-06")) || !remaining.End.Equal(day("2024-01-09")) {
		t.Errorf("remaining gap = %s, want 2024-01-06..2024-01-09", remaining)
	}
	if len(result.Errors) != 1 || result.Errors[0].Provider != "provider-b" {
		t.Errorf("Errors = %v, want one tagged provider-b", result.Errors)
	}
	if len(result.ProvidersUsed) != 1 || result.ProvidersUsed[0] != "provider-a" {
		t.Errorf("ProvidersUsed = %v, want [provider-a]", result.ProvidersUsed)
	}
}

func TestRun_Idempotent(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-10")
	prov := &provider.Mock{
		Source:  "provider-a",
		Cap:     janCap("2024-01-01", "2024-12-31"),
		Records: provider.GenerateDays(day("2024-01-01"), 31, 42000),
	}

	o := NewOrchestrator(store, []provider.Provider{prov}, 3)
	target := rangeOf("2024-01-01", "2024-01-10")

	first := o.Run(context.Background(), target, nil)
	if first.RecordsAdded != 8 {
		t.Fatalf("first run added %d, want 8", first.RecordsAdded)
	}

	second := o.Run(context.Background(), target, nil)
	if second.RecordsAdded != 0 {
		t.Errorf("second run added %d, want 0", second.RecordsAdded)
	}
	if len(second.GapsRemaining) != len(first.GapsRemaining) {
		t.Errorf("gaps changed between runs: %v vs %v", first.GapsRemaining, second.GapsRemaining)
	}
	if second.RunID == first.RunID {
		t.Error("expected distinct run IDs")
	}
}

func TestRun_NoGapsSkipsProviders(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-02", "2024-01-03")
	prov := &provider.Mock{Source: "provider-a", Cap: janCap("2024-01-01", "2024-12-31")}

	o := NewOrchestrator(store, []provider.Provider{prov}, 3)
	result := o.Run(context.Background(), rangeOf("2024-01-01", "2024-01-03"), nil)

	if result.RecordsAdded != 0 || len(result.GapsRemaining) != 0 {
		t.Errorf("expected trivial result, got %+v", result)
	}
	if prov.Calls != 0 {
		t.Errorf("provider called %d times for a complete range", prov.Calls)
	}
}

func TestRun_ProviderOutOfRangeIsNotAnError(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-10")
	old := &provider.Mock{Source: "ancient", Cap: janCap("2013-01-01", "2014-09-16")}

	o := NewOrchestrator(store, []provider.Provider{old}, 3)
	result := o.Run(context.Background(), rangeOf("2024-01-01", "2024-01-10"), nil)

	if old.Calls != 0 {
		t.Errorf("out-of-coverage provider was called %d times", old.Calls)
	}
	if len(result.Errors) != 0 {
		t.Errorf("coverage miss recorded as error: %v", result.Errors)
	}
	if len(result.GapsRemaining) != 1 {
		t.Errorf("GapsRemaining = %v, want the untouched gap", result.GapsRemaining)
	}
}

func TestRun_AllProvidersDown(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-10")
	provA := &provider.Mock{Source: "a", Cap: janCap("2024-01-01", "2024-12-31"), Err: errors.New("boom")}
	provB := &provider.Mock{Source: "b", Cap: janCap("2024-01-01", "2024-12-31"), Err: errors.New("bang")}

	o := NewOrchestrator(store, []provider.Provider{provA, provB}, 3)
	result := o.Run(context.Background(), rangeOf("2024-01-01", "2024-01-10"), nil)

	if result.RecordsAdded != 0 {
		t.Errorf("RecordsAdded = %d, want 0", result.RecordsAdded)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Errors = %v, want one per provider", result.Errors)
	}
	if len(result.GapsRemaining) != 1 {
		t.Errorf("GapsRemaining = %v, want original gap", result.GapsRemaining)
	}
}

func TestRun_PersistFailureTagged(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-10")
	store.upsertErr = errors.New("disk full")
	prov := &provider.Mock{
		Source:  "provider-a",
		Cap:     janCap("2024-01-01", "2024-12-31"),
		Records: provider.GenerateDays(day("2024-01-01"), 31, 42000),
	}

	o := NewOrchestrator(store, []provider.Provider{prov}, 3)
	result := o.Run(context.Background(), rangeOf("2024-01-01", "2024-01-10"), nil)

	if result.RecordsAdded != 0 {
		t.Errorf("RecordsAdded = %d, want 0", result.RecordsAdded)
	}
	if len(result.Errors) != 1 || result.Errors[0].Provider != "provider-a" {
		t.Errorf("Errors = %v, want one persist failure tagged provider-a", result.Errors)
	}
}

func TestRun_ProgressCallback(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-10")
	prov := &provider.Mock{
		Source:  "provider-a",
		Cap:     janCap("2024-01-01", "2024-12-31"),
		Records: provider.GenerateDays(day("2024-01-01"), 31, 42000),
	}

	var calls int
	var lastAdded, lastTotal int
	o := NewOrchestrator(store, []provider.Provider{prov}, 3)
	o.Run(context.Background(), rangeOf("2024-01-01", "2024-01-10"), func(added, total int) {
		calls++
		lastAdded, lastTotal = added, total
	})

	if calls == 0 {
		t.Fatal("progress callback never invoked")
	}
	if lastAdded != 8 || lastTotal != 10 {
		t.Errorf("last progress = (%d, %d), want (8, 10)", lastAdded, lastTotal)
	}
}

func TestRun_CancelledBeforeFetch(t *testing.T) {
	store := newMemStore("2024-01-01", "2024-01-10")
	prov := &provider.Mock{
		Source:  "provider-a",
		Cap:     janCap("2024-01-01", "2024-12-31"),
		Records: provider.GenerateDays(day("2024-01-01"), 31, 42000),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(store, []provider.Provider{prov}, 3)
	result := o.Run(ctx, rangeOf("2024-01-01", "2024-01-10"), nil)

	if prov.Calls != 0 {
		t.Errorf("provider called %d times after cancellation", prov.Calls)
	}
	if result.RecordsAdded != 0 || len(result.GapsRemaining) != 1 {
		t.Errorf("expected untouched result after cancellation, got %+v", result)
	}
}

func TestRun_StoreReadFailure(t *testing.T) {
	store := newMemStore()
	store.datesErr = errors.New("database locked")
	prov := &provider.Mock{Source: "provider-a", Cap: janCap("2024-01-01", "2024-12-31")}

	o := NewOrchestrator(store, []provider.Provider{prov}, 3)
	result := o.Run(context.Background(), rangeOf("2024-01-01", "2024-01-10"), nil)

	if result == nil {
		t.Fatal("Run must always return a result")
	}
	if len(result.Errors) != 1 || result.Errors[0].Provider != "store" {
		t.Errorf("Errors = %v, want one tagged store", result.Errors)
	}
}
