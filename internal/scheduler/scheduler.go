package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"BTCMonitor/internal/backfill"
	"BTCMonitor/internal/model"
	"BTCMonitor/internal/provider"

	"github.com/robfig/cron/v3"
)

// refreshWindowDays is how far back the routine refresh looks. Wide enough
// to heal a few missed runs without a full backfill.
const refreshWindowDays = 7

// Scheduler manages the cron tasks: a frequent refresh of recent prices
// from the primary provider and a nightly gap backfill. Runs are
// serialized; overlapping orchestrator runs against the same storage are
// not consistent.
type Scheduler struct {
	Cron         *cron.Cron
	Orchestrator *backfill.Orchestrator
	Store        backfill.Store
	Providers    []provider.Provider
	StartYear    int
	Ctx          context.Context

	mu sync.Mutex
}

// NewScheduler creates a Scheduler. providers is the same priority-ordered
// list the orchestrator walks; the first entry serves the routine refresh.
func NewScheduler(ctx context.Context, orch *backfill.Orchestrator, st backfill.Store, providers []provider.Provider, startYear int) *Scheduler {
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds()),
		Orchestrator: orch,
		Store:        st,
		Providers:    providers,
		StartYear:    startYear,
		Ctx:          ctx,
	}
}

// RegisterAll registers the refresh and backfill tasks.
func (s *Scheduler) RegisterAll(refreshCron, backfillCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(backfillCron, s.backfillTask); err != nil {
		return fmt.Errorf("register backfill task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunBackfillNow executes the backfill task immediately (manual trigger).
func (s *Scheduler) RunBackfillNow() *model.BackfillResult {
	return s.runBackfill()
}

// refreshTask pulls the trailing week from the primary provider so routine
// operation keeps the recent end of the history complete.
func (s *Scheduler) refreshTask() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Providers) == 0 {
		return
	}
	primary := s.Providers[0]
	end := model.Day(time.Now())
	start := end.AddDate(0, 0, -(refreshWindowDays - 1))

	log.Printf("[INFO] refresh: fetching %s..%s from %s",
		start.Format(model.DateLayout), end.Format(model.DateLayout), primary.Name())

	records, err := primary.FetchDailyPrices(s.Ctx, start, end)
	if err != nil {
		log.Printf("[ERROR] refresh fetch: %v", err)
		return
	}
	valid := backfill.Validate(records)
	if len(valid) == 0 {
		log.Println("[WARN] refresh: no valid records")
		return
	}
	if err := s.Store.UpsertPrices(valid); err != nil {
		log.Printf("[ERROR] refresh persist: %v", err)
		return
	}
	log.Printf("[INFO] refresh: upserted %d records", len(valid))
}

func (s *Scheduler) backfillTask() {
	result := s.runBackfill()
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			log.Printf("[WARN] backfill error: %s", e)
		}
	}
}

func (s *Scheduler) runBackfill() *model.BackfillResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := model.DateRange{
		Start: time.Date(s.StartYear, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   model.Day(time.Now()),
	}
	log.Printf("[INFO] running scheduled backfill for %s", target)
	return s.Orchestrator.Run(s.Ctx, target, nil)
}
