package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BTCMonitor/internal/backfill"
	"BTCMonitor/internal/cache"
	"BTCMonitor/internal/config"
	"BTCMonitor/internal/httpx"
	"BTCMonitor/internal/model"
	"BTCMonitor/internal/provider"
	"BTCMonitor/internal/ratelimit"
	"BTCMonitor/internal/scheduler"
	"BTCMonitor/internal/store"

	"github.com/dustin/go-humanize"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var (
		runBackfill = flag.Bool("backfill", false, "run a one-shot backfill and exit")
		runCheck    = flag.Bool("check", false, "probe all providers and exit")
		runStats    = flag.Bool("stats", false, "print storage stats and exit")
	)
	flag.Parse()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	st, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()

	providers := buildProviders(cfg)
	if len(providers) == 0 {
		log.Fatalf("[FATAL] no providers enabled")
	}
	for _, p := range providers {
		log.Printf("[INFO] provider registered: %s", p.Name())
	}

	orch := backfill.NewOrchestrator(st, providers, cfg.Backfill.MinGapDays)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch {
	case *runCheck:
		checkProviders(ctx, providers)
		return
	case *runStats:
		printStats(st)
		return
	case *runBackfill:
		target := model.DateRange{
			Start: time.Date(cfg.Backfill.StartYear, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   model.Day(time.Now()),
		}
		result := orch.Run(ctx, target, printProgress)
		fmt.Println()
		printResult(result)
		return
	}

	// Daemon mode: cron-driven refresh + nightly backfill.
	sched := scheduler.NewScheduler(ctx, orch, st, providers, cfg.Backfill.StartYear)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.BackfillCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing backfill now")
		go func() { printResult(sched.RunBackfillNow()) }()
	}

	log.Println("[INFO] BTCMonitor is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] BTCMonitor stopped")
}

// buildProviders assembles the waterfall in priority order: CoinGecko
// (recent, highest fidelity), then Yahoo (long range), then the bundled
// seed CSV for the earliest era.
func buildProviders(cfg *config.Config) []provider.Provider {
	var providers []provider.Provider

	if cfg.Providers.CoinGecko.Enabled {
		client := httpx.New(
			cfg.Providers.CoinGecko.BaseURL,
			ratelimit.New(cfg.Providers.CoinGecko.RateLimitPerMinute),
			cache.New(),
			httpx.Options{
				Timeout:    time.Duration(cfg.HTTP.TimeoutSec) * time.Second,
				MaxRetries: cfg.HTTP.MaxRetries,
				CacheTTL:   time.Duration(cfg.Providers.CoinGecko.CacheTTLSec) * time.Second,
			})
		providers = append(providers, provider.NewCoinGecko(client))
	}
	if cfg.Providers.Yahoo.Enabled {
		client := httpx.New(
			cfg.Providers.Yahoo.BaseURL,
			ratelimit.New(cfg.Providers.Yahoo.RateLimitPerMinute),
			cache.New(),
			httpx.Options{
				Timeout:    time.Duration(cfg.HTTP.TimeoutSec) * time.Second,
				MaxRetries: cfg.HTTP.MaxRetries,
				CacheTTL:   time.Duration(cfg.Providers.Yahoo.CacheTTLSec) * time.Second,
			})
		providers = append(providers, provider.NewYahoo(client))
	}
	if cfg.Providers.SeedCSVPath != "" {
		providers = append(providers, provider.NewSeed(cfg.Providers.SeedCSVPath))
	}
	return providers
}

func checkProviders(ctx context.Context, providers []provider.Provider) {
	for _, status := range provider.CheckAll(ctx, providers) {
		state := "FAIL"
		if status.OK {
			state = "ok"
		}
		latest := status.LatestDate
		if latest == "" {
			latest = "-"
		}
		fmt.Printf("%-12s %-4s latest=%s latency=%dms detail=%s\n",
			status.Provider, state, latest, status.Latency.Milliseconds(), status.Detail)
	}
}

func printStats(st *store.SQLiteStore) {
	n, err := st.Count()
	if err != nil {
		log.Fatalf("[FATAL] read stats: %v", err)
	}
	cov, err := st.Coverage()
	if err != nil {
		log.Fatalf("[FATAL] read coverage: %v", err)
	}
	fmt.Printf("records:  %s\n", humanize.Comma(int64(n)))
	if cov.IsZero() {
		fmt.Println("coverage: empty")
		return
	}
	fmt.Printf("coverage: %s (%s days)\n", cov, humanize.Comma(int64(cov.Days())))
}

func printProgress(added, totalDays int) {
	fmt.Printf("\rbackfilled %s records (target range %s days)",
		humanize.Comma(int64(added)), humanize.Comma(int64(totalDays)))
}

func printResult(r *model.BackfillResult) {
	fmt.Printf("run %s: added %s records\n", r.RunID, humanize.Comma(int64(r.RecordsAdded)))
	if !r.CoveredRange.IsZero() {
		fmt.Printf("coverage now %s\n", r.CoveredRange)
	}
	if len(r.ProvidersUsed) > 0 {
		fmt.Printf("providers used: %v\n", r.ProvidersUsed)
	}
	for _, gap := range r.GapsRemaining {
		fmt.Printf("gap remaining: %s\n", gap)
	}
	for _, e := range r.Errors {
		fmt.Printf("error: %s\n", e)
	}
}
