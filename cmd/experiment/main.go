package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/gstat-gcloud/covid19-sim/internal/config"
	"github.com/gstat-gcloud/covid19-sim/internal/olg"
	"github.com/gstat-gcloud/covid19-sim/internal/storage"
)

func main() {
	configPath := pflag.String("config", "configs/config.yaml", "Path to configuration file")
	holdout := pflag.Int("holdout", 7, "Number of most recent days held out for scoring")
	taus := pflag.IntSlice("tau", []int{5, 7, 10, 14}, "Generation intervals to test")
	pflag.Parse()

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Println("OLG BACKTEST EXPERIMENT - Generation Interval and Recurrence")
	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Println()

	// Step 1: Load observed series
	fmt.Println("STEP 1: Loading observed series...")
	fmt.Println(strings.Repeat("-", 80))
	groups, err := store.GetGroups()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list groups: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d groups\n", len(groups))

	// Step 2: Backtest every variant on every group
	fmt.Printf("\nSTEP 2: Backtesting with the last %d days held out...\n", *holdout)
	fmt.Println(strings.Repeat("-", 80))
	var variants []Variant
	for _, tau := range *taus {
		for _, rec := range []olg.Recurrence{olg.RecurrenceGenerational, olg.RecurrenceLagged} {
			variants = append(variants, Variant{Tau: tau, Recurrence: rec})
		}
	}

	base := cfg.OLG.Params()
	var results []Backtest
	for _, g := range groups {
		obs, err := store.GetObservations(g)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", g, err)
			continue
		}
		gp := base
		gp.InitInfected = cfg.OLG.ThresholdFor(g)
		for _, v := range variants {
			results = append(results, backtest(g, obs, gp, v, *holdout))
		}
	}
	for _, v := range variants {
		printBacktests(v, results)
	}

	// Step 3: Rank variants
	fmt.Println("\nSTEP 3: Ranking variants...")
	fmt.Println(strings.Repeat("-", 80))
	stats := aggregate(results)
	printRanking(stats)
	printRecommendation(stats)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("EXPERIMENT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
}
