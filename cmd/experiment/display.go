package main

import (
	"fmt"
	"strings"
)

// printBacktests displays per-group results for one variant
func printBacktests(v Variant, results []Backtest) {
	fmt.Printf("\n  Variant: tau=%d recurrence=%s\n", v.Tau, v.Recurrence)
	for _, bt := range results {
		if bt.Variant != v {
			continue
		}
		if bt.Err != nil {
			fmt.Printf("    %-20s failed: %v\n", bt.Group, bt.Err)
			continue
		}
		fmt.Printf("    %-20s R0D=%8.4f  MAPE=%7.2f%%\n", bt.Group, bt.R0D, bt.MAPE)
	}
}

// printRanking displays variants ordered by mean error
func printRanking(stats []VariantStats) {
	fmt.Printf("\n  %-4s %-5s %-14s %8s %8s %10s %10s\n", "RANK", "TAU", "RECURRENCE", "GROUPS", "FAILED", "MEAN MAPE", "MEAN R0D")
	fmt.Println("  " + strings.Repeat("-", 66))
	for i, s := range stats {
		mape := "n/a"
		r0d := "n/a"
		if s.Groups > 0 {
			mape = fmt.Sprintf("%.2f%%", s.MeanMAPE)
			r0d = fmt.Sprintf("%.4f", s.MeanR0D)
		}
		fmt.Printf("  %-4d %-5d %-14s %8d %8d %10s %10s\n", i+1, s.Variant.Tau, s.Variant.Recurrence, s.Groups, s.Failures, mape, r0d)
	}
}

// printRecommendation displays the best variant
func printRecommendation(stats []VariantStats) {
	if len(stats) == 0 || stats[0].Groups == 0 {
		fmt.Println("\nNo variant produced a usable forecast; collect more history.")
		return
	}
	best := stats[0]
	fmt.Println("\nRecommended configuration:")
	fmt.Printf("  olg:\n    tau: %d\n    recurrence: %s\n", best.Variant.Tau, best.Variant.Recurrence)
	fmt.Printf("  (mean error %.2f%% over %d groups)\n", best.MeanMAPE, best.Groups)
}
