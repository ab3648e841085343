package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/storage"
)

func main() {
	dbPath := pflag.String("db", "./data/epiforecast.db", "Path to the forecast database")
	model := pflag.String("model", "", "Only show runs of this model (sir, seiar, olg)")
	limit := pflag.Int("limit", 20, "Number of recent runs to show")
	series := pflag.String("series", "r", "Series to print for the newest run of each OLG group")
	pflag.Parse()

	store, err := storage.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Println("FORECAST RUN ANALYSIS")
	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Println()

	// Step 1: Observation coverage
	fmt.Println("STEP 1: Observation coverage per group...")
	fmt.Println(strings.Repeat("-", 80))
	if err := printCoverage(store); err != nil {
		fmt.Fprintf(os.Stderr, "failed to analyze observations: %v\n", err)
		os.Exit(1)
	}

	// Step 2: Recent runs
	fmt.Println("\nSTEP 2: Recent runs...")
	fmt.Println(strings.Repeat("-", 80))
	runs, err := store.ListRuns(models.Model(*model), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list runs: %v\n", err)
		os.Exit(1)
	}
	printRuns(runs)

	// Step 3: Newest OLG series per group
	fmt.Printf("\nSTEP 3: Newest %q series per OLG group...\n", *series)
	fmt.Println(strings.Repeat("-", 80))
	if err := printSeries(store, runs, *series); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load run rows: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("ANALYSIS COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
}

func printCoverage(store *storage.Storage) error {
	groups, err := store.GetGroups()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No observations stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tFIRST\tLAST\tDAYS\tLATEST COUNT")
	for _, g := range groups {
		obs, err := store.GetObservations(g)
		if err != nil {
			return err
		}
		if len(obs) == 0 {
			continue
		}
		first, last := obs[0], obs[len(obs)-1]
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0f\n", g,
			first.Date.Format(models.DateLayout), last.Date.Format(models.DateLayout), len(obs), last.Count)
	}
	return w.Flush()
}

func printRuns(runs []*models.Run) {
	if len(runs) == 0 {
		fmt.Println("No runs stored")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tMODEL\tGROUP\tSUMMARY")
	for _, run := range runs {
		keys := make([]string, 0, len(run.Summary))
		for k := range run.Summary {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%.4g", k, run.Summary[k]))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", run.CreatedAt.Format("2006-01-02 15:04"), run.Model, run.Group, strings.Join(parts, " "))
	}
	_ = w.Flush()
}

func printSeries(store *storage.Storage, runs []*models.Run, name string) error {
	seen := make(map[string]bool)
	for _, run := range runs {
		if run.Model != models.ModelOLG || seen[run.Group] {
			continue
		}
		seen[run.Group] = true

		rows, err := store.GetRunRows(run.ID)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s (run %s)\n", run.Group, run.ID)
		for _, r := range rows {
			if r.Series != name {
				continue
			}
			marker := " "
			if r.Prediction {
				marker = "*"
			}
			fmt.Printf("  %s %s day %3d  %12.4f\n", marker, r.Date.Format(models.DateLayout), r.Day, r.Value)
		}
	}
	if len(seen) == 0 {
		fmt.Println("No OLG runs among the listed runs")
	}
	return nil
}
