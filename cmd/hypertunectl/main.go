package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"hypertune/internal/model"
	"hypertune/internal/storage"
	hyperapi "hypertune/pkg/hypertune"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "objectives":
		return runObjectives(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func addStoreFlags(fs *flag.FlagSet) (storeKind, dbPath, artifactsDir *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", "hypertune.db", "sqlite database path")
	artifactsDir = fs.String("artifacts", "artifacts", "run artifacts directory")
	return storeKind, dbPath, artifactsDir
}

func newClient(ctx context.Context, storeKind, dbPath, artifactsDir string) (*hyperapi.Client, error) {
	client, err := hyperapi.New(hyperapi.Options{
		StoreKind:    storeKind,
		DBPath:       dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath, artifactsDir := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *artifactsDir)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind, dbPath, artifactsDir := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *artifactsDir)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Println("store reset")
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	storeKind, dbPath, artifactsDir := addStoreFlags(fs)
	configPath := fs.String("config", "", "JSON run config path (flags override)")
	objective := fs.String("objective", "tutorial", "built-in objective to optimize")
	searcher := fs.String("searcher", "random", "search algorithm: random|bayes|grid")
	scheduler := fs.String("scheduler", "asha", "trial scheduler: fifo|asha")
	mode := fs.String("mode", "", "metric mode: min|max (default: objective's native mode)")
	numSamples := fs.Int("samples", 10, "number of trials to dispatch")
	maxConcurrent := fs.Int("max-concurrent", 4, "max simultaneously running trials")
	seed := fs.Int64("seed", 0, "random seed (0 = time-based)")
	gracePeriod := fs.Int("grace-period", 1, "asha: min iterations before stopping")
	reductionFactor := fs.Float64("reduction-factor", 4, "asha: halving rate eta")
	maxIterations := fs.Int("max-iterations", 100, "asha: top rung threshold")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := hyperapi.RunRequest{}
	if *configPath != "" {
		var err error
		req, err = loadRunRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
	}
	applyRunFlags(fs, &req, runFlagValues{
		objective:       *objective,
		searcher:        *searcher,
		scheduler:       *scheduler,
		mode:            *mode,
		numSamples:      *numSamples,
		maxConcurrent:   *maxConcurrent,
		seed:            *seed,
		gracePeriod:     *gracePeriod,
		reductionFactor: *reductionFactor,
		maxIterations:   *maxIterations,
	})

	client, err := newClient(ctx, *storeKind, *dbPath, *artifactsDir)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %s trials in %s\n",
		summary.RunID,
		humanize.Comma(int64(summary.Dispatched)),
		summary.Elapsed.Round(summary.Elapsed/100+1),
	)
	if summary.BestValue != nil {
		fmt.Printf("best trial %s value=%s config=%s\n",
			summary.BestTrialID,
			humanize.Ftoa(*summary.BestValue),
			formatConfig(summary.BestConfig),
		)
	} else {
		fmt.Println("no trial produced a metric value")
	}
	fmt.Printf("artifacts: %s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind, dbPath, artifactsDir := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *artifactsDir)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	items, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs")
		return nil
	}
	for _, item := range items {
		best := "-"
		if item.BestValue != nil {
			best = humanize.Ftoa(*item.BestValue)
		}
		fmt.Printf("%s  %s  objective=%s searcher=%s scheduler=%s trials=%d/%d best=%s\n",
			item.RunID, item.CreatedAtUTC, item.Objective, item.Searcher,
			item.Scheduler, item.Dispatched, item.NumSamples, best)
	}
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	storeKind, dbPath, artifactsDir := addStoreFlags(fs)
	runID := fs.String("run", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("best requires --run")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *artifactsDir)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	item, err := client.Best(ctx, *runID)
	if err != nil {
		return err
	}
	if item.TrialID == "" {
		fmt.Printf("run %s has no best trial\n", item.RunID)
		return nil
	}
	value := "-"
	if item.Value != nil {
		value = humanize.Ftoa(*item.Value)
	}
	fmt.Printf("run %s best trial %s (%s, %s reports)\nvalue=%s\nconfig=%s\n",
		item.RunID, item.TrialID, item.Status,
		humanize.Comma(int64(item.Reports)), value, formatConfig(item.Config))
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind, dbPath, artifactsDir := addStoreFlags(fs)
	runID := fs.String("run", "", "run id")
	out := fs.String("out", "", "output JSON path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" || *out == "" {
		return usageError("export requires --run and --out")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *artifactsDir)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	if err := client.Export(ctx, *runID, *out); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", *runID, *out)
	return nil
}

func runObjectives(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("objectives", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := hyperapi.New(hyperapi.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	for _, name := range client.Objectives() {
		fmt.Println(name)
	}
	return nil
}

func formatConfig(cfg model.Config) string {
	if len(cfg) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(cfg))
	for _, name := range sortedKeys(cfg) {
		parts = append(parts, fmt.Sprintf("%s=%v", name, cfg[name]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func usageError(msg string) error {
	return fmt.Errorf(`%s

usage: hypertunectl <command> [flags]

commands:
  init        initialize the experiment store
  reset       clear all stored experiments
  run         run an experiment against a built-in objective
  runs        list stored runs
  best        show the best trial of a run
  export      export a run's trial records as JSON
  objectives  list built-in objectives`, msg)
}
