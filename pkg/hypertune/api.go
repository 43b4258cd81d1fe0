// Package hypertune is the public surface of the tuning engine: a
// client that runs experiments against the built-in objectives and
// reads results back from the experiment archive.
package hypertune

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"hypertune/internal/bench"
	"hypertune/internal/engine"
	"hypertune/internal/model"
	"hypertune/internal/runner"
	"hypertune/internal/sched"
	"hypertune/internal/search"
	"hypertune/internal/stats"
	"hypertune/internal/storage"
)

const defaultArtifactsDir = "artifacts"

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
}

type Client struct {
	store        storage.Store
	engine       *engine.Engine
	artifactsDir string
}

func New(opts Options) (*Client, error) {
	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	return &Client{
		store:        store,
		engine:       engine.New(engine.Config{Store: store}),
		artifactsDir: artifactsDir,
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.engine.Init(ctx)
}

func (c *Client) Close(ctx context.Context) error {
	return c.engine.Shutdown(ctx)
}

func (c *Client) Reset(ctx context.Context) error {
	store, err := c.engine.Store()
	if err != nil {
		return err
	}
	return store.Reset(ctx)
}

// RunRequest describes one experiment. Zero values fall back to
// defaults: random search, fifo scheduling, the objective's native
// metric mode, 10 samples, 1 concurrent trial.
type RunRequest struct {
	RunID         string
	Objective     string
	Searcher      string
	Scheduler     string
	Metric        string
	Mode          string
	NumSamples    int
	MaxConcurrent int
	Seed          int64

	// ASHA parameters, used when Scheduler is "asha".
	GracePeriod     int
	ReductionFactor float64
	MaxIterations   int

	// SeedPoints are proposed first, in order, before the searcher's
	// own proposals.
	SeedPoints []model.Config
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	BestTrialID  string
	BestConfig   model.Config
	BestValue    *float64
	Dispatched   int
	Elapsed      time.Duration
}

// Run executes an experiment end to end: build the search stack, drive
// the trial runner, persist the experiment and write its artifacts.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	store, err := c.engine.Store()
	if err != nil {
		return RunSummary{}, err
	}

	def, err := bench.Lookup(req.Objective)
	if err != nil {
		return RunSummary{}, err
	}
	sp, err := def.Space()
	if err != nil {
		return RunSummary{}, err
	}

	if req.NumSamples <= 0 {
		req.NumSamples = 10
	}
	if req.MaxConcurrent <= 0 {
		req.MaxConcurrent = 1
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if req.Metric == "" {
		req.Metric = "value"
	}

	mode := def.Mode
	if req.Mode != "" {
		mode, err = model.ParseMode(req.Mode)
		if err != nil {
			return RunSummary{}, err
		}
	}

	var algo search.Algorithm
	switch req.Searcher {
	case "", "random":
		req.Searcher = "random"
		algo, err = search.NewRandom(sp, req.Seed)
	case "bayes":
		algo, err = search.NewBayes(search.BayesConfig{Space: sp, Mode: mode, Seed: req.Seed})
	case "grid":
		algo, err = search.NewGrid(sp)
	default:
		return RunSummary{}, fmt.Errorf("unknown searcher: %s", req.Searcher)
	}
	if err != nil {
		return RunSummary{}, err
	}
	algo = search.WithSeedPoints(algo, req.SeedPoints...)

	var scheduler sched.Scheduler
	switch req.Scheduler {
	case "", "fifo":
		req.Scheduler = "fifo"
		scheduler = sched.FIFO{}
	case "asha":
		if req.GracePeriod <= 0 {
			req.GracePeriod = 1
		}
		if req.ReductionFactor <= 1 {
			req.ReductionFactor = 4
		}
		if req.MaxIterations <= 0 {
			req.MaxIterations = 100
		}
		scheduler, err = sched.NewASHA(sched.ASHAConfig{
			Mode:            mode,
			GracePeriod:     req.GracePeriod,
			ReductionFactor: req.ReductionFactor,
			MaxIterations:   req.MaxIterations,
		})
		if err != nil {
			return RunSummary{}, err
		}
	default:
		return RunSummary{}, fmt.Errorf("unknown scheduler: %s", req.Scheduler)
	}

	r, err := runner.New(runner.Config{
		RunID:         req.RunID,
		Algorithm:     algo,
		Scheduler:     scheduler,
		Objective:     def.Objective,
		Metric:        req.Metric,
		Mode:          mode,
		NumSamples:    req.NumSamples,
		MaxConcurrent: req.MaxConcurrent,
	})
	if err != nil {
		return RunSummary{}, err
	}

	result, err := r.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)

	experiment := model.ExperimentRecord{
		ID:            result.RunID,
		CreatedAtUTC:  createdAt,
		Objective:     def.Name,
		Searcher:      req.Searcher,
		Scheduler:     scheduler.Name(),
		Metric:        req.Metric,
		Mode:          mode,
		NumSamples:    req.NumSamples,
		MaxConcurrent: req.MaxConcurrent,
		Seed:          req.Seed,
		Dispatched:    result.Dispatched,
		BestTrialID:   result.BestTrialID,
		BestValue:     result.BestValue,
		ElapsedMS:     result.Elapsed.Milliseconds(),
	}
	storage.Stamp(&experiment.VersionedRecord)
	if err := store.SaveExperiment(ctx, experiment); err != nil {
		return RunSummary{}, err
	}

	trials := result.Trials
	for i := range trials {
		storage.Stamp(&trials[i].VersionedRecord)
	}
	if err := store.SaveTrials(ctx, result.RunID, trials); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:           result.RunID,
			CreatedAtUTC:    createdAt,
			Objective:       def.Name,
			Searcher:        req.Searcher,
			Scheduler:       scheduler.Name(),
			Metric:          req.Metric,
			Mode:            mode,
			NumSamples:      req.NumSamples,
			MaxConcurrent:   req.MaxConcurrent,
			Seed:            req.Seed,
			GracePeriod:     req.GracePeriod,
			ReductionFactor: req.ReductionFactor,
			MaxIterations:   req.MaxIterations,
		},
		BestTrialID: result.BestTrialID,
		BestValue:   result.BestValue,
		Dispatched:  result.Dispatched,
		Trials:      trials,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        result.RunID,
		CreatedAtUTC: createdAt,
		Objective:    def.Name,
		Searcher:     req.Searcher,
		Scheduler:    scheduler.Name(),
		NumSamples:   req.NumSamples,
		Dispatched:   result.Dispatched,
		Seed:         req.Seed,
		BestValue:    result.BestValue,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        result.RunID,
		ArtifactsDir: runDir,
		BestTrialID:  result.BestTrialID,
		BestConfig:   result.BestConfig,
		BestValue:    result.BestValue,
		Dispatched:   result.Dispatched,
		Elapsed:      result.Elapsed,
	}, nil
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Objective    string
	Searcher     string
	Scheduler    string
	NumSamples   int
	Dispatched   int
	Seed         int64
	BestValue    *float64
}

// Runs lists stored experiments, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunItem, error) {
	store, err := c.engine.Store()
	if err != nil {
		return nil, err
	}

	experiments, err := store.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(experiments) > limit {
		experiments = experiments[:limit]
	}

	out := make([]RunItem, 0, len(experiments))
	for _, e := range experiments {
		out = append(out, RunItem{
			RunID:        e.ID,
			CreatedAtUTC: e.CreatedAtUTC,
			Objective:    e.Objective,
			Searcher:     e.Searcher,
			Scheduler:    e.Scheduler,
			NumSamples:   e.NumSamples,
			Dispatched:   e.Dispatched,
			Seed:         e.Seed,
			BestValue:    e.BestValue,
		})
	}
	return out, nil
}

type BestItem struct {
	RunID     string
	TrialID   string
	Config    model.Config
	Value     *float64
	Status    model.TrialStatus
	Reports   int
	Objective string
}

// Best returns the best trial of a stored run.
func (c *Client) Best(ctx context.Context, runID string) (BestItem, error) {
	store, err := c.engine.Store()
	if err != nil {
		return BestItem{}, err
	}

	experiment, ok, err := store.GetExperiment(ctx, runID)
	if err != nil {
		return BestItem{}, err
	}
	if !ok {
		return BestItem{}, fmt.Errorf("run not found: %s", runID)
	}

	item := BestItem{
		RunID:     experiment.ID,
		TrialID:   experiment.BestTrialID,
		Value:     experiment.BestValue,
		Objective: experiment.Objective,
	}
	if experiment.BestTrialID == "" {
		return item, nil
	}

	trials, ok, err := store.GetTrials(ctx, runID)
	if err != nil {
		return BestItem{}, err
	}
	if ok {
		for _, t := range trials {
			if t.ID == experiment.BestTrialID {
				item.Config = t.Config
				item.Status = t.Status
				item.Reports = len(t.Reports)
				break
			}
		}
	}
	return item, nil
}

// Export writes a stored run's trial records as JSON to the given path.
func (c *Client) Export(ctx context.Context, runID, outPath string) error {
	store, err := c.engine.Store()
	if err != nil {
		return err
	}

	trials, ok, err := store.GetTrials(ctx, runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}

	data, err := json.MarshalIndent(trials, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, append(data, '\n'), 0o644)
}

// Objectives lists the built-in objective names.
func (c *Client) Objectives() []string {
	return bench.Names()
}
