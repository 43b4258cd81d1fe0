package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hypertune/internal/model"
	"hypertune/internal/sched"
	"hypertune/internal/search"
	"hypertune/internal/space"
)

// countAlgo proposes numbered configs up to a limit and records every
// observation routed back to it.
type countAlgo struct {
	limit int

	mu        sync.Mutex
	proposals int
	observed  []search.Observation
}

func (c *countAlgo) Name() string { return "count" }

func (c *countAlgo) Propose(_ context.Context) (search.Proposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && c.proposals >= c.limit {
		return search.Proposal{}, search.ErrExhausted
	}
	c.proposals++
	return search.Proposal{
		Token:  fmt.Sprintf("token-%d", c.proposals),
		Config: model.Config{"n": int64(c.proposals)},
	}, nil
}

func (c *countAlgo) Observe(_ context.Context, obs search.Observation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed = append(c.observed, obs)
	return nil
}

func (c *countAlgo) observations() []search.Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]search.Observation, len(c.observed))
	copy(out, c.observed)
	return out
}

// stopAt stops every trial once it reports the given iteration.
type stopAt struct{ iteration int }

func (stopAt) Name() string { return "stop-at" }

func (s stopAt) OnReport(rep model.Report) sched.Decision {
	if rep.Iteration >= s.iteration {
		return sched.DecisionStop
	}
	return sched.DecisionContinue
}

func noopObjective(_ context.Context, _ model.Config, rep *Reporter) error {
	return rep.Report(1.0)
}

func TestNewValidation(t *testing.T) {
	valid := Config{
		Algorithm:  &countAlgo{},
		Objective:  noopObjective,
		Mode:       model.ModeMin,
		NumSamples: 1,
	}

	bad := valid
	bad.Algorithm = nil
	if _, err := New(bad); err == nil {
		t.Fatal("expected error for missing algorithm")
	}

	bad = valid
	bad.Objective = nil
	if _, err := New(bad); err == nil {
		t.Fatal("expected error for missing objective")
	}

	bad = valid
	bad.Mode = "sideways"
	if _, err := New(bad); err == nil {
		t.Fatal("expected error for unknown mode")
	}

	bad = valid
	bad.NumSamples = 0
	if _, err := New(bad); err == nil {
		t.Fatal("expected error for zero samples")
	}

	if _, err := New(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestRunDispatchesExactlyNumSamples(t *testing.T) {
	x, err := space.NewUniform(space.Range[float64]{Min: 0, Max: 20})
	if err != nil {
		t.Fatalf("uniform: %v", err)
	}
	y, err := space.NewUniform(space.Range[float64]{Min: -100, Max: 100})
	if err != nil {
		t.Fatalf("uniform: %v", err)
	}
	sp, err := space.New(map[string]space.Distribution{"x": x, "y": y})
	if err != nil {
		t.Fatalf("new space: %v", err)
	}
	algo, err := search.NewRandom(sp, 17)
	if err != nil {
		t.Fatalf("new random: %v", err)
	}
	scheduler, err := sched.NewASHA(sched.ASHAConfig{
		Mode:            model.ModeMin,
		GracePeriod:     1,
		ReductionFactor: 2,
		MaxIterations:   20,
	})
	if err != nil {
		t.Fatalf("new asha: %v", err)
	}

	objective := func(ctx context.Context, cfg model.Config, rep *Reporter) error {
		xv, _ := cfg.Float("x")
		yv, _ := cfg.Float("y")
		for step := 0; step < 20; step++ {
			value := 1.0/(0.1+xv*float64(step)/20.0) + 0.1*yv
			if err := rep.Report(value); err != nil {
				if errors.Is(err, ErrTrialStopped) {
					return nil
				}
				return err
			}
		}
		return nil
	}

	r, err := New(Config{
		RunID:         "run-a",
		Algorithm:     algo,
		Scheduler:     scheduler,
		Objective:     objective,
		Mode:          model.ModeMin,
		NumSamples:    10,
		MaxConcurrent: 4,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.RunID != "run-a" {
		t.Fatalf("unexpected run id: %s", res.RunID)
	}
	if res.Dispatched != 10 || len(res.Trials) != 10 {
		t.Fatalf("expected 10 trials, got dispatched=%d records=%d", res.Dispatched, len(res.Trials))
	}
	if res.BestValue == nil || res.BestTrialID == "" {
		t.Fatal("expected a best trial")
	}
	for _, rec := range res.Trials {
		if !rec.Status.Terminal() {
			t.Fatalf("trial %s not terminal: %s", rec.ID, rec.Status)
		}
		if rec.Status == model.TrialErrored {
			t.Fatalf("trial %s errored: %s", rec.ID, rec.Error)
		}
		if rec.FinalValue != nil && *rec.FinalValue < *res.BestValue {
			t.Fatalf("trial %s beat the reported best: %v < %v", rec.ID, *rec.FinalValue, *res.BestValue)
		}
	}
}

func TestRunRespectsConcurrencyBound(t *testing.T) {
	var running, peak int32
	objective := func(ctx context.Context, cfg model.Config, rep *Reporter) error {
		cur := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return rep.Report(1.0)
	}

	r, err := New(Config{
		Algorithm:     &countAlgo{},
		Objective:     objective,
		Mode:          model.ModeMin,
		NumSamples:    8,
		MaxConcurrent: 2,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Dispatched != 8 {
		t.Fatalf("expected 8 dispatched, got %d", res.Dispatched)
	}
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Fatalf("concurrency bound violated: peak %d > 2", got)
	}
}

func TestRunStopsAtExhaustion(t *testing.T) {
	algo := &countAlgo{limit: 3}
	r, err := New(Config{
		Algorithm:     algo,
		Objective:     noopObjective,
		Mode:          model.ModeMin,
		NumSamples:    10,
		MaxConcurrent: 4,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Dispatched != 3 || len(res.Trials) != 3 {
		t.Fatalf("expected 3 trials after exhaustion, got dispatched=%d records=%d", res.Dispatched, len(res.Trials))
	}
	if obs := algo.observations(); len(obs) != 3 {
		t.Fatalf("expected every trial observed exactly once, got %d observations", len(obs))
	}
}

func TestObjectiveErrorIsIsolated(t *testing.T) {
	algo := &countAlgo{limit: 4}
	objective := func(_ context.Context, cfg model.Config, rep *Reporter) error {
		n, _ := cfg.Int("n")
		if n == 2 {
			return errors.New("boom")
		}
		return rep.Report(float64(n))
	}

	r, err := New(Config{
		Algorithm:     algo,
		Objective:     objective,
		Mode:          model.ModeMin,
		NumSamples:    4,
		MaxConcurrent: 1,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run must survive an objective error: %v", err)
	}
	if len(res.Trials) != 4 {
		t.Fatalf("expected 4 trials, got %d", len(res.Trials))
	}

	// MaxConcurrent 1 keeps dispatch order aligned with proposal order.
	failed := res.Trials[1]
	if failed.Status != model.TrialErrored || failed.Error != "boom" {
		t.Fatalf("expected errored trial, got status=%s error=%q", failed.Status, failed.Error)
	}
	for i, rec := range res.Trials {
		if i == 1 {
			continue
		}
		if rec.Status != model.TrialCompleted {
			t.Fatalf("trial %d: expected completed, got %s", i, rec.Status)
		}
	}

	obs := algo.observations()
	if len(obs) != 4 {
		t.Fatalf("expected 4 observations, got %d", len(obs))
	}
	failures := 0
	for _, o := range obs {
		if o.Failed {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly 1 failed observation, got %d", failures)
	}

	if res.BestValue == nil || *res.BestValue != 1 {
		t.Fatalf("expected best value 1, got %v", res.BestValue)
	}
}

func TestSchedulerStopEndsTrialEarly(t *testing.T) {
	algo := &countAlgo{}
	objective := func(_ context.Context, cfg model.Config, rep *Reporter) error {
		for step := 0; step < 50; step++ {
			if err := rep.Report(float64(step)); err != nil {
				if errors.Is(err, ErrTrialStopped) {
					return nil
				}
				return err
			}
		}
		return errors.New("objective outlived the stop decision")
	}

	r, err := New(Config{
		Algorithm:     algo,
		Scheduler:     stopAt{iteration: 2},
		Objective:     objective,
		Mode:          model.ModeMin,
		NumSamples:    3,
		MaxConcurrent: 1,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for i, rec := range res.Trials {
		if rec.Status != model.TrialStopped {
			t.Fatalf("trial %d: expected stopped, got %s", i, rec.Status)
		}
		// Iterations 0, 1 and the stopping report at 2.
		if len(rec.Reports) != 3 {
			t.Fatalf("trial %d: expected 3 reports, got %d", i, len(rec.Reports))
		}
	}
	if obs := algo.observations(); len(obs) != 3 {
		t.Fatalf("stopped trials must still be observed, got %d observations", len(obs))
	}
	for _, o := range algo.observations() {
		if o.Failed {
			t.Fatal("stopped trials are not failures")
		}
	}
}

func TestRunAbortsOnContextCancellation(t *testing.T) {
	objective := func(ctx context.Context, _ model.Config, _ *Reporter) error {
		<-ctx.Done()
		// Return slowly so the control loop sees the cancellation
		// before the done events arrive.
		time.Sleep(50 * time.Millisecond)
		return ctx.Err()
	}

	r, err := New(Config{
		Algorithm:     &countAlgo{},
		Objective:     objective,
		Mode:          model.ModeMin,
		NumSamples:    2,
		MaxConcurrent: 2,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for i, rec := range res.Trials {
		if !rec.Status.Terminal() {
			t.Fatalf("trial %d left non-terminal after abort: %s", i, rec.Status)
		}
	}
}

func TestRunGeneratesRunID(t *testing.T) {
	r, err := New(Config{
		Algorithm:  &countAlgo{limit: 1},
		Objective:  noopObjective,
		Mode:       model.ModeMin,
		NumSamples: 1,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("expected generated run id")
	}
}
