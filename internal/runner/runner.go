package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hypertune/internal/model"
	"hypertune/internal/sched"
	"hypertune/internal/search"
	"hypertune/internal/trial"
)

// ErrTrialStopped is returned by Reporter.Report once the scheduler has
// stopped the trial. The objective is expected to return promptly; its
// context is cancelled as well.
var ErrTrialStopped = errors.New("trial stopped by scheduler")

// Objective is the user-supplied function a trial executes. It reports
// intermediate metric values through rep and returns nil on normal
// completion. Cancellation is cooperative: the function should watch
// ctx and the Report error.
type Objective func(ctx context.Context, cfg model.Config, rep *Reporter) error

// Config assembles one experiment run.
type Config struct {
	// RunID identifies the experiment; a UUID is generated when empty.
	RunID string

	// Algorithm proposes configurations. The runner wraps it in a
	// ConcurrencyLimiter sized by MaxConcurrent.
	Algorithm search.Algorithm

	// Scheduler decides early stopping; default FIFO (never stop).
	Scheduler sched.Scheduler

	// Objective is executed once per trial.
	Objective Objective

	// Metric names the value being optimized; informational.
	Metric string

	// Mode declares the metric direction.
	Mode model.Mode

	// NumSamples is how many trials to dispatch in total.
	NumSamples int

	// MaxConcurrent bounds simultaneously running trials.
	MaxConcurrent int
}

// Result summarizes a finished run.
type Result struct {
	RunID       string
	Metric      string
	BestTrialID string
	BestConfig  model.Config
	BestValue   *float64
	Trials      []model.TrialRecord
	Dispatched  int
	Elapsed     time.Duration
}

type reportEvent struct {
	trialID string
	value   float64
	ack     chan error
}

type doneEvent struct {
	trialID string
	err     error
}

// exec is the runner's bookkeeping for one live trial.
type exec struct {
	trial    *trial.Trial
	cancel   context.CancelFunc
	stopped  chan struct{}
	stopSent bool
	observed bool
	nextIter int
}

// Runner is the control loop that ties the engine together: it pulls
// proposals through the limiter, launches trials, routes their reports
// to the scheduler, applies stop decisions, and delivers every terminal
// trial back to the search algorithm exactly once.
//
// Scheduling decisions are serialized: proposals, report routing and
// observations all happen on the Run goroutine, so the scheduler's rung
// state and the limiter's counter never see concurrent writers. Trial
// objectives run on their own goroutines and block on an unbuffered
// handoff while their report is processed.
type Runner struct {
	cfg     config
	limiter *search.Limiter
}

type config struct {
	runID         string
	scheduler     sched.Scheduler
	objective     Objective
	metric        string
	mode          model.Mode
	numSamples    int
	maxConcurrent int
}

func New(cfg Config) (*Runner, error) {
	if cfg.Algorithm == nil {
		return nil, fmt.Errorf("search algorithm is required")
	}
	if cfg.Objective == nil {
		return nil, fmt.Errorf("objective is required")
	}
	if cfg.Mode != model.ModeMin && cfg.Mode != model.ModeMax {
		return nil, fmt.Errorf("mode must be min or max, got %q", cfg.Mode)
	}
	if cfg.NumSamples <= 0 {
		return nil, fmt.Errorf("num samples must be > 0, got %d", cfg.NumSamples)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = sched.FIFO{}
	}
	if cfg.Metric == "" {
		cfg.Metric = "metric"
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	limiter, err := search.NewLimiter(cfg.Algorithm, cfg.MaxConcurrent)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg: config{
			runID:         cfg.RunID,
			scheduler:     cfg.Scheduler,
			objective:     cfg.Objective,
			metric:        cfg.Metric,
			mode:          cfg.Mode,
			numSamples:    cfg.NumSamples,
			maxConcurrent: cfg.MaxConcurrent,
		},
		limiter: limiter,
	}, nil
}

// Run drives the experiment to completion: it returns once NumSamples
// trials (or as many as the algorithm could propose) are all terminal,
// or the context is cancelled. Objective failures are isolated to their
// trial; only invariant breaks abort the run.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	reports := make(chan reportEvent)
	dones := make(chan doneEvent, r.cfg.numSamples)

	execs := make(map[string]*exec, r.cfg.numSamples)
	order := make([]*exec, 0, r.cfg.numSamples)
	dispatched := 0
	terminal := 0
	exhausted := false

	finish := func(err error) (Result, error) {
		res := r.collect(order, dispatched, time.Since(start))
		return res, err
	}

	abort := func(cause error) (Result, error) {
		for _, e := range execs {
			if !e.trial.Status().Terminal() {
				e.cancel()
			}
		}
		// Drain so no trial goroutine stays blocked on a report ack.
		for terminal < dispatched {
			select {
			case ev := <-reports:
				ev.ack <- cause
			case ev := <-dones:
				e := execs[ev.trialID]
				if !e.trial.Status().Terminal() {
					_ = e.trial.Transition(model.TrialErrored)
					e.trial.SetError(cause.Error())
				}
				terminal++
			}
		}
		return finish(cause)
	}

	for {
		// Dispatch while the limiter has capacity and samples remain.
		for !exhausted && dispatched < r.cfg.numSamples {
			prop, err := r.limiter.Propose(ctx)
			if errors.Is(err, search.ErrNoCapacity) {
				break
			}
			if errors.Is(err, search.ErrExhausted) {
				exhausted = true
				break
			}
			if err != nil {
				return abort(fmt.Errorf("propose: %w", err))
			}

			e, err := r.launch(ctx, prop, reports, dones)
			if err != nil {
				return abort(err)
			}
			execs[e.trial.ID()] = e
			order = append(order, e)
			dispatched++
		}

		if terminal == dispatched && (dispatched == r.cfg.numSamples || exhausted) {
			return finish(nil)
		}

		select {
		case ev := <-reports:
			e := execs[ev.trialID]
			if err := r.routeReport(e, ev); err != nil {
				return abort(err)
			}
		case ev := <-dones:
			e := execs[ev.trialID]
			terminal++
			if err := r.finalize(ctx, e, ev.err); err != nil {
				return abort(err)
			}
		case <-ctx.Done():
			return abort(ctx.Err())
		}
	}
}

func (r *Runner) launch(ctx context.Context, prop search.Proposal, reports chan reportEvent, dones chan doneEvent) (*exec, error) {
	t := trial.New(prop.Token, prop.Config)
	if err := t.Transition(model.TrialRunning); err != nil {
		return nil, err
	}

	trialCtx, cancel := context.WithCancel(ctx)
	e := &exec{
		trial:   t,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	rep := &Reporter{
		trialID: t.ID(),
		ctx:     trialCtx,
		reports: reports,
		stopped: e.stopped,
	}

	go func() {
		err := r.cfg.objective(trialCtx, t.Config(), rep)
		dones <- doneEvent{trialID: t.ID(), err: err}
	}()

	return e, nil
}

// routeReport records the report, asks the scheduler for a decision and
// applies it, then releases the objective goroutine.
func (r *Runner) routeReport(e *exec, ev reportEvent) error {
	rep, err := e.trial.RecordReport(e.nextIter, ev.value)
	if err != nil {
		ev.ack <- err
		return err
	}
	e.nextIter++

	if r.cfg.scheduler.OnReport(rep) == sched.DecisionStop {
		if err := e.trial.Transition(model.TrialStopped); err != nil {
			ev.ack <- err
			return err
		}
		e.stopSent = true
		close(e.stopped)
		e.cancel()
		ev.ack <- ErrTrialStopped
		return nil
	}

	ev.ack <- nil
	return nil
}

// finalize settles a trial whose objective returned, then delivers its
// observation through the limiter exactly once.
func (r *Runner) finalize(ctx context.Context, e *exec, objErr error) error {
	failed := false
	switch {
	case e.stopSent:
		// Already STOPPED at decision time; the objective's return
		// value is irrelevant.
	case objErr != nil:
		if err := e.trial.Transition(model.TrialErrored); err != nil {
			return err
		}
		e.trial.SetError(objErr.Error())
		failed = true
	default:
		if err := e.trial.Transition(model.TrialCompleted); err != nil {
			return err
		}
	}
	e.cancel()

	if e.observed {
		return fmt.Errorf("trial %s observed twice", e.trial.ID())
	}
	e.observed = true

	obs := search.Observation{
		Token:  e.trial.Token(),
		Config: e.trial.Config(),
		Failed: failed,
	}
	if best, ok := e.trial.Best(r.cfg.mode); ok {
		obs.Value = best.Value
	} else {
		// No reports at all: nothing for the model to learn from.
		obs.Failed = true
	}
	if err := r.limiter.Observe(ctx, obs); err != nil {
		return fmt.Errorf("observe trial %s: %w", e.trial.ID(), err)
	}
	return nil
}

// collect builds the final result in dispatch order and tracks the
// best terminal trial under the metric mode.
func (r *Runner) collect(order []*exec, dispatched int, elapsed time.Duration) Result {
	res := Result{
		RunID:      r.cfg.runID,
		Metric:     r.cfg.metric,
		Dispatched: dispatched,
		Elapsed:    elapsed,
	}
	for _, e := range order {
		rec := e.trial.Record(r.cfg.runID, r.cfg.mode)
		res.Trials = append(res.Trials, rec)

		best, ok := e.trial.Best(r.cfg.mode)
		if !ok {
			continue
		}
		if res.BestValue == nil || r.cfg.mode.Better(best.Value, *res.BestValue) {
			v := best.Value
			res.BestValue = &v
			res.BestTrialID = e.trial.ID()
			res.BestConfig = e.trial.Config()
		}
	}
	return res
}
