package sched

import (
	"fmt"
	"math"
	"sort"

	"hypertune/internal/model"
)

// ASHAConfig configures asynchronous successive halving.
type ASHAConfig struct {
	// Mode declares the metric direction.
	Mode model.Mode

	// GracePeriod is the minimum number of iterations a trial runs
	// before it may be stopped.
	GracePeriod int

	// ReductionFactor is the halving rate eta: each rung keeps the
	// best 1/eta fraction of the trials that reached it. Must be > 1.
	ReductionFactor float64

	// MaxIterations caps the rung ladder; no rung threshold exceeds it.
	MaxIterations int

	// MinRungSize is how many samples a rung needs before its cutoff
	// may stop anyone. Zero means ceil(ReductionFactor): with fewer
	// samples than eta the 1/eta quantile is not meaningful.
	MinRungSize int
}

// rung holds the metric values of every trial that reported at or past
// its threshold, one contribution per trial. Values are kept sorted
// ascending so cutoff quantiles are cheap; samples are append-only for
// the run's duration.
type rung struct {
	threshold int
	values    []float64
	seen      map[string]struct{}
}

func (r *rung) record(trialID string, value float64) {
	r.seen[trialID] = struct{}{}
	i := sort.SearchFloat64s(r.values, value)
	r.values = append(r.values, 0)
	copy(r.values[i+1:], r.values[i:])
	r.values[i] = value
}

// ASHA stops underperforming trials at geometrically spaced iteration
// thresholds. Decisions are per-trial and depend only on the rung state
// accumulated so far, never on waiting for sibling trials, so trials
// running at different paces cannot deadlock the scheduler.
type ASHA struct {
	cfg   ASHAConfig
	rungs []*rung
}

func NewASHA(cfg ASHAConfig) (*ASHA, error) {
	if cfg.Mode != model.ModeMin && cfg.Mode != model.ModeMax {
		return nil, fmt.Errorf("mode must be min or max, got %q", cfg.Mode)
	}
	if cfg.GracePeriod <= 0 {
		return nil, fmt.Errorf("grace period must be > 0, got %d", cfg.GracePeriod)
	}
	if cfg.ReductionFactor <= 1 {
		return nil, fmt.Errorf("reduction factor must be > 1, got %v", cfg.ReductionFactor)
	}
	if cfg.MaxIterations < cfg.GracePeriod {
		return nil, fmt.Errorf("max iterations %d below grace period %d", cfg.MaxIterations, cfg.GracePeriod)
	}
	if cfg.MinRungSize <= 0 {
		cfg.MinRungSize = int(math.Ceil(cfg.ReductionFactor))
	}

	// Thresholds grow geometrically from the grace period: g, g*eta,
	// g*eta^2, ... capped at MaxIterations.
	var rungs []*rung
	for k := 0; ; k++ {
		threshold := int(float64(cfg.GracePeriod) * math.Pow(cfg.ReductionFactor, float64(k)))
		if threshold > cfg.MaxIterations {
			break
		}
		if n := len(rungs); n > 0 && threshold <= rungs[n-1].threshold {
			threshold = rungs[n-1].threshold + 1
			if threshold > cfg.MaxIterations {
				break
			}
		}
		rungs = append(rungs, &rung{threshold: threshold, seen: make(map[string]struct{})})
	}

	return &ASHA{cfg: cfg, rungs: rungs}, nil
}

func (a *ASHA) Name() string { return "asha" }

// OnReport records the report into the highest rung the trial has
// reached but not yet contributed to, then compares it against that
// rung's cutoff. Ties at the cutoff favor CONTINUE so early trials are
// not starved while sample counts are small.
func (a *ASHA) OnReport(rep model.Report) Decision {
	if rep.Iteration < a.cfg.GracePeriod {
		return DecisionContinue
	}

	target := a.rungFor(rep)
	if target == nil {
		return DecisionContinue
	}
	target.record(rep.TrialID, rep.Value)

	if len(target.values) < a.cfg.MinRungSize {
		return DecisionContinue
	}
	cutoff := a.cutoff(target)
	if a.cfg.Mode.Worse(rep.Value, cutoff) {
		return DecisionStop
	}
	return DecisionContinue
}

// rungFor finds the highest rung with threshold <= the report's
// iteration that the trial has not contributed to yet.
func (a *ASHA) rungFor(rep model.Report) *rung {
	for i := len(a.rungs) - 1; i >= 0; i-- {
		r := a.rungs[i]
		if r.threshold > rep.Iteration {
			continue
		}
		if _, ok := r.seen[rep.TrialID]; ok {
			continue
		}
		return r
	}
	return nil
}

// cutoff is the value at the 1/eta quantile of the rung's samples,
// taken from the better end under the configured mode, with linear
// interpolation between adjacent samples.
func (a *ASHA) cutoff(r *rung) float64 {
	q := 1.0 / a.cfg.ReductionFactor
	if a.cfg.Mode == model.ModeMax {
		q = 1.0 - q
	}
	return quantile(r.values, q)
}

// RungSizes reports the sample count per rung in threshold order.
func (a *ASHA) RungSizes() []int {
	out := make([]int, len(a.rungs))
	for i, r := range a.rungs {
		out[i] = len(r.values)
	}
	return out
}

// quantile interpolates the q-quantile of sorted ascending values.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

var _ Scheduler = (*ASHA)(nil)
