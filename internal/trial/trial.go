package trial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"hypertune/internal/model"
)

// ErrInvalidTransition marks an illegal status change. Statuses only
// move forward through the lifecycle; hitting this error in normal
// operation indicates a bug in the control loop.
var ErrInvalidTransition = errors.New("invalid trial transition")

// legalTransitions is the full lifecycle: pending trials start running,
// running trials may pause, stop, complete or error, and paused trials
// may resume or be stopped. The three terminal statuses have no edges.
var legalTransitions = map[model.TrialStatus][]model.TrialStatus{
	model.TrialPending: {model.TrialRunning},
	model.TrialRunning: {model.TrialPaused, model.TrialStopped, model.TrialCompleted, model.TrialErrored},
	model.TrialPaused:  {model.TrialRunning, model.TrialStopped},
}

// Trial is one execution of the objective under a fixed configuration:
// an identity, a forward-only status, and an append-only report log.
// The runner owns the trial for its lifetime; the scheduler only ever
// sees its id and reports.
type Trial struct {
	id    string
	token string
	cfg   model.Config

	mu      sync.Mutex
	status  model.TrialStatus
	reports []model.Report
	errMsg  string
}

// New creates a pending trial for a proposed configuration. The token
// is the proposal's correlation token, carried through to the final
// observation.
func New(token string, cfg model.Config) *Trial {
	return &Trial{
		id:     uuid.NewString(),
		token:  token,
		cfg:    cfg.Clone(),
		status: model.TrialPending,
	}
}

func (t *Trial) ID() string    { return t.id }
func (t *Trial) Token() string { return t.token }

func (t *Trial) Config() model.Config {
	return t.cfg.Clone()
}

func (t *Trial) Status() model.TrialStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Transition moves the trial to the given status if the edge is legal.
func (t *Trial) Transition(to model.TrialStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, legal := range legalTransitions[t.status] {
		if legal == to {
			t.status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s (trial %s)", ErrInvalidTransition, t.status, to, t.id)
}

// RecordReport appends an intermediate result. Only running trials
// accept reports, and iterations must strictly increase starting at 0.
func (t *Trial) RecordReport(iteration int, value float64) (model.Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != model.TrialRunning {
		return model.Report{}, fmt.Errorf("trial %s is %s, reports not accepted", t.id, t.status)
	}
	if iteration < 0 {
		return model.Report{}, fmt.Errorf("trial %s: iteration must be >= 0, got %d", t.id, iteration)
	}
	if n := len(t.reports); n > 0 && iteration <= t.reports[n-1].Iteration {
		return model.Report{}, fmt.Errorf("trial %s: iteration %d not after %d", t.id, iteration, t.reports[n-1].Iteration)
	}

	rep := model.Report{
		TrialID:   t.id,
		Iteration: iteration,
		Value:     value,
		At:        time.Now().UTC(),
	}
	t.reports = append(t.reports, rep)
	return rep, nil
}

func (t *Trial) SetError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errMsg = msg
}

func (t *Trial) Reports() []model.Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Report, len(t.reports))
	copy(out, t.reports)
	return out
}

// Best returns the trial's best report under the given mode.
func (t *Trial) Best(mode model.Mode) (model.Report, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.reports) == 0 {
		return model.Report{}, false
	}
	best := t.reports[0]
	for _, rep := range t.reports[1:] {
		if mode.Better(rep.Value, best.Value) {
			best = rep
		}
	}
	return best, true
}

// Last returns the most recent report.
func (t *Trial) Last() (model.Report, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.reports) == 0 {
		return model.Report{}, false
	}
	return t.reports[len(t.reports)-1], true
}

// Record snapshots the trial into its persistent form.
func (t *Trial) Record(experimentID string, mode model.Mode) model.TrialRecord {
	rec := model.TrialRecord{
		ID:           t.id,
		ExperimentID: experimentID,
		Config:       t.Config(),
		Status:       t.Status(),
		Reports:      t.Reports(),
	}

	t.mu.Lock()
	rec.Error = t.errMsg
	t.mu.Unlock()

	if best, ok := t.Best(mode); ok {
		v := best.Value
		rec.FinalValue = &v
	}
	return rec
}
