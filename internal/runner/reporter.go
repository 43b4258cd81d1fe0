package runner

import "context"

// Reporter is the channel between a trial's execution context and the
// control loop. Message passing instead of a shared callback keeps
// report ordering explicit and the scheduler race-free: Report blocks
// until the control loop has recorded the value and applied the
// scheduler's decision.
type Reporter struct {
	trialID string
	ctx     context.Context
	reports chan<- reportEvent
	stopped <-chan struct{}
}

// Report submits the next intermediate metric value. Iterations are
// assigned by the control loop in submission order, starting at 0. It
// returns ErrTrialStopped once the scheduler has decided to stop the
// trial; the objective should return promptly after seeing it.
func (r *Reporter) Report(value float64) error {
	select {
	case <-r.stopped:
		return ErrTrialStopped
	case <-r.ctx.Done():
		return r.ctx.Err()
	default:
	}

	ev := reportEvent{trialID: r.trialID, value: value, ack: make(chan error, 1)}
	select {
	case r.reports <- ev:
		return <-ev.ack
	case <-r.stopped:
		return ErrTrialStopped
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}
