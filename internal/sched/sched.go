package sched

import "hypertune/internal/model"

// Decision is a scheduler's verdict on a single report.
type Decision string

const (
	// DecisionContinue lets the trial keep running.
	DecisionContinue Decision = "continue"
	// DecisionStop ends the trial early.
	DecisionStop Decision = "stop"
)

// Scheduler decides, from intermediate reports across all live trials,
// which trials to stop early. OnReport is called exactly once per
// report, serialized by the runner, so implementations never see two
// reports racing into the same rung.
type Scheduler interface {
	Name() string
	OnReport(rep model.Report) Decision
}

// FIFO never stops anything: every trial runs to completion in
// dispatch order. It is the default scheduler.
type FIFO struct{}

func (FIFO) Name() string { return "fifo" }

func (FIFO) OnReport(_ model.Report) Decision { return DecisionContinue }
