package search

import (
	"context"
	"errors"

	"hypertune/internal/model"
)

var (
	// ErrExhausted signals that the algorithm has no more useful
	// proposals. The runner stops dispatching and drains in-flight
	// trials when it sees this.
	ErrExhausted = errors.New("search algorithm exhausted")

	// ErrNoCapacity is returned by a Limiter whose in-flight count is
	// at the maximum. Transient: the runner retries on a later cycle.
	ErrNoCapacity = errors.New("no proposal capacity")

	// ErrUnknownToken marks an observation whose token was never
	// proposed through the limiter. This is an invariant violation.
	ErrUnknownToken = errors.New("unknown proposal token")
)

// Proposal pairs a configuration with the correlation token used to
// route its outcome back through Observe. Tokens are assigned by the
// algorithm that produced the proposal.
type Proposal struct {
	Token  string
	Config model.Config
}

// Observation reports the outcome of a previously proposed
// configuration. Failed observations (errored trials) release capacity
// like any other but are excluded from model updates.
type Observation struct {
	Token  string
	Config model.Config
	Value  float64
	Failed bool
}

// Algorithm proposes configurations to try and consumes observed
// results. Implementations keep whatever internal model they like; the
// engine only depends on this contract.
type Algorithm interface {
	Name() string
	Propose(ctx context.Context) (Proposal, error)
	Observe(ctx context.Context, obs Observation) error
}
