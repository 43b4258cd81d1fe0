package search

import (
	"context"
	"fmt"
	"sync"
)

// Limiter caps how many proposed-but-unobserved configurations may
// exist at once. It wraps any Algorithm and exposes the same interface;
// composition keeps the wrapped algorithm substitutable and testable on
// its own.
type Limiter struct {
	algo Algorithm
	max  int

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewLimiter(algo Algorithm, maxConcurrent int) (*Limiter, error) {
	if algo == nil {
		return nil, fmt.Errorf("algorithm is required")
	}
	if maxConcurrent <= 0 {
		return nil, fmt.Errorf("max concurrent must be > 0, got %d", maxConcurrent)
	}
	return &Limiter{
		algo:    algo,
		max:     maxConcurrent,
		pending: make(map[string]struct{}),
	}, nil
}

func (l *Limiter) Name() string { return l.algo.Name() }

// Propose delegates to the wrapped algorithm unless the in-flight count
// is at the maximum, in which case it returns ErrNoCapacity. The token
// of a successful proposal is recorded until its observation arrives.
func (l *Limiter) Propose(ctx context.Context) (Proposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) >= l.max {
		return Proposal{}, ErrNoCapacity
	}

	prop, err := l.algo.Propose(ctx)
	if err != nil {
		return Proposal{}, err
	}
	l.pending[prop.Token] = struct{}{}
	return prop, nil
}

// Observe releases the capacity slot held by the observation's token
// and forwards the outcome to the wrapped algorithm. An unknown token
// means a double observation or a proposal that bypassed this limiter;
// both indicate a bug in the caller.
func (l *Limiter) Observe(ctx context.Context, obs Observation) error {
	l.mu.Lock()
	if _, ok := l.pending[obs.Token]; !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownToken, obs.Token)
	}
	delete(l.pending, obs.Token)
	l.mu.Unlock()

	return l.algo.Observe(ctx, obs)
}

// InFlight reports the current number of outstanding proposals.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

var _ Algorithm = (*Limiter)(nil)
