package search

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"hypertune/internal/model"
)

// seedPoints proposes a fixed list of configs first, in order, before
// handing proposal duty to the wrapped algorithm. Observations are
// always forwarded so the wrapped model still learns from the seeds.
type seedPoints struct {
	algo Algorithm

	mu    sync.Mutex
	queue []model.Config
}

// WithSeedPoints injects prior knowledge: the given points are proposed
// before any generative proposal. A nil or empty list returns the
// algorithm unchanged.
func WithSeedPoints(algo Algorithm, points ...model.Config) Algorithm {
	if len(points) == 0 {
		return algo
	}
	queue := make([]model.Config, len(points))
	for i, p := range points {
		queue[i] = p.Clone()
	}
	return &seedPoints{algo: algo, queue: queue}
}

func (s *seedPoints) Name() string { return s.algo.Name() }

func (s *seedPoints) Propose(ctx context.Context) (Proposal, error) {
	s.mu.Lock()
	if len(s.queue) > 0 {
		cfg := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return Proposal{Token: uuid.NewString(), Config: cfg}, nil
	}
	s.mu.Unlock()

	return s.algo.Propose(ctx)
}

func (s *seedPoints) Observe(ctx context.Context, obs Observation) error {
	return s.algo.Observe(ctx, obs)
}
