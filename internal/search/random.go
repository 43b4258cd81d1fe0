package search

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"hypertune/internal/space"
)

// Random samples configurations independently from the space. It never
// exhausts and ignores observations. Given the same seed it proposes an
// identical sequence of configs.
type Random struct {
	space *space.Space

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(sp *space.Space, seed int64) (*Random, error) {
	if sp == nil {
		return nil, fmt.Errorf("space is required")
	}
	return &Random{
		space: sp,
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

func (r *Random) Name() string { return "random" }

func (r *Random) Propose(ctx context.Context) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}

	r.mu.Lock()
	cfg := r.space.Sample(r.rng)
	r.mu.Unlock()

	return Proposal{Token: uuid.NewString(), Config: cfg}, nil
}

func (r *Random) Observe(_ context.Context, _ Observation) error {
	return nil
}

var _ Algorithm = (*Random)(nil)
