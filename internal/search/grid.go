package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"hypertune/internal/model"
	"hypertune/internal/space"
)

// Grid sweeps the cartesian product of a categorical space in a fixed
// order and exhausts once every combination has been proposed. Every
// parameter must be a constant or a choice; continuous ranges cannot be
// enumerated and are rejected at construction.
type Grid struct {
	names   []string
	options [][]any

	mu   sync.Mutex
	next int
	size int
}

func NewGrid(sp *space.Space) (*Grid, error) {
	if sp == nil {
		return nil, fmt.Errorf("space is required")
	}
	names := sp.Names()
	options := make([][]any, len(names))
	size := 1
	for i, name := range names {
		dist, _ := sp.Distribution(name)
		opts, ok := space.Options(dist)
		if !ok {
			return nil, fmt.Errorf("grid search requires categorical parameters: %s is continuous", name)
		}
		options[i] = opts
		size *= len(opts)
	}
	return &Grid{names: names, options: options, size: size}, nil
}

func (g *Grid) Name() string { return "grid" }

func (g *Grid) Propose(ctx context.Context) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next >= g.size {
		return Proposal{}, ErrExhausted
	}

	// Mixed-radix decoding of the combination index: the last
	// parameter varies fastest.
	idx := g.next
	cfg := make(model.Config, len(g.names))
	for i := len(g.names) - 1; i >= 0; i-- {
		opts := g.options[i]
		cfg[g.names[i]] = opts[idx%len(opts)]
		idx /= len(opts)
	}
	g.next++

	return Proposal{Token: uuid.NewString(), Config: cfg}, nil
}

func (g *Grid) Observe(_ context.Context, _ Observation) error {
	return nil
}

// Remaining reports how many combinations have not been proposed yet.
func (g *Grid) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.size - g.next
}

var _ Algorithm = (*Grid)(nil)
