package search

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"hypertune/internal/model"
	"hypertune/internal/space"
)

// BayesConfig controls the model-based searcher.
type BayesConfig struct {
	Space *space.Space

	// Mode declares the metric direction. Observations are folded into
	// minimization space internally.
	Mode model.Mode

	// InitialSamples is how many purely random proposals are made
	// before the model starts steering. Default 10.
	InitialSamples int

	// Candidates is how many random candidates are scored per
	// model-guided proposal. Default 50.
	Candidates int

	// Acquisition scores candidates; default UCB with Beta 2.
	Acquisition AcquisitionFunc
	Beta        float64
	Xi          float64

	Seed int64
}

// Bayes proposes configurations by fitting a Gaussian process to the
// observed results and picking the candidate with the best acquisition
// score. The space must be fully numeric. Errored observations are
// skipped so a failing configuration never distorts the model.
type Bayes struct {
	cfg BayesConfig

	mu        sync.Mutex
	rng       *rand.Rand
	gp        *gaussianProcess
	bestSoFar float64
}

func NewBayes(cfg BayesConfig) (*Bayes, error) {
	if cfg.Space == nil {
		return nil, fmt.Errorf("space is required")
	}
	if cfg.Mode != model.ModeMin && cfg.Mode != model.ModeMax {
		return nil, fmt.Errorf("mode must be min or max, got %q", cfg.Mode)
	}
	// Probe the space once so non-numeric parameters fail here rather
	// than on the first proposal.
	probe := cfg.Space.Sample(rand.New(rand.NewSource(cfg.Seed)))
	if _, err := cfg.Space.Vector(probe); err != nil {
		return nil, fmt.Errorf("bayes search requires a numeric space: %w", err)
	}
	if cfg.InitialSamples <= 0 {
		cfg.InitialSamples = 10
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = 50
	}
	if cfg.Acquisition == nil {
		cfg.Acquisition = UCB
	}
	if cfg.Beta == 0 {
		cfg.Beta = 2.0
	}
	if cfg.Xi == 0 {
		cfg.Xi = 0.01
	}
	return &Bayes{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		gp:        newGaussianProcess(),
		bestSoFar: math.MaxFloat64,
	}, nil
}

func (b *Bayes) Name() string { return "bayes" }

func (b *Bayes) Propose(ctx context.Context) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.gp.observations() < b.cfg.InitialSamples {
		return Proposal{Token: uuid.NewString(), Config: b.cfg.Space.Sample(b.rng)}, nil
	}

	params := AcquisitionParams{Beta: b.cfg.Beta, Xi: b.cfg.Xi, BestSoFar: b.bestSoFar}
	var best model.Config
	bestScore := math.MaxFloat64
	for i := 0; i < b.cfg.Candidates; i++ {
		candidate := b.cfg.Space.Sample(b.rng)
		vec, err := b.cfg.Space.Vector(candidate)
		if err != nil {
			return Proposal{}, err
		}
		mean, variance := b.gp.predict(vec)
		if score := b.cfg.Acquisition(mean, variance, params); score < bestScore {
			bestScore = score
			best = candidate
		}
	}

	return Proposal{Token: uuid.NewString(), Config: best}, nil
}

func (b *Bayes) Observe(_ context.Context, obs Observation) error {
	if obs.Failed {
		return nil
	}
	vec, err := b.cfg.Space.Vector(obs.Config)
	if err != nil {
		return err
	}

	value := obs.Value
	if b.cfg.Mode == model.ModeMax {
		value = -value
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.gp.update(vec, value)
	if value < b.bestSoFar {
		b.bestSoFar = value
	}
	return nil
}

// Observations reports how many successful results the model holds.
func (b *Bayes) Observations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gp.observations()
}

var _ Algorithm = (*Bayes)(nil)
