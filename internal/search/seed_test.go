package search

import (
	"context"
	"testing"

	"hypertune/internal/model"
)

func TestWithSeedPointsEmptyReturnsAlgorithmUnchanged(t *testing.T) {
	base := &stubAlgo{}
	if got := WithSeedPoints(base); got != Algorithm(base) {
		t.Fatal("empty seed list must return the algorithm unchanged")
	}
}

func TestSeedPointsProposedFirstInOrder(t *testing.T) {
	base := &stubAlgo{}
	algo := WithSeedPoints(base,
		model.Config{"n": int64(100)},
		model.Config{"n": int64(200)},
	)

	ctx := context.Background()
	for i, want := range []int64{100, 200} {
		prop, err := algo.Propose(ctx)
		if err != nil {
			t.Fatalf("propose %d: %v", i, err)
		}
		if prop.Token == "" {
			t.Fatalf("propose %d: empty token", i)
		}
		n, _ := prop.Config.Int("n")
		if n != want {
			t.Fatalf("propose %d: expected seed point %d, got %d", i, want, n)
		}
	}
	if base.proposals != 0 {
		t.Fatalf("wrapped algorithm proposed during seed phase: %d", base.proposals)
	}

	prop, err := algo.Propose(ctx)
	if err != nil {
		t.Fatalf("propose after seeds: %v", err)
	}
	if n, _ := prop.Config.Int("n"); n != 1 {
		t.Fatalf("expected first generated proposal, got n=%d", n)
	}
}

func TestSeedPointsForwardObservations(t *testing.T) {
	base := &stubAlgo{}
	algo := WithSeedPoints(base, model.Config{"n": int64(5)})

	ctx := context.Background()
	prop, err := algo.Propose(ctx)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := algo.Observe(ctx, Observation{Token: prop.Token, Config: prop.Config, Value: 2}); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if len(base.observed) != 1 {
		t.Fatalf("expected seed observation forwarded, got %d", len(base.observed))
	}
}

func TestSeedPointsAreClonedFromCaller(t *testing.T) {
	point := model.Config{"n": int64(1)}
	algo := WithSeedPoints(&stubAlgo{}, point)
	point["n"] = int64(999)

	prop, err := algo.Propose(context.Background())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if n, _ := prop.Config.Int("n"); n != 1 {
		t.Fatalf("caller mutation leaked into seed point: n=%d", n)
	}
}
