package sched

import (
	"testing"

	"hypertune/internal/model"
)

func report(trialID string, iteration int, value float64) model.Report {
	return model.Report{TrialID: trialID, Iteration: iteration, Value: value}
}

func TestNewASHAValidation(t *testing.T) {
	base := ASHAConfig{Mode: model.ModeMin, GracePeriod: 1, ReductionFactor: 2, MaxIterations: 10}

	bad := base
	bad.Mode = "sideways"
	if _, err := NewASHA(bad); err == nil {
		t.Fatal("expected error for unknown mode")
	}

	bad = base
	bad.GracePeriod = 0
	if _, err := NewASHA(bad); err == nil {
		t.Fatal("expected error for zero grace period")
	}

	bad = base
	bad.ReductionFactor = 1
	if _, err := NewASHA(bad); err == nil {
		t.Fatal("expected error for reduction factor <= 1")
	}

	bad = base
	bad.MaxIterations = 0
	if _, err := NewASHA(bad); err == nil {
		t.Fatal("expected error for max iterations below grace period")
	}
}

func TestRungLadderIsGeometric(t *testing.T) {
	a, err := NewASHA(ASHAConfig{Mode: model.ModeMin, GracePeriod: 1, ReductionFactor: 4, MaxIterations: 100})
	if err != nil {
		t.Fatalf("new asha: %v", err)
	}
	// Thresholds 1, 4, 16, 64; 256 exceeds the cap.
	if got := len(a.RungSizes()); got != 4 {
		t.Fatalf("expected 4 rungs, got %d", got)
	}
}

func TestBelowGracePeriodAlwaysContinues(t *testing.T) {
	a, err := NewASHA(ASHAConfig{Mode: model.ModeMin, GracePeriod: 5, ReductionFactor: 2, MaxIterations: 100})
	if err != nil {
		t.Fatalf("new asha: %v", err)
	}

	for iter := 0; iter < 5; iter++ {
		if got := a.OnReport(report("t1", iter, 1e9)); got != DecisionContinue {
			t.Fatalf("iteration %d: expected continue below grace, got %s", iter, got)
		}
	}
	for _, size := range a.RungSizes() {
		if size != 0 {
			t.Fatalf("below-grace reports must not populate rungs: %v", a.RungSizes())
		}
	}
}

func TestInsufficientSamplesNeverStop(t *testing.T) {
	// With eta=4 a rung needs 4 samples before its cutoff applies, so
	// the first two trials continue no matter how far apart they are.
	a, err := NewASHA(ASHAConfig{Mode: model.ModeMin, GracePeriod: 1, ReductionFactor: 4, MaxIterations: 100})
	if err != nil {
		t.Fatalf("new asha: %v", err)
	}

	if got := a.OnReport(report("t1", 1, 10)); got != DecisionContinue {
		t.Fatalf("first trial: expected continue, got %s", got)
	}
	if got := a.OnReport(report("t2", 1, 100)); got != DecisionContinue {
		t.Fatalf("second trial: expected continue with 2 samples, got %s", got)
	}
}

func TestStopsBelowCutoff(t *testing.T) {
	a, err := NewASHA(ASHAConfig{Mode: model.ModeMin, GracePeriod: 1, ReductionFactor: 2, MaxIterations: 100})
	if err != nil {
		t.Fatalf("new asha: %v", err)
	}

	if got := a.OnReport(report("good", 1, 1)); got != DecisionContinue {
		t.Fatalf("expected continue, got %s", got)
	}
	// Cutoff over [1, 10] at the median is 5.5; 10 is strictly worse.
	if got := a.OnReport(report("bad", 1, 10)); got != DecisionStop {
		t.Fatalf("expected stop, got %s", got)
	}
	// A third trial at the cutoff's better side survives.
	if got := a.OnReport(report("ok", 1, 0.5)); got != DecisionContinue {
		t.Fatalf("expected continue, got %s", got)
	}
}

func TestTiesAtCutoffContinue(t *testing.T) {
	a, err := NewASHA(ASHAConfig{Mode: model.ModeMin, GracePeriod: 1, ReductionFactor: 2, MaxIterations: 100})
	if err != nil {
		t.Fatalf("new asha: %v", err)
	}

	if got := a.OnReport(report("t1", 1, 5)); got != DecisionContinue {
		t.Fatalf("expected continue, got %s", got)
	}
	if got := a.OnReport(report("t2", 1, 5)); got != DecisionContinue {
		t.Fatalf("tie at the cutoff must continue, got %s", got)
	}
}

func TestMaxModeStopsLowValues(t *testing.T) {
	a, err := NewASHA(ASHAConfig{Mode: model.ModeMax, GracePeriod: 1, ReductionFactor: 2, MaxIterations: 100})
	if err != nil {
		t.Fatalf("new asha: %v", err)
	}

	if got := a.OnReport(report("high", 1, 10)); got != DecisionContinue {
		t.Fatalf("expected continue, got %s", got)
	}
	if got := a.OnReport(report("low", 1, 1)); got != DecisionStop {
		t.Fatalf("expected stop for low value under max mode, got %s", got)
	}
}

func TestTrialContributesToEachRungOnce(t *testing.T) {
	// Thresholds 1, 2, 4, 8.
	a, err := NewASHA(ASHAConfig{Mode: model.ModeMin, GracePeriod: 1, ReductionFactor: 2, MaxIterations: 8})
	if err != nil {
		t.Fatalf("new asha: %v", err)
	}

	// A late first report lands in the highest reached rung.
	a.OnReport(report("t1", 4, 1))
	if got := a.RungSizes(); got[0] != 0 || got[1] != 0 || got[2] != 1 {
		t.Fatalf("expected the iteration-4 rung only, got %v", got)
	}

	// The next report falls through to the highest unseen rung below.
	a.OnReport(report("t1", 5, 1))
	if got := a.RungSizes(); got[1] != 1 || got[2] != 1 {
		t.Fatalf("expected fall-through to the iteration-2 rung, got %v", got)
	}

	// Repeats at the same depth fill the remaining lower rung, then
	// stop contributing entirely.
	a.OnReport(report("t1", 6, 1))
	a.OnReport(report("t1", 7, 1))
	got := a.RungSizes()
	if got[0] != 1 || got[1] != 1 || got[2] != 1 || got[3] != 0 {
		t.Fatalf("expected one contribution per reached rung, got %v", got)
	}
}

func TestDecisionsAreDeterministic(t *testing.T) {
	build := func() *ASHA {
		a, err := NewASHA(ASHAConfig{Mode: model.ModeMin, GracePeriod: 1, ReductionFactor: 2, MaxIterations: 16})
		if err != nil {
			t.Fatalf("new asha: %v", err)
		}
		return a
	}
	a, b := build(), build()

	reports := []model.Report{
		report("t1", 1, 3),
		report("t2", 1, 7),
		report("t3", 1, 1),
		report("t1", 2, 2.5),
		report("t3", 2, 0.9),
		report("t2", 2, 7.5),
		report("t1", 4, 2.1),
	}
	for i, rep := range reports {
		left, right := a.OnReport(rep), b.OnReport(rep)
		if left != right {
			t.Fatalf("report %d: decisions diverged: %s vs %s", i, left, right)
		}
	}
}

func TestFIFONeverStops(t *testing.T) {
	var f FIFO
	if f.Name() != "fifo" {
		t.Fatalf("unexpected name: %s", f.Name())
	}
	for iter := 0; iter < 10; iter++ {
		if got := f.OnReport(report("t1", iter, float64(iter))); got != DecisionContinue {
			t.Fatalf("fifo must always continue, got %s", got)
		}
	}
}
