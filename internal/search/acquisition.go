package search

import "math"

// AcquisitionFunc scores a candidate from the model's predicted mean
// and variance. Lower is more promising; scoring is done in
// minimization space regardless of the experiment's metric mode.
type AcquisitionFunc func(mean, variance float64, p AcquisitionParams) float64

// AcquisitionParams carries the tunables shared by the built-in
// acquisition functions.
type AcquisitionParams struct {
	// Beta weights exploration in UCB. Higher values favor uncertain
	// regions.
	Beta float64

	// Xi is the minimum improvement margin used by EI.
	Xi float64

	// BestSoFar is the best value observed so far, maintained by the
	// searcher between proposals.
	BestSoFar float64
}

// UCB is the lower confidence bound: predicted mean discounted by the
// uncertainty around it.
func UCB(mean, variance float64, p AcquisitionParams) float64 {
	return mean - p.Beta*math.Sqrt(variance)
}

// ExpectedImprovement scores a candidate by how much it is expected to
// improve on the best observation, negated so that lower is better.
func ExpectedImprovement(mean, variance float64, p AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		return 0
	}
	z := (p.BestSoFar - mean - p.Xi) / sigma
	ei := (p.BestSoFar-mean-p.Xi)*normalCDF(z) + sigma*normalPDF(z)
	return -ei
}

func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}
