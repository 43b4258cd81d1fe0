package search

import "math"

// gaussianProcess is a small RBF-kernel regression model over observed
// config vectors. It backs the Bayes searcher's predictions; callers
// are responsible for serializing access.
type gaussianProcess struct {
	x     [][]float64
	y     []float64
	sigma float64
}

func newGaussianProcess() *gaussianProcess {
	return &gaussianProcess{sigma: 1.0}
}

func (gp *gaussianProcess) kernel(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Exp(-sum / (2 * gp.sigma * gp.sigma))
}

// predict estimates the mean and variance of the objective at x from
// the observations seen so far. With no observations it returns the
// maximally uncertain (0, 1).
func (gp *gaussianProcess) predict(x []float64) (mean, variance float64) {
	if len(gp.x) == 0 {
		return 0, 1
	}

	k := make([]float64, len(gp.x))
	for i := range gp.x {
		k[i] = gp.kernel(x, gp.x[i])
	}

	var sum float64
	for i := range gp.x {
		sum += k[i] * gp.y[i]
	}
	mean = sum / float64(len(gp.x))

	variance = 1.0
	for i := range gp.x {
		for j := range gp.x {
			variance -= k[i] * k[j] / float64(len(gp.x))
		}
	}
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

func (gp *gaussianProcess) update(x []float64, y float64) {
	point := make([]float64, len(x))
	copy(point, x)
	gp.x = append(gp.x, point)
	gp.y = append(gp.y, y)
}

func (gp *gaussianProcess) observations() int {
	return len(gp.x)
}
