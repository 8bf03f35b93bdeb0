package plots

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// KDE is a one-dimensional Gaussian kernel density estimate.
type KDE struct {
	samples   []float64
	bandwidth float64
}

// NewKDE fits a Gaussian KDE using Scott's rule for the bandwidth,
// h = σ · n^(-1/5) with σ the sample standard deviation.
// It returns false when fewer than two samples are given or the samples
// have zero spread, in which case no density curve can be drawn.
func NewKDE(samples []float64) (*KDE, bool) {
	if len(samples) < 2 {
		return nil, false
	}
	sd := stat.StdDev(samples, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil, false
	}
	s := append([]float64(nil), samples...)
	sort.Float64s(s)
	return &KDE{
		samples:   s,
		bandwidth: sd * math.Pow(float64(len(s)), -0.2),
	}, true
}

// Bandwidth returns the kernel standard deviation.
func (k *KDE) Bandwidth() float64 { return k.bandwidth }

// Density evaluates the estimate at x.
func (k *KDE) Density(x float64) float64 {
	kernel := distuv.Normal{Mu: 0, Sigma: k.bandwidth}
	var sum float64
	for _, s := range k.samples {
		sum += kernel.Prob(x - s)
	}
	return sum / float64(len(k.samples))
}

// Support returns a plotting range that extends three bandwidths past
// the observed extremes, matching seaborn's default cut.
func (k *KDE) Support() (lo, hi float64) {
	return floats.Min(k.samples) - 3*k.bandwidth, floats.Max(k.samples) + 3*k.bandwidth
}
