package neural

import "math"

// Adam is the Adam optimizer with bias-corrected step size.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t int
	m [][]float64
	v [][]float64
}

// NewAdam returns an optimizer with the usual moment decay rates.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
	}
}

// Step applies one update to every parameter from its current gradient.
func (a *Adam) Step(ps []param) {
	if a.m == nil {
		a.m = make([][]float64, len(ps))
		a.v = make([][]float64, len(ps))
		for i, p := range ps {
			a.m[i] = make([]float64, len(p.value))
			a.v[i] = make([]float64, len(p.value))
		}
	}

	a.t++
	lr := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, float64(a.t))) / (1 - math.Pow(a.Beta1, float64(a.t)))

	for i, p := range ps {
		m, v := a.m[i], a.v[i]
		for k, g := range p.grad {
			m[k] = a.Beta1*m[k] + (1-a.Beta1)*g
			v[k] = a.Beta2*v[k] + (1-a.Beta2)*g*g
			p.value[k] -= lr * m[k] / (math.Sqrt(v[k]) + a.Epsilon)
		}
	}
}
