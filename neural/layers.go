package neural

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/core/model"
)

// Layer type names used in model.json.
const (
	layerDense     = "dense"
	layerLeakyReLU = "leaky_relu"
	layerDropout   = "dropout"
)

// param is a trainable tensor and its gradient, both flat views.
type param struct {
	value []float64
	grad  []float64
}

// layer is one stage of the network.
//
// forward and backward cache activations on the layer and are only called
// from Fit. infer never writes to the layer and may run concurrently.
type layer interface {
	forward(x *mat.Dense, rng *rand.Rand) *mat.Dense
	backward(grad *mat.Dense) *mat.Dense
	infer(x *mat.Dense) *mat.Dense
	params() []param
	weights() model.LayerWeights
}

// Dense is a fully connected layer computing x·W + b.
type Dense struct {
	in, out int
	w       *mat.Dense
	b       []float64

	gradW *mat.Dense
	gradB []float64
	input *mat.Dense
}

// newDense creates a Dense layer with Glorot-uniform weights and zero bias.
func newDense(in, out int, rng *rand.Rand) *Dense {
	limit := math.Sqrt(6 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return denseFromWeights(in, out, data, make([]float64, out))
}

func denseFromWeights(in, out int, w, b []float64) *Dense {
	return &Dense{
		in:    in,
		out:   out,
		w:     mat.NewDense(in, out, w),
		b:     b,
		gradW: mat.NewDense(in, out, nil),
		gradB: make([]float64, out),
	}
}

func (d *Dense) affine(x *mat.Dense) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, d.out, nil)
	out.Mul(x, d.w)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += d.b[j]
		}
	}
	return out
}

func (d *Dense) forward(x *mat.Dense, _ *rand.Rand) *mat.Dense {
	d.input = x
	return d.affine(x)
}

func (d *Dense) backward(grad *mat.Dense) *mat.Dense {
	d.gradW.Mul(d.input.T(), grad)

	r, _ := grad.Dims()
	for j := range d.gradB {
		d.gradB[j] = 0
	}
	for i := 0; i < r; i++ {
		for j, g := range grad.RawRowView(i) {
			d.gradB[j] += g
		}
	}

	dx := mat.NewDense(r, d.in, nil)
	dx.Mul(grad, d.w.T())
	return dx
}

func (d *Dense) infer(x *mat.Dense) *mat.Dense {
	return d.affine(x)
}

func (d *Dense) params() []param {
	return []param{
		{value: d.w.RawMatrix().Data, grad: d.gradW.RawMatrix().Data},
		{value: d.b, grad: d.gradB},
	}
}

func (d *Dense) weights() model.LayerWeights {
	return model.LayerWeights{
		Type:    layerDense,
		In:      d.in,
		Out:     d.out,
		Weights: append([]float64(nil), d.w.RawMatrix().Data...),
		Bias:    append([]float64(nil), d.b...),
	}
}

// LeakyReLU passes positive values and scales negative ones by alpha.
type LeakyReLU struct {
	alpha float64
	input *mat.Dense
}

func (l *LeakyReLU) apply(x *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(x)
	data := out.RawMatrix().Data
	for i, v := range data {
		if v < 0 {
			data[i] = v * l.alpha
		}
	}
	return out
}

func (l *LeakyReLU) forward(x *mat.Dense, _ *rand.Rand) *mat.Dense {
	l.input = x
	return l.apply(x)
}

func (l *LeakyReLU) backward(grad *mat.Dense) *mat.Dense {
	dx := mat.DenseCopyOf(grad)
	data := dx.RawMatrix().Data
	in := l.input.RawMatrix().Data
	for i := range data {
		if in[i] < 0 {
			data[i] *= l.alpha
		}
	}
	return dx
}

func (l *LeakyReLU) infer(x *mat.Dense) *mat.Dense { return l.apply(x) }
func (l *LeakyReLU) params() []param               { return nil }

func (l *LeakyReLU) weights() model.LayerWeights {
	return model.LayerWeights{Type: layerLeakyReLU, Alpha: l.alpha}
}

// Dropout zeroes a fraction rate of activations while training and scales
// the survivors by 1/(1-rate). It is the identity at inference.
type Dropout struct {
	rate float64
	mask []float64
}

func (d *Dropout) forward(x *mat.Dense, rng *rand.Rand) *mat.Dense {
	out := mat.DenseCopyOf(x)
	data := out.RawMatrix().Data
	d.mask = make([]float64, len(data))
	keep := 1 / (1 - d.rate)
	for i := range data {
		if rng.Float64() >= d.rate {
			d.mask[i] = keep
		}
		data[i] *= d.mask[i]
	}
	return out
}

func (d *Dropout) backward(grad *mat.Dense) *mat.Dense {
	dx := mat.DenseCopyOf(grad)
	data := dx.RawMatrix().Data
	for i := range data {
		data[i] *= d.mask[i]
	}
	return dx
}

func (d *Dropout) infer(x *mat.Dense) *mat.Dense { return x }
func (d *Dropout) params() []param               { return nil }

func (d *Dropout) weights() model.LayerWeights {
	return model.LayerWeights{Type: layerDropout, Rate: d.rate}
}
