// Package neural implements the feed-forward regression network: dense
// layers with LeakyReLU activations and dropout, trained with Adam on a
// mean squared error loss with early stopping on a held-back validation
// slice.
package neural

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/core/model"
	"github.com/YuminosukeSato/wagewizard/core/parallel"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

// ModelType is the model_type recorded in model.json.
const ModelType = "MLPRegressor"

// formatVersion is bumped when the model.json layout changes.
const formatVersion = "1"

// Rows per goroutine below which prediction stays on the calling goroutine.
const parallelThreshold = 256

var (
	_ model.Predictor   = (*Network)(nil)
	_ model.Persistable = (*Network)(nil)
)

// Config describes the architecture and the optimizer.
type Config struct {
	HiddenUnits  []int
	DropoutRates []float64 // one per hidden layer, applied after its activation
	Alpha        float64   // LeakyReLU negative slope
	LearningRate float64
	Seed         uint64
}

// DefaultConfig returns the 256-128-64 network.
func DefaultConfig() Config {
	return Config{
		HiddenUnits:  []int{256, 128, 64},
		DropoutRates: []float64{0.2, 0.2, 0.1},
		Alpha:        0.1,
		LearningRate: 0.001,
		Seed:         42,
	}
}

// FitConfig controls a training run.
type FitConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64 // fraction taken from the end of the training rows
	Patience        int     // early stopping patience on val_loss, 0 disables
	Callbacks       []Callback
}

// DefaultFitConfig returns 200 epochs of batch 32 with a 10% validation
// slice and patience 10.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Epochs:          200,
		BatchSize:       32,
		ValidationSplit: 0.1,
		Patience:        10,
	}
}

// History holds per-epoch training curves.
//
// ValLoss and ValMAE stay empty when Fit ran without a validation slice.
type History struct {
	Loss    []float64 `json:"loss"`
	ValLoss []float64 `json:"val_loss"`
	MAE     []float64 `json:"mae"`
	ValMAE  []float64 `json:"val_mae"`

	// BestEpoch is the 1-based epoch whose weights the network holds after Fit.
	BestEpoch    int  `json:"best_epoch"`
	Epochs       int  `json:"epochs"`
	EarlyStopped bool `json:"early_stopped"`
}

// Network is a sequential stack of layers ending in a single linear output.
// After Fit or Load it is read-only and Predict is safe for concurrent use.
type Network struct {
	cfg       Config
	nFeatures int
	layers    []layer
	state     *model.StateManager
	rng       *rand.Rand
	meta      map[string]interface{}
}

// NewMLP builds an untrained network for nFeatures inputs.
func NewMLP(nFeatures int, cfg Config) (*Network, error) {
	if nFeatures <= 0 {
		return nil, errors.NewValidationError("n_features", "must be positive", nFeatures)
	}
	if len(cfg.HiddenUnits) == 0 || len(cfg.HiddenUnits) != len(cfg.DropoutRates) {
		return nil, errors.NewValidationError("hidden_units", "need one dropout rate per hidden layer", cfg.HiddenUnits)
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.NewValidationError("learning_rate", "must be positive", cfg.LearningRate)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	n := &Network{
		cfg:       cfg,
		nFeatures: nFeatures,
		state:     model.NewStateManager(),
		rng:       rng,
	}

	in := nFeatures
	for i, units := range cfg.HiddenUnits {
		rate := cfg.DropoutRates[i]
		if units <= 0 {
			return nil, errors.NewValidationError("hidden_units", "must be positive", units)
		}
		if rate < 0 || rate >= 1 {
			return nil, errors.NewValidationError("dropout", "must be in [0, 1)", rate)
		}
		n.layers = append(n.layers,
			newDense(in, units, rng),
			&LeakyReLU{alpha: cfg.Alpha},
			&Dropout{rate: rate},
		)
		in = units
	}
	n.layers = append(n.layers, newDense(in, 1, rng))
	return n, nil
}

// NFeatures returns the input width.
func (n *Network) NFeatures() int {
	return n.nFeatures
}

// IsFitted reports whether the network holds trained weights.
func (n *Network) IsFitted() bool {
	return n.state.IsFitted()
}

func (n *Network) params() []param {
	var ps []param
	for _, l := range n.layers {
		ps = append(ps, l.params()...)
	}
	return ps
}

func (n *Network) snapshot() [][]float64 {
	ps := n.params()
	s := make([][]float64, len(ps))
	for i, p := range ps {
		s[i] = append([]float64(nil), p.value...)
	}
	return s
}

func (n *Network) restore(s [][]float64) {
	for i, p := range n.params() {
		copy(p.value, s[i])
	}
}

func (n *Network) infer(x *mat.Dense) *mat.Dense {
	for _, l := range n.layers {
		x = l.infer(x)
	}
	return x
}

// Fit trains the network on X (n×NFeatures) and y.
//
// The last ValidationSplit fraction of the rows is held back unshuffled for
// validation. Training rows are reshuffled every epoch. When early stopping
// is enabled, or the epoch cap is reached, the weights of the epoch with the
// lowest validation loss are restored. Cancellation of ctx is checked between
// batches.
func (n *Network) Fit(ctx context.Context, X mat.Matrix, y mat.Vector, fc FitConfig) (hist *History, err error) {
	defer errors.Recover(&err, "Network.Fit")

	r, c := X.Dims()
	if c != n.nFeatures {
		return nil, errors.NewDimensionError("Network.Fit", n.nFeatures, c, 1)
	}
	if y.Len() != r {
		return nil, errors.NewDimensionError("Network.Fit", r, y.Len(), 0)
	}
	if fc.Epochs <= 0 || fc.BatchSize <= 0 {
		return nil, errors.NewValidationError("epochs/batch_size", "must be positive", [2]int{fc.Epochs, fc.BatchSize})
	}
	if fc.ValidationSplit < 0 || fc.ValidationSplit >= 1 {
		return nil, errors.NewValidationError("validation_split", "must be in [0, 1)", fc.ValidationSplit)
	}

	nTrain := r
	if fc.ValidationSplit > 0 {
		nTrain = int(math.Floor(float64(r) * (1 - fc.ValidationSplit)))
	}
	if nTrain < 1 || (fc.ValidationSplit > 0 && nTrain >= r) {
		return nil, errors.NewValidationError("n_samples", "too few samples for the validation split", r)
	}

	xs := mat.DenseCopyOf(X)
	ys := make([]float64, r)
	for i := range ys {
		ys[i] = y.AtVec(i)
	}
	var xVal *mat.Dense
	if nTrain < r {
		xVal = xs.Slice(nTrain, r, 0, c).(*mat.Dense)
	}

	order := make([]int, nTrain)
	for i := range order {
		order[i] = i
	}

	opt := NewAdam(n.cfg.LearningRate)
	ps := n.params()
	es := NewEarlyStopping(fc.Patience)
	var best [][]float64

	hist = &History{}
	start := time.Now()
	for epoch := 1; epoch <= fc.Epochs; epoch++ {
		n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sumSq, sumAbs float64
		for b := 0; b < nTrain; b += fc.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrapf(err, "training cancelled at epoch %d", epoch)
			}
			end := b + fc.BatchSize
			if end > nTrain {
				end = nTrain
			}
			sq, abs := n.trainBatch(xs, ys, order[b:end], opt, ps)
			sumSq += sq
			sumAbs += abs
		}

		loss, mae := sumSq/float64(nTrain), sumAbs/float64(nTrain)
		if err := errors.CheckScalar("loss", loss, epoch); err != nil {
			return nil, err
		}

		monitor := loss
		valLoss, valMAE := math.NaN(), math.NaN()
		if xVal != nil {
			valLoss, valMAE = regressionLoss(n.infer(xVal), ys[nTrain:])
			if err := errors.CheckScalar("val_loss", valLoss, epoch); err != nil {
				return nil, err
			}
			monitor = valLoss
		}

		improved, stop := es.Update(epoch, monitor)
		if improved {
			best = n.snapshot()
		}

		hist.Loss = append(hist.Loss, loss)
		hist.MAE = append(hist.MAE, mae)
		if xVal != nil {
			hist.ValLoss = append(hist.ValLoss, valLoss)
			hist.ValMAE = append(hist.ValMAE, valMAE)
		}
		hist.Epochs = epoch

		env := &EpochEnv{
			Epoch: epoch, Epochs: fc.Epochs,
			Loss: loss, ValLoss: valLoss, MAE: mae, ValMAE: valMAE,
			Improved: improved, BestEpoch: es.BestEpoch,
			Elapsed: time.Since(start),
		}
		for _, cb := range fc.Callbacks {
			if err := cb(env); err != nil {
				return nil, err
			}
		}

		if stop || env.StopTraining {
			hist.EarlyStopped = true
			break
		}
	}

	if best != nil {
		n.restore(best)
	}
	hist.BestEpoch = es.BestEpoch

	if !hist.EarlyStopped && es.BestEpoch == hist.Epochs {
		errors.Warn(errors.NewConvergenceWarning(ModelType, hist.Epochs,
			"validation loss was still improving at the last epoch"))
	}

	n.meta = map[string]interface{}{
		"best_epoch":    hist.BestEpoch,
		"epochs":        hist.Epochs,
		"early_stopped": hist.EarlyStopped,
		"train_samples": nTrain,
		"val_samples":   r - nTrain,
	}
	n.state.SetFitted(c, nTrain)
	return hist, nil
}

// trainBatch runs one forward/backward pass over the rows idx and applies an
// optimizer step. It returns the summed squared and absolute errors.
func (n *Network) trainBatch(xs *mat.Dense, ys []float64, idx []int, opt *Adam, ps []param) (sumSq, sumAbs float64) {
	_, c := xs.Dims()
	xb := mat.NewDense(len(idx), c, nil)
	for i, k := range idx {
		copy(xb.RawRowView(i), xs.RawRowView(k))
	}

	out := xb
	for _, l := range n.layers {
		out = l.forward(out, n.rng)
	}

	// d(mean squared error)/d(prediction)
	grad := mat.NewDense(len(idx), 1, nil)
	scale := 2 / float64(len(idx))
	for i, k := range idx {
		diff := out.At(i, 0) - ys[k]
		sumSq += diff * diff
		sumAbs += math.Abs(diff)
		grad.Set(i, 0, scale*diff)
	}

	g := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		g = n.layers[i].backward(g)
	}
	opt.Step(ps)
	return sumSq, sumAbs
}

func regressionLoss(pred *mat.Dense, y []float64) (mse, mae float64) {
	for i, v := range y {
		diff := pred.At(i, 0) - v
		mse += diff * diff
		mae += math.Abs(diff)
	}
	return mse / float64(len(y)), mae / float64(len(y))
}

// Predict returns an n×1 column of predictions for X.
func (n *Network) Predict(X mat.Matrix) (mat.Matrix, error) {
	return n.PredictContext(context.Background(), X)
}

// PredictContext predicts every row of X, splitting large inputs across
// goroutines. It does not modify the network.
func (n *Network) PredictContext(ctx context.Context, X mat.Matrix) (*mat.VecDense, error) {
	if err := n.state.RequireFitted(ModelType, "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := n.state.RequireFeatures("Network.Predict", c); err != nil {
		return nil, err
	}

	out := make([]float64, r)
	err := parallel.ParallelizeWithThreshold(ctx, r, parallelThreshold, func(_ context.Context, start, end int) error {
		chunk := mat.NewDense(end-start, c, nil)
		for i := start; i < end; i++ {
			row := chunk.RawRowView(i - start)
			for j := range row {
				row[j] = X.At(i, j)
			}
		}
		res := n.infer(chunk)
		for i := start; i < end; i++ {
			out[i] = res.At(i-start, 0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mat.NewVecDense(r, out), nil
}

// PredictOne predicts a single encoded and scaled feature vector.
func (n *Network) PredictOne(features []float64) (float64, error) {
	if err := n.state.RequireFitted(ModelType, "Predict"); err != nil {
		return 0, err
	}
	if err := n.state.RequireFeatures("Network.PredictOne", len(features)); err != nil {
		return 0, err
	}
	x := mat.NewDense(1, len(features), append([]float64(nil), features...))
	return n.infer(x).At(0, 0), nil
}
