package neural

import (
	"io"
	"math/rand/v2"

	"github.com/YuminosukeSato/wagewizard/core/model"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

// ModelFile is the artifact name of a saved network.
const ModelFile = "model.json"

// Weights returns the serializable form of a fitted network.
func (n *Network) Weights() (*model.ModelWeights, error) {
	if err := n.state.RequireFitted(ModelType, "Weights"); err != nil {
		return nil, err
	}
	mw := &model.ModelWeights{
		ModelType: ModelType,
		Version:   formatVersion,
		NFeatures: n.nFeatures,
		IsFitted:  true,
		Hyperparameters: map[string]interface{}{
			"hidden_units":  n.cfg.HiddenUnits,
			"dropout_rates": n.cfg.DropoutRates,
			"alpha":         n.cfg.Alpha,
			"learning_rate": n.cfg.LearningRate,
			"seed":          n.cfg.Seed,
		},
		Metadata: n.meta,
	}
	for _, l := range n.layers {
		mw.Layers = append(mw.Layers, l.weights())
	}
	return mw, nil
}

// FromWeights rebuilds a fitted network from its serialized form.
func FromWeights(mw *model.ModelWeights) (*Network, error) {
	if mw.ModelType != ModelType {
		return nil, errors.NewValueError("neural.FromWeights", "unexpected model_type "+mw.ModelType)
	}
	if err := mw.Validate(); err != nil {
		return nil, errors.NewModelError("neural.FromWeights", "invalid model", err)
	}

	n := &Network{
		nFeatures: mw.NFeatures,
		state:     model.NewStateManager(),
		rng:       rand.New(rand.NewPCG(0, 0)),
		meta:      mw.Metadata,
	}
	for _, lw := range mw.Layers {
		switch lw.Type {
		case layerDense:
			n.layers = append(n.layers, denseFromWeights(lw.In, lw.Out,
				append([]float64(nil), lw.Weights...), append([]float64(nil), lw.Bias...)))
			n.cfg.HiddenUnits = append(n.cfg.HiddenUnits, lw.Out)
		case layerLeakyReLU:
			n.layers = append(n.layers, &LeakyReLU{alpha: lw.Alpha})
			n.cfg.Alpha = lw.Alpha
		case layerDropout:
			n.layers = append(n.layers, &Dropout{rate: lw.Rate})
			n.cfg.DropoutRates = append(n.cfg.DropoutRates, lw.Rate)
		}
	}
	// the output layer is not a hidden layer
	n.cfg.HiddenUnits = n.cfg.HiddenUnits[:len(n.cfg.HiddenUnits)-1]
	if lr, ok := mw.Hyperparameters["learning_rate"].(float64); ok {
		n.cfg.LearningRate = lr
	}

	n.state.SetFitted(mw.NFeatures, 0)
	return n, nil
}

// Save writes the network as JSON.
func (n *Network) Save(w io.Writer) error {
	mw, err := n.Weights()
	if err != nil {
		return err
	}
	return model.SaveModelToWriter(mw, w)
}

// Load replaces the receiver with the network read from r.
func (n *Network) Load(r io.Reader) error {
	var mw model.ModelWeights
	if err := model.LoadModelFromReader(&mw, r); err != nil {
		return err
	}
	loaded, err := FromWeights(&mw)
	if err != nil {
		return err
	}
	*n = *loaded
	return nil
}

// SaveFile atomically writes the network to path.
func (n *Network) SaveFile(path string) error {
	mw, err := n.Weights()
	if err != nil {
		return err
	}
	return model.SaveJSON(path, mw)
}

// LoadFile reads a network saved with SaveFile.
func LoadFile(path string) (*Network, error) {
	var mw model.ModelWeights
	if err := model.LoadJSON(path, &mw); err != nil {
		return nil, err
	}
	return FromWeights(&mw)
}
