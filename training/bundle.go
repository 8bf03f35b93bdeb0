package training

import (
	"context"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/neural"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/preprocessing"
)

// Bundle is a trained model together with the preprocessing it was
// trained with. It is read-only once loaded and safe for concurrent use.
type Bundle struct {
	Table   *preprocessing.EncodingTable
	Encoder *preprocessing.Encoder
	Scaler  preprocessing.Scaler
	Network *neural.Network
}

// LoadBundle loads the encoding table, scaler and network from dir and
// checks that they agree on the feature width.
func LoadBundle(dir string) (*Bundle, error) {
	table, err := preprocessing.LoadEncodingTable(filepath.Join(dir, preprocessing.EncodingFile))
	if err != nil {
		return nil, errors.Wrap(err, "load encoding table")
	}
	enc, err := preprocessing.NewEncoder(table)
	if err != nil {
		return nil, err
	}
	scaler, err := preprocessing.LoadScaler(filepath.Join(dir, preprocessing.ScalerFile))
	if err != nil {
		return nil, errors.Wrap(err, "load scaler")
	}
	net, err := neural.LoadFile(filepath.Join(dir, neural.ModelFile))
	if err != nil {
		return nil, errors.Wrap(err, "load model")
	}

	params, err := scaler.Params()
	if err != nil {
		return nil, err
	}
	if params.NFeatures != enc.Width() {
		return nil, errors.NewModelError("LoadBundle", "artifact mismatch",
			errors.NewDimensionError("scaler", enc.Width(), params.NFeatures, 1))
	}
	if net.NFeatures() != enc.Width() {
		return nil, errors.NewModelError("LoadBundle", "artifact mismatch",
			errors.NewDimensionError("model", enc.Width(), net.NFeatures(), 1))
	}

	return &Bundle{Table: table, Encoder: enc, Scaler: scaler, Network: net}, nil
}

// Features encodes and scales employees into a model input matrix.
func (b *Bundle) Features(employees []preprocessing.Employee) (mat.Matrix, error) {
	if len(employees) == 0 {
		return nil, errors.NewModelError("Bundle.Features", "empty data", errors.ErrEmptyData)
	}
	X := mat.NewDense(len(employees), b.Encoder.Width(), nil)
	for i, e := range employees {
		X.SetRow(i, b.Encoder.EncodeEmployee(e))
	}
	return b.Scaler.Transform(X)
}

// Predict returns the predicted MonthlyIncome of each employee.
func (b *Bundle) Predict(ctx context.Context, employees []preprocessing.Employee) ([]float64, error) {
	X, err := b.Features(employees)
	if err != nil {
		return nil, err
	}
	pred, err := b.Network.PredictContext(ctx, X)
	if err != nil {
		return nil, err
	}
	return pred.RawVector().Data, nil
}

// PredictOne returns the predicted MonthlyIncome of a single employee.
func (b *Bundle) PredictOne(ctx context.Context, employee preprocessing.Employee) (float64, error) {
	pred, err := b.Predict(ctx, []preprocessing.Employee{employee})
	if err != nil {
		return 0, err
	}
	return pred[0], nil
}
