package metrics

import (
	"math"

	"github.com/YuminosukeSato/wagewizard/core/model"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MetricsFile is the artifact name of the persisted evaluation report.
const MetricsFile = "metrics.json"

// Report holds the held-out evaluation of a trained model. Field names
// match the JSON object served by GET /metrics.
type Report struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Evaluate computes MAE, RMSE and R² of yPred against yTrue.
// Non-finite predictions are rejected rather than propagated into the report.
func Evaluate(yTrue, yPred mat.Vector) (Report, error) {
	for i := 0; i < yPred.Len(); i++ {
		if v := yPred.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return Report{}, errors.CheckScalar("metrics.Evaluate", v, i)
		}
	}

	var (
		r   Report
		err error
	)
	if r.MAE, err = MAE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.RMSE, err = RMSE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.R2, err = R2Score(yTrue, yPred); err != nil {
		return Report{}, err
	}
	return r, nil
}

// Save writes the report as indented JSON to path.
func (r Report) Save(path string) error {
	return model.SaveJSON(path, r)
}

// LoadReport reads a report written by Save. A missing file yields an
// error wrapping errors.ErrArtifactNotFound.
func LoadReport(path string) (Report, error) {
	var r Report
	if err := model.LoadJSON(path, &r); err != nil {
		return Report{}, err
	}
	return r, nil
}
