package metrics

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

func TestEvaluate(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1000, 2000, 3000, 4000})
	yPred := mat.NewVecDense(4, []float64{1100, 1900, 3100, 3900})

	r, err := Evaluate(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, r.MAE, 1e-9)
	assert.InDelta(t, 100.0, r.RMSE, 1e-9)
	assert.InDelta(t, 1-40000.0/5000000.0, r.R2, 1e-12)
}

func TestEvaluateRejectsNonFinitePredictions(t *testing.T) {
	yTrue := mat.NewVecDense(2, []float64{1, 2})
	yPred := mat.NewVecDense(2, []float64{1, math.NaN()})

	_, err := Evaluate(yTrue, yPred)
	var nie *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &nie))
}

func TestEvaluateDimensionMismatch(t *testing.T) {
	_, err := Evaluate(mat.NewVecDense(3, nil), mat.NewVecDense(2, nil))
	assert.Error(t, err)
}

func TestReportSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), MetricsFile)
	want := Report{MAE: 812.5, RMSE: 1034.25, R2: 0.93}

	require.NoError(t, want.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mae":812.5,"rmse":1034.25,"r2":0.93}`, string(raw))

	got, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadReportMissing(t *testing.T) {
	_, err := LoadReport(filepath.Join(t.TempDir(), MetricsFile))
	assert.True(t, errors.Is(err, errors.ErrArtifactNotFound))
}
