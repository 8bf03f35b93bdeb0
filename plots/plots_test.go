package plots

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleData() Data {
	d := Data{}
	for i := 0; i < 20; i++ {
		d.Loss = append(d.Loss, 1/float64(i+1))
		d.ValLoss = append(d.ValLoss, 1.2/float64(i+1))
	}
	for i := 0; i < 50; i++ {
		actual := 2000 + 150*float64(i)
		d.Actual = append(d.Actual, actual)
		d.Predicted = append(d.Predicted, actual+200*math.Sin(float64(i)))
	}
	return d
}

func TestRenderAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")

	paths, err := RenderAll(context.Background(), dir, sampleData())
	require.NoError(t, err)
	require.Len(t, paths, len(Files()))

	for i, name := range Files() {
		assert.Equal(t, filepath.Join(dir, name), paths[i])
		raw, err := os.ReadFile(paths[i])
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(raw, pngMagic), "%s is not a PNG", name)
	}
}

func TestRenderAllWithoutValidationLoss(t *testing.T) {
	d := sampleData()
	d.ValLoss = nil

	_, err := RenderAll(context.Background(), t.TempDir(), d)
	assert.NoError(t, err)
}

func TestRenderAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RenderAll(ctx, t.TempDir(), sampleData())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDataValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Data)
	}{
		{"empty loss", func(d *Data) { d.Loss = nil }},
		{"no predictions", func(d *Data) { d.Actual, d.Predicted = nil, nil }},
		{"length mismatch", func(d *Data) { d.Predicted = d.Predicted[:10] }},
		{"non-finite prediction", func(d *Data) { d.Predicted[3] = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sampleData()
			tt.mutate(&d)
			assert.Error(t, d.Validate())
		})
	}
}

func TestResidualsAndAbsoluteErrors(t *testing.T) {
	d := Data{Actual: []float64{10, 20, 30}, Predicted: []float64{12, 18, 30}}
	assert.Equal(t, []float64{-2, 2, 0}, d.Residuals())
	assert.Equal(t, []float64{2, 2, 0}, d.AbsoluteErrors())
}

func TestKDE(t *testing.T) {
	samples := []float64{1, 2, 2.5, 3, 4, 4.5, 5, 7}
	k, ok := NewKDE(samples)
	require.True(t, ok)
	assert.Greater(t, k.Bandwidth(), 0.0)

	// trapezoidal integral over the support is close to one
	lo, hi := k.Support()
	const n = 2000
	step := (hi - lo) / n
	var area float64
	for i := 0; i < n; i++ {
		x := lo + float64(i)*step
		area += step * (k.Density(x) + k.Density(x+step)) / 2
	}
	assert.InDelta(t, 1.0, area, 0.01)

	_, ok = NewKDE([]float64{3, 3, 3})
	assert.False(t, ok)
	_, ok = NewKDE([]float64{1})
	assert.False(t, ok)
}

func TestValidateReportsDimension(t *testing.T) {
	d := sampleData()
	d.Predicted = d.Predicted[:1]
	var de *errors.DimensionError
	assert.True(t, errors.As(d.Validate(), &de))
}
