package preprocessing

import (
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

func TestRobustScalerFit(t *testing.T) {
	// column 0: median 3, q25 2, q75 4 → IQR 2
	// column 1: constant → IQR 0 → scale 1
	X := mat.NewDense(5, 2, []float64{
		1, 7,
		2, 7,
		3, 7,
		4, 7,
		100, 7,
	})

	s := NewRobustScaler()
	if err := s.Fit(X); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	p, err := s.Params()
	if err != nil {
		t.Fatal(err)
	}

	if p.Kind != ScalerRobust || p.NFeatures != 2 {
		t.Errorf("params = %+v", p)
	}
	if p.Center[0] != 3 || p.Scale[0] != 2 {
		t.Errorf("column 0: center=%v scale=%v, want 3 and 2", p.Center[0], p.Scale[0])
	}
	if p.Center[1] != 7 || p.Scale[1] != 1 {
		t.Errorf("constant column: center=%v scale=%v, want 7 and 1", p.Center[1], p.Scale[1])
	}

	out, err := s.Transform(X)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.At(4, 0); got != 48.5 {
		t.Errorf("outlier scaled to %v, want 48.5", got)
	}
	if got := out.At(0, 1); got != 0 {
		t.Errorf("constant column scaled to %v, want 0", got)
	}
}

func TestPercentileInterpolates(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{25, 1.75},
		{50, 2.5},
		{75, 3.25},
		{100, 4},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.q); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("percentile(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestScalersInverseTransform(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		22, 1, 3000,
		35, 2, 5200,
		47, 3, 11000,
		58, 5, 19900,
	})

	for _, kind := range []string{ScalerRobust, ScalerStandard, ScalerMinMax} {
		t.Run(kind, func(t *testing.T) {
			s, err := NewScaler(kind)
			if err != nil {
				t.Fatal(err)
			}
			scaled, err := s.FitTransform(X)
			if err != nil {
				t.Fatalf("FitTransform() error = %v", err)
			}
			back, err := s.InverseTransform(scaled)
			if err != nil {
				t.Fatalf("InverseTransform() error = %v", err)
			}
			if !mat.EqualApprox(back, X, 1e-9) {
				t.Errorf("roundtrip mismatch:\n%v", mat.Formatted(back))
			}
		})
	}
}

func TestStandardScalerMoments(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	col := mat.Col(nil, 0, out)
	sum, sq := 0.0, 0.0
	for _, v := range col {
		sum += v
		sq += v * v
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("mean = %v, want 0", sum/4)
	}
	if math.Abs(sq/4-1) > 1e-12 {
		t.Errorf("population variance = %v, want 1", sq/4)
	}
}

func TestMinMaxScalerRange(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{10, 15, 20})
	s := NewMinMaxScaler([2]float64{-1, 1})
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{-1, 0, 1}
	for i, w := range want {
		if got := out.At(i, 0); math.Abs(got-w) > 1e-12 {
			t.Errorf("row %d = %v, want %v", i, got, w)
		}
	}

	bad := NewMinMaxScaler([2]float64{1, 1})
	if err := bad.Fit(X); err == nil {
		t.Error("empty feature range accepted")
	}
}

func TestScalerErrors(t *testing.T) {
	s := NewRobustScaler()

	_, err := s.Transform(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	if err := s.Fit(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})); err != nil {
		t.Fatal(err)
	}
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	if !errors.As(err, &dim) {
		t.Errorf("expected DimensionError, got %v", err)
	}

	if _, err := NewScaler("quantile"); err == nil {
		t.Error("unknown scaler kind accepted")
	}
}

func TestScalerFromParams(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 10, 2, 20, 3, 30, 4, 40})
	s := NewRobustScaler()
	want, err := s.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), ScalerFile)
	if err := SaveScaler(path, s); err != nil {
		t.Fatalf("SaveScaler() error = %v", err)
	}
	restored, err := LoadScaler(path)
	if err != nil {
		t.Fatalf("LoadScaler() error = %v", err)
	}
	if !restored.IsFitted() {
		t.Fatal("restored scaler should be fitted")
	}
	got, err := restored.Transform(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(got, want) {
		t.Error("restored scaler transforms differently")
	}

	bad := []ScalerParams{
		{Kind: ScalerRobust, NFeatures: 2, Center: []float64{0}, Scale: []float64{1, 1}},
		{Kind: ScalerRobust, NFeatures: 1, Center: []float64{0}, Scale: []float64{0}},
		{Kind: "quantile", NFeatures: 1, Center: []float64{0}, Scale: []float64{1}},
	}
	for _, p := range bad {
		if _, err := ScalerFromParams(p); err == nil {
			t.Errorf("ScalerFromParams(%+v) accepted invalid params", p)
		}
	}
}
