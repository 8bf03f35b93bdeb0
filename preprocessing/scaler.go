package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/wagewizard/core/model"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

// スケーラーの種類
const (
	ScalerRobust   = "robust"
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// 定数特徴量とみなすスケールの閾値
const zeroScaleTolerance = 1e-8

// Scaler は学習済みパラメータを永続化できるスケーラー
//
// 全てのスケーラーは x' = (x - center) / scale のアフィン変換として表現され、
// 同じ ScalerParams 形式で保存される。
type Scaler interface {
	model.InverseTransformer
	IsFitted() bool
	Params() (ScalerParams, error)
}

// ScalerParams はスケーラーの永続化表現 (scaler.json)
type ScalerParams struct {
	Kind      string    `json:"kind"`
	NFeatures int       `json:"n_features"`
	Center    []float64 `json:"center"`
	Scale     []float64 `json:"scale"`
}

// NewScaler は種類名からスケーラーを作成する
func NewScaler(kind string) (Scaler, error) {
	switch kind {
	case ScalerRobust:
		return NewRobustScaler(), nil
	case ScalerStandard:
		return NewStandardScalerDefault(), nil
	case ScalerMinMax:
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("scaler", "must be robust, standard or minmax", kind)
	}
}

// ScalerFromParams は保存されたパラメータから学習済みスケーラーを復元する
func ScalerFromParams(p ScalerParams) (Scaler, error) {
	if p.NFeatures <= 0 || len(p.Center) != p.NFeatures || len(p.Scale) != p.NFeatures {
		return nil, errors.NewFeatureShapeError("startup", "scaler.json",
			[]int{p.NFeatures, p.NFeatures}, []int{len(p.Center), len(p.Scale)})
	}
	for j, s := range p.Scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.NewValueError("ScalerFromParams", fmt.Sprintf("invalid scale %v for feature %d", s, j))
		}
	}

	sc, err := NewScaler(p.Kind)
	if err != nil {
		return nil, err
	}
	var a *affine
	switch s := sc.(type) {
	case *RobustScaler:
		a = &s.affine
	case *StandardScaler:
		a = &s.affine
	case *MinMaxScaler:
		a = &s.affine
	}
	a.setFitted(append([]float64(nil), p.Center...), append([]float64(nil), p.Scale...), 0)
	return sc, nil
}

// affine は center/scale による変換の共通部分
type affine struct {
	state  *model.StateManager
	name   string
	kind   string
	center []float64
	scale  []float64
}

func newAffine(name, kind string) affine {
	return affine{state: model.NewStateManager(), name: name, kind: kind}
}

func (a *affine) setFitted(center, scale []float64, nSamples int) {
	a.center = center
	a.scale = scale
	a.state.SetFitted(len(center), nSamples)
}

// IsFitted はスケーラーが学習済みかどうかを返す
func (a *affine) IsFitted() bool {
	return a.state.IsFitted()
}

// Params は学習済みパラメータを返す
func (a *affine) Params() (ScalerParams, error) {
	if err := a.state.RequireFitted(a.name, "Params"); err != nil {
		return ScalerParams{}, err
	}
	return ScalerParams{
		Kind:      a.kind,
		NFeatures: len(a.center),
		Center:    append([]float64(nil), a.center...),
		Scale:     append([]float64(nil), a.scale...),
	}, nil
}

// Transform は学習済みパラメータでデータを変換する
func (a *affine) Transform(X mat.Matrix) (mat.Matrix, error) {
	return a.apply("Transform", X, func(v float64, j int) float64 {
		return (v - a.center[j]) / a.scale[j]
	})
}

// InverseTransform は変換されたデータを元のスケールに戻す
func (a *affine) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return a.apply("InverseTransform", X, func(v float64, j int) float64 {
		return v*a.scale[j] + a.center[j]
	})
}

func (a *affine) apply(method string, X mat.Matrix, f func(v float64, j int) float64) (mat.Matrix, error) {
	if err := a.state.RequireFitted(a.name, method); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := a.state.RequireFeatures(a.name+"."+method, c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, f(X.At(i, j), j))
		}
	}
	return result, nil
}

func (a *affine) String() string {
	if !a.IsFitted() {
		return a.name + "()"
	}
	return fmt.Sprintf("%s(n_features=%d)", a.name, len(a.center))
}

// columns は各列をコピーして返す
func columns(op string, X mat.Matrix) ([][]float64, int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
	}
	return cols, r, nil
}

// RobustScaler は外れ値に頑健なスケーラー
// 中央値を引き、四分位範囲 (25%〜75%) で割る
type RobustScaler struct {
	affine

	// QuantileRange はスケールに使う分位点 (デフォルト: [25, 75])
	QuantileRange [2]float64
}

// NewRobustScaler は新しいRobustScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewRobustScaler()
//	XScaled, err := scaler.FitTransform(X)
func NewRobustScaler() *RobustScaler {
	return &RobustScaler{
		affine:        newAffine("RobustScaler", ScalerRobust),
		QuantileRange: [2]float64{25, 75},
	}
}

// Fit は各特徴量の中央値と四分位範囲を計算する
// 四分位範囲が0の特徴量はスケール1で割る
func (s *RobustScaler) Fit(X mat.Matrix) error {
	cols, r, err := columns("RobustScaler.Fit", X)
	if err != nil {
		return err
	}

	center := make([]float64, len(cols))
	scale := make([]float64, len(cols))
	for j, col := range cols {
		sort.Float64s(col)
		center[j] = percentile(col, 50)
		iqr := percentile(col, s.QuantileRange[1]) - percentile(col, s.QuantileRange[0])
		if math.Abs(iqr) < zeroScaleTolerance {
			iqr = 1
		}
		scale[j] = iqr
	}

	s.setFitted(center, scale, r)
	return nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *RobustScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// percentile はソート済みの値に対して線形補間で q パーセンタイルを求める
// 位置 (n-1)*q/100 の前後の値を補間する
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := float64(n-1) * q / 100
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	affine

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		affine:   newAffine("StandardScaler", ScalerStandard),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから平均と母標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	cols, r, err := columns("StandardScaler.Fit", X)
	if err != nil {
		return err
	}

	center := make([]float64, len(cols))
	scale := make([]float64, len(cols))
	for j, col := range cols {
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			center[j] = mean
		}
		scale[j] = 1
		if s.WithStd && std >= zeroScaleTolerance {
			scale[j] = std
		}
	}

	s.setFitted(center, scale, r)
	return nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	affine

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		affine:       newAffine("MinMaxScaler", ScalerMinMax),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから最小値・最大値を計算する
//
// 変換 (x - min) / (max - min) * (b - a) + a を center/scale の形に直して保持する。
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	width := m.FeatureRange[1] - m.FeatureRange[0]
	if width <= 0 {
		return errors.NewValidationError("feature_range", "max must be greater than min", m.FeatureRange)
	}
	cols, r, err := columns("MinMaxScaler.Fit", X)
	if err != nil {
		return err
	}

	center := make([]float64, len(cols))
	scale := make([]float64, len(cols))
	for j, col := range cols {
		lo, hi := floats.Min(col), floats.Max(col)
		dataRange := hi - lo
		if math.Abs(dataRange) < zeroScaleTolerance {
			// 定数特徴量の場合、スケールを1に設定
			dataRange = 1
		}
		scale[j] = dataRange / width
		center[j] = lo - m.FeatureRange[0]*scale[j]
	}

	m.setFitted(center, scale, r)
	return nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}
