// Package errors はwagewizard全体のエラーハンドリングと警告システムを提供します。
// cockroachdb/errors によるスタックトレース付きの構造化エラーと、
// 学習パイプラインが発する警告（カテゴリのフォールバック、収束しなかった学習など）を扱います。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("wagewizard-warning: %v\n", w)
	}
	// 構造化ロガー（循環importを避けるため遅延初期化）
	structuredWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetStructuredWarnFunc は構造化ロガーへの警告関数を設定します（循環importを避けるため）。
// nil を渡すとフォールバックのハンドラに戻ります。
func SetStructuredWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	structuredWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// 構造化ロガーが設定されている場合はそちらを優先し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if structuredWarnFunc != nil {
		structuredWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は最大エポック数に達した時点で検証損失がまだ改善していた場合の警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d epochs: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d epochs. Consider increasing the epoch limit.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// CategoryFallbackWarning は閉じたカテゴリ集合に含まれない値がフォールバックコードに
// 置き換えられた場合の警告です。
type CategoryFallbackWarning struct {
	Attribute string
	Value     string
	Count     int
	Fallback  int
}

func (w *CategoryFallbackWarning) Error() string {
	return fmt.Sprintf("unknown %s value %q seen %d time(s), encoded with fallback code %d",
		w.Attribute, w.Value, w.Count, w.Fallback)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *CategoryFallbackWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("attribute", w.Attribute).
		Str("value", w.Value).
		Int("count", w.Count).
		Int("fallback", w.Fallback).
		Str("type", "CategoryFallbackWarning")
}

// NewCategoryFallbackWarning は新しいCategoryFallbackWarningを作成します。
func NewCategoryFallbackWarning(attribute, value string, count, fallback int) *CategoryFallbackWarning {
	return &CategoryFallbackWarning{Attribute: attribute, Value: value, Count: count, Fallback: fallback}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、目的変数が定数でR²が定義できない場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("wagewizard: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("wagewizard: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wagewizard: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("wagewizard: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wagewizard: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("wagewizard: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// DatasetError はデータセットの読み込み時に不正な行や列を検出した場合のエラーです。
// Line は1始まりのCSV行番号（ヘッダーは1行目）。列全体の欠落では0になります。
type DatasetError struct {
	Path   string
	Line   int
	Column string
	Reason string
}

func (e *DatasetError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("wagewizard: dataset %s: column %q: %s", e.Path, e.Column, e.Reason)
	}
	return fmt.Sprintf("wagewizard: dataset %s: line %d: column %q: %s", e.Path, e.Line, e.Column, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DatasetError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Int("line", e.Line).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "DatasetError")
}

// NewDatasetError は新しいDatasetErrorを作成し、スタックトレースを付与します。
func NewDatasetError(path string, line int, column, reason string) error {
	err := &DatasetError{Path: path, Line: line, Column: column, Reason: reason}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// ===========================================================================
//
//	学習特有のエラー型
//
// ===========================================================================

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN、Inf などを検出します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "loss", "prediction"）
	Values    []float64 // 問題のある値（最大5件まで表示）
	Iteration int       // 発生したエポック番号
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("wagewizard: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	}
	return errors.WithStack(err)
}

// InputShapeError は学習時と推論時で入力の形状が食い違う場合のエラーです。
// DimensionErrorより詳細で、どの成果物同士が不整合なのかを示します。
type InputShapeError struct {
	Phase    string // "training", "prediction", "transform", "startup"
	Expected []int  // 期待される形状
	Got      []int  // 実際の形状
	Feature  string // 問題のある成果物や特徴量名（オプション）
}

func (e *InputShapeError) Error() string {
	expectedStr := fmt.Sprintf("%v", e.Expected)
	gotStr := fmt.Sprintf("%v", e.Got)
	if e.Feature != "" {
		return fmt.Sprintf("wagewizard: input shape mismatch in %s phase for '%s'. Expected shape %s, got %s",
			e.Phase, e.Feature, expectedStr, gotStr)
	}
	return fmt.Sprintf("wagewizard: input shape mismatch in %s phase. Expected shape %s, got %s",
		e.Phase, expectedStr, gotStr)
}

// NewFeatureShapeError は特定の成果物に紐づくInputShapeErrorを作成します。
func NewFeatureShapeError(phase, feature string, expected, got []int) error {
	err := &InputShapeError{
		Phase:    phase,
		Expected: expected,
		Got:      got,
		Feature:  feature,
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrArtifactNotFound は必要な学習成果物が存在しない場合のエラーです。
	ErrArtifactNotFound = New("artifact not found")
)
