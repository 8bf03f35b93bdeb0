package metrics

import (
	"math"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// checkPair は2つのベクトルが空でなく同じ長さであることを確認する
func checkPair(op string, yTrue, yPred mat.Vector) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}

	return sum / float64(n), nil
}

// RMSE は二乗平均平方根誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, errors.Wrap(err, "RMSE")
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}

	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// R² = 1 - SS_res / SS_tot
//
// yTrue が定数で SS_tot が0の場合、R²は定義できないため
// UndefinedMetricWarning を発行して0を返す。
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := mat.Col(nil, 0, yTrue)
	mean := stat.Mean(truth, nil)

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		res := truth[i] - yPred.AtVec(i)
		ssRes += res * res
		dev := truth[i] - mean
		ssTot += dev * dev
	}

	if ssTot == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("r2_score", "constant y_true", 0))
		return 0, nil
	}

	return 1 - ssRes/ssTot, nil
}

// MAPE は平均絶対パーセント誤差（Mean Absolute Percentage Error）を計算する
//
// 戻り値はパーセント表記。yTrue に0が含まれる場合はエラー。
func MAPE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		if t == 0 {
			return 0, errors.NewValueError("MAPE", "y_true contains zero")
		}
		sum += math.Abs((t - yPred.AtVec(i)) / t)
	}

	return 100 * sum / float64(n), nil
}

// ExplainedVarianceScore は説明分散スコアを計算する
//
// EV = 1 - Var(yTrue - yPred) / Var(yTrue)
func ExplainedVarianceScore(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := mat.Col(nil, 0, yTrue)
	residuals := make([]float64, n)
	for i := range residuals {
		residuals[i] = truth[i] - yPred.AtVec(i)
	}

	_, varTrue := stat.PopMeanVariance(truth, nil)
	_, varRes := stat.PopMeanVariance(residuals, nil)

	if varTrue == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("explained_variance", "constant y_true", 0))
		return 0, nil
	}

	return 1 - varRes/varTrue, nil
}
