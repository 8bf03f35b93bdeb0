package model

import (
	"io"

	"gonum.org/v1/gonum/mat"
)

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer は変換を元に戻せるTransformer
type InverseTransformer interface {
	Transformer

	// InverseTransform は変換前のスケールに戻す
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// Persistable は成果物として保存・復元できるモデルのインターフェース
type Persistable interface {
	// Save はモデルをJSONとしてwに書き出す
	Save(w io.Writer) error

	// Load はrからモデルを復元する
	Load(r io.Reader) error
}
