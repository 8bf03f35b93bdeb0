package model

import (
	"fmt"
)

// LayerWeights は1つの層の永続化表現
type LayerWeights struct {
	// Type は層の種類（dense, leaky_relu, dropout）
	Type string `json:"type"`

	// Dense 層のみ: 入力数、出力数、行優先の重み (In×Out) とバイアス
	In      int       `json:"in,omitempty"`
	Out     int       `json:"out,omitempty"`
	Weights []float64 `json:"weights,omitempty"`
	Bias    []float64 `json:"bias,omitempty"`

	// Alpha は LeakyReLU の負側の傾き
	Alpha float64 `json:"alpha,omitempty"`

	// Rate は Dropout の率（推論時は恒等写像）
	Rate float64 `json:"rate,omitempty"`
}

// ModelWeights はネットワークの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（MLPRegressor）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// NFeatures は入力の特徴量数
	NFeatures int `json:"n_features"`

	// Layers は入力側から順に並べた層
	Layers []LayerWeights `json:"layers"`

	// Hyperparameters は学習時のハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters,omitempty"`

	// Metadata は追加のメタデータ（ベストエポック等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}
	if mw.Version == "" {
		return fmt.Errorf("version is required")
	}
	if !mw.IsFitted {
		return fmt.Errorf("model is not fitted")
	}
	if len(mw.Layers) == 0 {
		return fmt.Errorf("fitted model must have layers")
	}

	width := mw.NFeatures
	for i, l := range mw.Layers {
		switch l.Type {
		case "dense":
			if l.In != width {
				return fmt.Errorf("layer %d: expected %d inputs, got %d", i, width, l.In)
			}
			if len(l.Weights) != l.In*l.Out || len(l.Bias) != l.Out {
				return fmt.Errorf("layer %d: weight shape does not match %dx%d", i, l.In, l.Out)
			}
			width = l.Out
		case "leaky_relu", "dropout":
		default:
			return fmt.Errorf("layer %d: unknown type %q", i, l.Type)
		}
	}
	if width != 1 {
		return fmt.Errorf("network must end in a single output, got %d", width)
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		NFeatures:       mw.NFeatures,
		IsFitted:        mw.IsFitted,
		Layers:          make([]LayerWeights, len(mw.Layers)),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}

	for i, l := range mw.Layers {
		c := l
		c.Weights = append([]float64(nil), l.Weights...)
		c.Bias = append([]float64(nil), l.Bias...)
		clone.Layers[i] = c
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
