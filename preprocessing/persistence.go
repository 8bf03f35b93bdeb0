package preprocessing

import (
	"github.com/YuminosukeSato/wagewizard/core/model"
)

// 成果物ファイル名
const (
	EncodingFile = "encoding.json"
	ScalerFile   = "scaler.json"
)

// SaveEncodingTable は符号化表を保存する
func SaveEncodingTable(path string, t *EncodingTable) error {
	return model.SaveJSON(path, t)
}

// LoadEncodingTable は保存された符号化表を読み込み、検証する
func LoadEncodingTable(path string) (*EncodingTable, error) {
	var t EncodingTable
	if err := model.LoadJSON(path, &t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveScaler は学習済みスケーラーのパラメータを保存する
func SaveScaler(path string, s Scaler) error {
	p, err := s.Params()
	if err != nil {
		return err
	}
	return model.SaveJSON(path, p)
}

// LoadScaler は保存されたパラメータからスケーラーを復元する
func LoadScaler(path string) (Scaler, error) {
	var p ScalerParams
	if err := model.LoadJSON(path, &p); err != nil {
		return nil, err
	}
	return ScalerFromParams(p)
}
