package model

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

// SaveJSON は値を整形済みJSONとしてファイルに保存する
//
// 同じディレクトリの一時ファイルに書き込んでからリネームするため、
// 読み手が書きかけのファイルを見ることはない。
//
// 使用例:
//
//	err := model.SaveJSON(filepath.Join(dir, "metrics.json"), report)
func SaveJSON(path string, v interface{}) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = SaveModelToWriter(v, tmp); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename into %s", path)
	}
	return nil
}

// LoadJSON はJSONファイルを読み込む
//
// ファイルが存在しない場合は ErrArtifactNotFound をラップしたエラーを返す。
func LoadJSON(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrArtifactNotFound, "open %s", path)
		}
		return errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	if err := LoadModelFromReader(v, file); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// SaveModelToWriter はモデルをio.WriterにJSONで保存する
func SaveModelToWriter(v interface{}, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.ReaderからJSONのモデルを読み込む
//
// 未知のフィールドはエラーになる。
func LoadModelFromReader(v interface{}, r io.Reader) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
