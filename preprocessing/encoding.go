package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

// AttributeEncoding は1つのカテゴリ属性の符号化
// コードは Categories 内の位置
type AttributeEncoding struct {
	Categories []string       `json:"categories"`
	Fallback   int            `json:"fallback"`
	Counts     map[string]int `json:"counts,omitempty"`
}

// Code は値のコードを返す。閉じた集合に含まれない値はフォールバックコードになる
func (a AttributeEncoding) Code(value string) (int, bool) {
	for i, c := range a.Categories {
		if c == value {
			return i, true
		}
	}
	return a.Fallback, false
}

// EncodingTable は学習時に作られ、encoding.json として保存される符号化表
// 推論サービスはこれを読み込むだけで再計算しない
type EncodingTable struct {
	Features   []string                     `json:"features"`
	Attributes map[string]AttributeEncoding `json:"attributes"`
}

// FitEncodingTable はスキーマの閉じたカテゴリ集合から符号化表を作り、
// 学習データで観測された値を数える。
//
// 集合外の値はエラーにせず、CategoryFallbackWarning で報告する。
func FitEncodingTable(schema Schema, rows []Row) (*EncodingTable, error) {
	if len(rows) == 0 {
		return nil, errors.NewModelError("FitEncodingTable", "empty data", errors.ErrEmptyData)
	}

	table := &EncodingTable{
		Features:   schema.FeatureNames(),
		Attributes: make(map[string]AttributeEncoding, len(schema.Categories)),
	}
	for _, f := range schema.Features {
		if !f.Categorical {
			continue
		}
		cat, ok := schema.Categories[f.Name]
		if !ok {
			return nil, errors.NewValueError("FitEncodingTable", fmt.Sprintf("no category set for %s", f.Name))
		}
		table.Attributes[f.Name] = AttributeEncoding{
			Categories: append([]string(nil), cat.Values...),
			Fallback:   cat.Fallback,
			Counts:     make(map[string]int, len(cat.Values)),
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	unknown := make(map[string]map[string]int)
	for i := range rows {
		for name, enc := range table.Attributes {
			value, _ := rows[i].categorical(name)
			if _, known := enc.Code(value); known {
				enc.Counts[value]++
				continue
			}
			if unknown[name] == nil {
				unknown[name] = make(map[string]int)
			}
			unknown[name][value]++
		}
	}

	for _, name := range sortedKeys(unknown) {
		fallback := table.Attributes[name].Fallback
		for _, value := range sortedKeys(unknown[name]) {
			errors.Warn(errors.NewCategoryFallbackWarning(name, value, unknown[name][value], fallback))
		}
	}
	return table, nil
}

// Validate は符号化表の整合性を検証する
func (t *EncodingTable) Validate() error {
	if len(t.Features) == 0 {
		return errors.NewValueError("EncodingTable", "no features")
	}
	blank := &Employee{}
	for _, name := range t.Features {
		if _, ok := blank.categorical(name); ok {
			enc, ok := t.Attributes[name]
			if !ok {
				return errors.NewValueError("EncodingTable", fmt.Sprintf("missing encoding for %s", name))
			}
			if len(enc.Categories) == 0 || enc.Fallback < 0 || enc.Fallback >= len(enc.Categories) {
				return errors.NewValueError("EncodingTable",
					fmt.Sprintf("fallback %d out of range for %s", enc.Fallback, name))
			}
			continue
		}
		if _, ok := blank.numeric(name); !ok {
			return errors.NewValueError("EncodingTable", fmt.Sprintf("unknown feature %s", name))
		}
	}
	return nil
}

// Code は属性値のコードを返す。未知の値はフォールバックコードと false を返す
func (t *EncodingTable) Code(attribute, value string) (int, bool) {
	enc, ok := t.Attributes[attribute]
	if !ok {
		return 0, false
	}
	return enc.Code(value)
}

// Encoder は従業員レコードを符号化表の特徴量順の数値ベクトルに変換する
// 学習後は不変で、並行に使用できる
type Encoder struct {
	table *EncodingTable
}

// NewEncoder は符号化表を検証してEncoderを作成する
func NewEncoder(table *EncodingTable) (*Encoder, error) {
	if table == nil {
		return nil, errors.NewValueError("NewEncoder", "nil encoding table")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{table: table}, nil
}

// Width は出力ベクトルの長さ
func (e *Encoder) Width() int {
	return len(e.table.Features)
}

// Table は符号化表を返す
func (e *Encoder) Table() *EncodingTable {
	return e.table
}

// EncodeEmployee は1レコードを特徴量順のベクトルに変換する
func (e *Encoder) EncodeEmployee(emp Employee) []float64 {
	out := make([]float64, len(e.table.Features))
	e.encodeInto(out, &emp)
	return out
}

func (e *Encoder) encodeInto(dst []float64, emp *Employee) {
	for j, name := range e.table.Features {
		if value, ok := emp.categorical(name); ok {
			code, _ := e.table.Code(name, value)
			dst[j] = float64(code)
			continue
		}
		p, _ := emp.numeric(name)
		dst[j] = float64(*p)
	}
}

// EncodeRows は行を (n×width) の特徴量行列と目的変数ベクトルに変換する
func (e *Encoder) EncodeRows(rows []Row) (*mat.Dense, *mat.VecDense, error) {
	if len(rows) == 0 {
		return nil, nil, errors.NewModelError("Encoder.EncodeRows", "empty data", errors.ErrEmptyData)
	}

	width := e.Width()
	X := mat.NewDense(len(rows), width, nil)
	y := mat.NewVecDense(len(rows), nil)
	for i := range rows {
		e.encodeInto(X.RawRowView(i), &rows[i].Employee)
		y.SetVec(i, float64(rows[i].MonthlyIncome))
	}
	return X, y, nil
}

// FilterWorkingYears は TotalWorkingYears が [min, max] の範囲にある行だけを残す
// 両端を含む。残った行と削除した行数を返す
func FilterWorkingYears(rows []Row, min, max int) ([]Row, int) {
	kept := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.TotalWorkingYears >= min && r.TotalWorkingYears <= max {
			kept = append(kept, r)
		}
	}
	return kept, len(rows) - len(kept)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
