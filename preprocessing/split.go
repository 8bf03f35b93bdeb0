package preprocessing

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
)

// TrainTestSplit は 0..n-1 の添字をシード付きでシャッフルし、学習用と評価用に分ける
//
// 評価用の件数は ceil(n*testSize)。同じ n, testSize, seed からは常に同じ分割になる。
func TrainTestSplit(n int, testSize float64, seed uint64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(float64(n) * testSize))
	if n < 2 || nTest >= n {
		return nil, nil, errors.NewValidationError("n_samples", "too few samples to split", n)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	return indices[nTest:], indices[:nTest], nil
}

// SelectRows は添字の順に X の行と y の要素を取り出す
func SelectRows(X mat.Matrix, y mat.Vector, indices []int) (*mat.Dense, *mat.VecDense) {
	_, c := X.Dims()
	Xs := mat.NewDense(len(indices), c, nil)
	ys := mat.NewVecDense(len(indices), nil)
	for i, idx := range indices {
		for j := 0; j < c; j++ {
			Xs.Set(i, j, X.At(idx, j))
		}
		ys.SetVec(i, y.AtVec(idx))
	}
	return Xs, ys
}
