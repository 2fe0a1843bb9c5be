package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TrainTestSplit shuffles row indices with seed and puts the first
// ceil(testSize*n) of them in the test partition.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size %v outside (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d rows with test size %v", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// StratifiedKFold assigns every row to one of k test folds, keeping the class
// ratio of each fold close to the overall ratio. Rows are not shuffled:
// within a class they fill folds in their original order. The returned slice
// holds the test indices of each fold in ascending order.
func StratifiedKFold(y []int, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if k > len(y) {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, len(y))
	}

	// classes are numbered by first appearance
	code := make(map[int]int)
	encoded := make([]int, len(y))
	for i, v := range y {
		c, ok := code[v]
		if !ok {
			c = len(code)
			code[v] = c
		}
		encoded[i] = c
	}
	nClasses := len(code)

	order := append([]int(nil), encoded...)
	sort.Ints(order)

	// allocation[f][c] counts class c among order[f], order[f+k], ...
	allocation := make([][]int, k)
	for f := range allocation {
		allocation[f] = make([]int, nClasses)
		for i := f; i < len(order); i += k {
			allocation[f][order[i]]++
		}
	}

	testFold := make([]int, len(y))
	for c := 0; c < nClasses; c++ {
		var assign []int
		for f := 0; f < k; f++ {
			for n := 0; n < allocation[f][c]; n++ {
				assign = append(assign, f)
			}
		}
		next := 0
		for i, e := range encoded {
			if e == c {
				testFold[i] = assign[next]
				next++
			}
		}
	}

	folds := make([][]int, k)
	for i, f := range testFold {
		folds[f] = append(folds[f], i)
	}
	return folds, nil
}

// complement returns the indices in [0, n) not present in sorted idx.
func complement(n int, idx []int) []int {
	out := make([]int, 0, n-len(idx))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(idx) && idx[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}

func take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}
