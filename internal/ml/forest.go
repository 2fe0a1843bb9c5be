package ml

import (
	"math"
	"math/rand"
	"runtime"
	"sync"

	"heart-insights/internal/common"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// RandomForest is a bagged ensemble of CART trees. Probabilities are the mean
// of the per-tree leaf class fractions.
type RandomForest struct {
	Trees       int
	MaxFeatures int // 0 selects floor(sqrt(features))
	Seed        int64
	Workers     int // 0 selects GOMAXPROCS

	trees       []*decisionTree
	importances []float64
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(trees int, seed int64, workers int) *RandomForest {
	if trees <= 0 {
		trees = common.DefaultForestTrees
	}
	return &RandomForest{Trees: trees, Seed: seed, Workers: workers}
}

// Fit grows every tree on its own bootstrap sample. Per-tree seeds are drawn
// up front so the fitted forest does not depend on goroutine scheduling.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}

	nFeatures := len(X[0])
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(nFeatures)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	if maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	rng := rand.New(rand.NewSource(rf.Seed))
	seeds := make([]int64, rf.Trees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > rf.Trees {
		workers = rf.Trees
	}

	trees := make([]*decisionTree, rf.Trees)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				trees[i] = growBootstrapTree(X, y, maxFeatures, seeds[i])
			}
		}()
	}
	for i := range trees {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	rf.trees = trees
	rf.importances = forestImportances(trees, nFeatures)

	log.Debug().
		Int("trees", rf.Trees).
		Int("max_features", maxFeatures).
		Int("workers", workers).
		Msg("Random forest fitted")
	return nil
}

func growBootstrapTree(X [][]float64, y []int, maxFeatures int, seed int64) *decisionTree {
	rng := rand.New(rand.NewSource(seed))
	n := len(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	t := newDecisionTree(maxFeatures, rng)
	t.fit(X, y, idx)
	return t
}

// forestImportances averages per-tree normalized impurity decreases. Trees
// that never split contribute nothing.
func forestImportances(trees []*decisionTree, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	used := 0
	for _, t := range trees {
		sum := floats.Sum(t.importances)
		if sum <= 0 {
			continue
		}
		for i, v := range t.importances {
			out[i] += v / sum
		}
		used++
	}
	if used == 0 {
		return out
	}
	floats.Scale(1/float64(used), out)
	if s := floats.Sum(out); s > 0 {
		floats.Scale(1/s, out)
	}
	return out
}

// PredictProba returns the mean class fractions over all trees.
func (rf *RandomForest) PredictProba(x []float64) [2]float64 {
	var p [2]float64
	for _, t := range rf.trees {
		v := t.predictProba(x)
		p[0] += v[0]
		p[1] += v[1]
	}
	n := float64(len(rf.trees))
	return [2]float64{p[0] / n, p[1] / n}
}

// Predict returns the class with the larger mean probability.
func (rf *RandomForest) Predict(x []float64) int {
	return argmax2(rf.PredictProba(x))
}

// FeatureImportances returns mean decrease in impurity per feature, summing
// to 1. The slice must not be modified.
func (rf *RandomForest) FeatureImportances() []float64 {
	return rf.importances
}
