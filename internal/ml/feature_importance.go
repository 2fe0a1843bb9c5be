package ml

import (
	"math/rand"
	"sort"
)

// FeatureScore is the importance of one input column.
type FeatureScore struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// RankImportances pairs scores with column names and sorts them ascending by
// score. Ties keep column order.
func RankImportances(columns []string, scores []float64) []FeatureScore {
	out := make([]FeatureScore, 0, len(columns))
	for i, c := range columns {
		if i >= len(scores) {
			break
		}
		out = append(out, FeatureScore{Feature: c, Score: scores[i]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}

// PermutationImportance measures the mean accuracy drop of clf on (X, y) when
// one column at a time is shuffled across rows. It serves models without a
// built-in importance measure.
func PermutationImportance(clf Classifier, X [][]float64, y []int, repeats int, seed int64) []float64 {
	if len(X) == 0 {
		return nil
	}
	if repeats < 1 {
		repeats = 1
	}

	rng := rand.New(rand.NewSource(seed))
	baseline := Evaluate(clf, X, y).Accuracy
	nFeatures := len(X[0])
	out := make([]float64, nFeatures)

	permuted := make([][]float64, len(X))
	for i := range X {
		permuted[i] = append([]float64(nil), X[i]...)
	}

	for f := 0; f < nFeatures; f++ {
		var drop float64
		for r := 0; r < repeats; r++ {
			perm := rng.Perm(len(X))
			for i, j := range perm {
				permuted[i][f] = X[j][f]
			}
			drop += baseline - Evaluate(clf, permuted, y).Accuracy
		}
		out[f] = drop / float64(repeats)

		for i := range X {
			permuted[i][f] = X[i][f]
		}
	}
	return out
}
