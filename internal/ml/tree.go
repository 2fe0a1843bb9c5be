package ml

import (
	"math/rand"
	"sort"
)

// minThresholdGap is the smallest gap between adjacent sorted values that
// still counts as a split point.
const minThresholdGap = 1e-7

const leafNode = -1

type treeNode struct {
	feature   int // leafNode for leaves
	threshold float64
	left      int
	right     int
	value     [2]float64 // class fractions of the training samples that reached the node
}

// decisionTree is a CART classifier grown to purity with gini impurity.
// Each split considers maxFeatures randomly chosen non-constant features.
type decisionTree struct {
	nodes       []treeNode
	importances []float64 // unnormalized weighted impurity decrease per feature
	maxFeatures int
	rng         *rand.Rand

	// scratch, valid only during fit
	X [][]float64
	y []int
}

func newDecisionTree(maxFeatures int, rng *rand.Rand) *decisionTree {
	return &decisionTree{maxFeatures: maxFeatures, rng: rng}
}

// fit grows the tree on the samples listed in idx. Repeated indices act as
// integer sample weights, which is how bootstrap draws are represented.
func (t *decisionTree) fit(X [][]float64, y []int, idx []int) {
	t.X, t.y = X, y
	t.nodes = t.nodes[:0]
	t.importances = make([]float64, len(X[0]))

	work := append([]int(nil), idx...)
	t.grow(work)

	t.X, t.y = nil, nil
}

func (t *decisionTree) grow(idx []int) int {
	counts := t.classCounts(idx)
	total := counts[0] + counts[1]

	id := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{
		feature: leafNode,
		value:   [2]float64{counts[0] / total, counts[1] / total},
	})

	if len(idx) < 2 || counts[0] == 0 || counts[1] == 0 {
		return id
	}

	split, ok := t.bestSplit(idx, counts)
	if !ok {
		return id
	}

	t.importances[split.feature] += total*gini(counts) -
		split.nLeft*gini(split.leftCounts) - split.nRight*gini(split.rightCounts)

	leftIdx, rightIdx := partition(t.X, idx, split.feature, split.threshold)

	left := t.grow(leftIdx)
	right := t.grow(rightIdx)

	t.nodes[id].feature = split.feature
	t.nodes[id].threshold = split.threshold
	t.nodes[id].left = left
	t.nodes[id].right = right
	return id
}

type nodeSplit struct {
	feature     int
	threshold   float64
	leftCounts  [2]float64
	rightCounts [2]float64
	nLeft       float64
	nRight      float64
	impurity    float64 // weighted child impurity, lower is better
}

func (t *decisionTree) bestSplit(idx []int, counts [2]float64) (nodeSplit, bool) {
	nFeatures := len(t.X[0])
	features := make([]int, nFeatures)
	for i := range features {
		features[i] = i
	}

	best := nodeSplit{impurity: -1}
	found := false
	visited := 0

	// Draw features without replacement until maxFeatures non-constant ones
	// have been evaluated or none are left.
	for remaining := nFeatures; remaining > 0 && visited < t.maxFeatures; remaining-- {
		j := t.rng.Intn(remaining)
		f := features[j]
		features[j], features[remaining-1] = features[remaining-1], features[j]

		sorted := append([]int(nil), idx...)
		sort.SliceStable(sorted, func(a, b int) bool {
			return t.X[sorted[a]][f] < t.X[sorted[b]][f]
		})
		if t.X[sorted[len(sorted)-1]][f] <= t.X[sorted[0]][f]+minThresholdGap {
			continue
		}
		visited++

		var left [2]float64
		total := counts[0] + counts[1]
		for i := 0; i < len(sorted)-1; i++ {
			left[t.y[sorted[i]]]++
			lo, hi := t.X[sorted[i]][f], t.X[sorted[i+1]][f]
			if hi <= lo+minThresholdGap {
				continue
			}
			right := [2]float64{counts[0] - left[0], counts[1] - left[1]}
			nLeft := left[0] + left[1]
			nRight := total - nLeft
			imp := nLeft*gini(left) + nRight*gini(right)
			if !found || imp < best.impurity {
				threshold := lo/2 + hi/2
				if threshold == hi {
					threshold = lo
				}
				best = nodeSplit{
					feature:     f,
					threshold:   threshold,
					leftCounts:  left,
					rightCounts: right,
					nLeft:       nLeft,
					nRight:      nRight,
					impurity:    imp,
				}
				found = true
			}
		}
	}
	return best, found
}

func (t *decisionTree) classCounts(idx []int) [2]float64 {
	var c [2]float64
	for _, i := range idx {
		c[t.y[i]]++
	}
	return c
}

func (t *decisionTree) predictProba(x []float64) [2]float64 {
	n := 0
	for t.nodes[n].feature != leafNode {
		if x[t.nodes[n].feature] <= t.nodes[n].threshold {
			n = t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}
	return t.nodes[n].value
}

func partition(X [][]float64, idx []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func gini(c [2]float64) float64 {
	n := c[0] + c[1]
	if n == 0 {
		return 0
	}
	p0, p1 := c[0]/n, c[1]/n
	return 1 - p0*p0 - p1*p1
}
