package insights

import (
	"fmt"
	"math"
	"sort"

	"heart-insights/internal/dataset"
	"heart-insights/internal/patient"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultBins is the histogram resolution when none is requested.
const DefaultBins = 20

// GroupColumns are the columns a histogram may be split by.
var GroupColumns = []string{patient.ColTarget, patient.ColSex, patient.ColChestPainType, patient.ColSmoke}

// Series is the bin counts of one group value.
type Series struct {
	Group  float64 `json:"group"`
	Label  string  `json:"label"`
	Counts []int   `json:"counts"`
}

// Histogram is a feature's distribution split by a grouping column. Bin i
// covers [Edges[i], Edges[i+1]); the last bin includes the maximum.
type Histogram struct {
	Feature string    `json:"feature"`
	Group   string    `json:"group"`
	Edges   []float64 `json:"edges"`
	Series  []Series  `json:"series"`
}

// NewHistogram bins feature over equal-width intervals spanning its range,
// one series per distinct value of group in ascending order.
func NewHistogram(t *dataset.Table, feature, group string, bins int) (*Histogram, error) {
	if indexOf(GroupColumns, group) < 0 {
		return nil, fmt.Errorf("cannot group by %q (have %v)", group, GroupColumns)
	}
	if feature == patient.ColTarget {
		return nil, fmt.Errorf("cannot plot %q", feature)
	}
	x, err := column(t, feature)
	if err != nil {
		return nil, err
	}
	g, err := column(t, group)
	if err != nil {
		return nil, err
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	h := &Histogram{Feature: feature, Group: group, Edges: edges(x, bins)}
	dividers := append([]float64(nil), h.Edges...)
	// stat.Histogram bins are right-open; nudge the top divider past the max
	last := len(dividers) - 1
	dividers[last] = math.Nextafter(dividers[last], math.Inf(1))

	byGroup := make(map[float64][]float64)
	for i, v := range x {
		byGroup[g[i]] = append(byGroup[g[i]], v)
	}
	keys := make([]float64, 0, len(byGroup))
	for k := range byGroup {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	for _, k := range keys {
		vals := byGroup[k]
		sort.Float64s(vals)
		counts := stat.Histogram(nil, dividers, vals, nil)
		s := Series{Group: k, Label: groupLabel(group, k), Counts: make([]int, len(counts))}
		for i, c := range counts {
			s.Counts[i] = int(c)
		}
		h.Series = append(h.Series, s)
	}
	return h, nil
}

func edges(x []float64, bins int) []float64 {
	if len(x) == 0 {
		return []float64{0, 1}
	}
	lo, hi := floats.Min(x), floats.Max(x)
	if lo == hi {
		return []float64{lo, lo + 1}
	}
	return floats.Span(make([]float64, bins+1), lo, hi)
}

// groupLabel names a group code with its form label where one exists.
func groupLabel(column string, code float64) string {
	if column == patient.ColTarget {
		if code == 1 {
			return "Heart Disease"
		}
		return "No Disease"
	}
	for _, c := range patient.Choices(column) {
		if float64(c.Code) == code {
			return c.Label
		}
	}
	return fmt.Sprintf("%g", code)
}
