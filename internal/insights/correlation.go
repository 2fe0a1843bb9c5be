package insights

import (
	"heart-insights/internal/dataset"

	"gonum.org/v1/gonum/stat"
)

// CorrelationMatrix holds pairwise Pearson coefficients. Pairs involving a
// constant column are NaN.
type CorrelationMatrix struct {
	Columns []string  `json:"columns"`
	Values  [][]Float `json:"values"`
}

// Correlations computes the Pearson matrix over every column of t.
func Correlations(t *dataset.Table) CorrelationMatrix {
	cols := make([][]float64, len(t.Columns))
	for i, name := range t.Columns {
		cols[i], _ = t.Column(name)
	}

	m := CorrelationMatrix{
		Columns: append([]string(nil), t.Columns...),
		Values:  make([][]Float, len(cols)),
	}
	for i := range cols {
		m.Values[i] = make([]Float, len(cols))
	}
	for i := range cols {
		for j := i; j < len(cols); j++ {
			r := Float(stat.Correlation(cols[i], cols[j], nil))
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

// Get returns the coefficient for a named pair.
func (m CorrelationMatrix) Get(a, b string) (Float, bool) {
	i, j := indexOf(m.Columns, a), indexOf(m.Columns, b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
