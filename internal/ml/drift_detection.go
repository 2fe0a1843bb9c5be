package ml

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// DefaultDriftWindow is the number of recent inputs compared to the baseline.
const DefaultDriftWindow = 500

// minDriftSamples is the window size below which no drift is reported.
const minDriftSamples = 30

// DriftDetector compares recently scored inputs with the training
// distribution, feature by feature.
type DriftDetector struct {
	mu       sync.RWMutex
	columns  []string
	baseline [][]float64 // per feature, sorted
	window   [][]float64 // ring of recent vectors
	next     int
	filled   bool

	warnMu   sync.Mutex
	lastWarn time.Time
}

// FeatureDrift describes how far one feature has moved from training data.
type FeatureDrift struct {
	Feature      string  `json:"feature"`
	KSStatistic  float64 `json:"ks_statistic"`
	PSI          float64 `json:"psi"`
	BaselineMean float64 `json:"baseline_mean"`
	CurrentMean  float64 `json:"current_mean"`
	Severity     string  `json:"severity"`
}

// DriftReport is the drift of every feature over the current window.
type DriftReport struct {
	Samples  int            `json:"samples"`
	Features []FeatureDrift `json:"features"`
}

// NewDriftDetector captures the baseline from training rows X, whose columns
// are named by columns. window <= 0 selects DefaultDriftWindow.
func NewDriftDetector(columns []string, X [][]float64, window int) *DriftDetector {
	if window <= 0 {
		window = DefaultDriftWindow
	}
	dd := &DriftDetector{
		columns:  append([]string(nil), columns...),
		baseline: make([][]float64, len(columns)),
		window:   make([][]float64, window),
	}
	for f := range columns {
		col := make([]float64, len(X))
		for i, row := range X {
			col[i] = row[f]
		}
		sort.Float64s(col)
		dd.baseline[f] = col
	}
	return dd
}

// Observe records one scored feature vector.
func (dd *DriftDetector) Observe(x []float64) {
	dd.mu.Lock()
	defer dd.mu.Unlock()

	dd.window[dd.next] = append([]float64(nil), x...)
	dd.next = (dd.next + 1) % len(dd.window)
	if dd.next == 0 {
		dd.filled = true
	}
}

func (dd *DriftDetector) samples() [][]float64 {
	if dd.filled {
		return dd.window
	}
	return dd.window[:dd.next]
}

// Report computes drift for every feature. Features are left at severity
// "insufficient_data" until enough inputs have been observed.
func (dd *DriftDetector) Report() DriftReport {
	dd.mu.RLock()
	defer dd.mu.RUnlock()

	recent := dd.samples()
	rep := DriftReport{Samples: len(recent), Features: make([]FeatureDrift, len(dd.columns))}

	for f, name := range dd.columns {
		base := dd.baseline[f]
		d := FeatureDrift{Feature: name, BaselineMean: stat.Mean(base, nil), Severity: "insufficient_data"}
		if len(recent) >= minDriftSamples {
			cur := make([]float64, len(recent))
			for i, x := range recent {
				cur[i] = x[f]
			}
			sort.Float64s(cur)
			d.CurrentMean = stat.Mean(cur, nil)
			d.KSStatistic = kolmogorovSmirnov(base, cur)
			d.PSI = populationStability(base, cur)
			d.Severity = driftSeverity(d.PSI)
		}
		rep.Features[f] = d
	}

	if dd.shouldWarn(rep) {
		log.Warn().Int("samples", rep.Samples).Msg("Input drift detected against training data")
	}
	return rep
}

// shouldWarn rate-limits drift warnings to one per hour.
func (dd *DriftDetector) shouldWarn(rep DriftReport) bool {
	dd.warnMu.Lock()
	defer dd.warnMu.Unlock()
	for _, f := range rep.Features {
		if f.Severity == "high" && time.Since(dd.lastWarn) > time.Hour {
			dd.lastWarn = time.Now()
			return true
		}
	}
	return false
}

// kolmogorovSmirnov returns the largest gap between the empirical CDFs of
// two sorted samples.
func kolmogorovSmirnov(a, b []float64) float64 {
	var i, j int
	var maxDiff float64
	na, nb := float64(len(a)), float64(len(b))
	for i < len(a) && j < len(b) {
		v := math.Min(a[i], b[j])
		for i < len(a) && a[i] <= v {
			i++
		}
		for j < len(b) && b[j] <= v {
			j++
		}
		if d := math.Abs(float64(i)/na - float64(j)/nb); d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff
}

// populationStability bins both samples over their combined range into ten
// equal-width bins and sums (c-b)*ln(c/b) over bins populated in both.
func populationStability(base, cur []float64) float64 {
	const bins = 10
	lo := math.Min(base[0], cur[0])
	hi := math.Max(base[len(base)-1], cur[len(cur)-1])
	if hi == lo {
		return 0
	}
	width := (hi - lo) / bins

	hist := func(s []float64) []float64 {
		h := make([]float64, bins)
		for _, v := range s {
			b := int((v - lo) / width)
			if b >= bins {
				b = bins - 1
			}
			h[b]++
		}
		for i := range h {
			h[i] /= float64(len(s))
		}
		return h
	}

	hb, hc := hist(base), hist(cur)
	var psi float64
	for i := range hb {
		if hb[i] > 0 && hc[i] > 0 {
			psi += (hc[i] - hb[i]) * math.Log(hc[i]/hb[i])
		}
	}
	return math.Abs(psi)
}

func driftSeverity(psi float64) string {
	switch {
	case psi >= 0.25:
		return "high"
	case psi >= 0.1:
		return "medium"
	default:
		return "low"
	}
}
