package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"

	"heart-insights/internal/patient"
)

// sourceColumns is the column layout of the published statlog/cleveland/hungary
// file, which has no smoke column.
var sourceColumns = []string{
	patient.ColAge,
	patient.ColSex,
	patient.ColChestPainType,
	patient.ColRestingBP,
	patient.ColCholesterol,
	patient.ColFastingBloodSugar,
	patient.ColRestingECG,
	patient.ColMaxHeartRate,
	patient.ColExerciseAngina,
	patient.ColOldpeak,
	patient.ColSTSlope,
	patient.ColTarget,
}

// Synthetic generates n labelled rows in the source layout. The label follows
// a noisy risk score over the usual clinical markers so that models have
// something to learn. Output is fully determined by seed.
func Synthetic(n int, seed int64) *Table {
	rng := rand.New(rand.NewSource(seed))
	t := &Table{Columns: append([]string(nil), sourceColumns...)}

	for i := 0; i < n; i++ {
		age := math.Round(clamp(rng.NormFloat64()*9+54, 28, 77))
		sex := float64(bernoulli(rng, 0.76))
		cp := float64(1 + rng.Intn(4))
		bp := math.Round(clamp(rng.NormFloat64()*18+132, 92, 200))
		chol := math.Round(clamp(rng.NormFloat64()*55+240, 110, 560))
		fbs := float64(bernoulli(rng, 0.2))
		ecg := float64(rng.Intn(3))
		hr := math.Round(clamp(rng.NormFloat64()*24+140, 62, 202))
		exang := float64(bernoulli(rng, 0.38))
		oldpeak := math.Round(clamp(rng.ExpFloat64()*0.9, 0, 6.2)*10) / 10
		slope := float64(1 + rng.Intn(3))

		score := 0.04*(age-54) + 0.9*sex + 0.8*b2f(cp == 4) + 0.01*(bp-132) +
			1.1*exang + 0.7*oldpeak + 0.9*b2f(slope >= 2) - 0.025*(hr-140) +
			0.4*fbs + rng.NormFloat64()*0.8
		target := b2f(score > 2.4)

		t.Rows = append(t.Rows, []float64{age, sex, cp, bp, chol, fbs, ecg, hr, exang, oldpeak, slope, target})
	}
	return t
}

// WriteCSV writes a table with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func bernoulli(rng *rand.Rand, p float64) int {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
