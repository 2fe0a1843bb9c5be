package insights

import (
	"math"

	"heart-insights/internal/dataset"
	"heart-insights/internal/patient"
)

// Age group edges. Groups are left-closed, so 29 falls in "30-39"; ages
// outside [0, 100) belong to no group.
var (
	AgeEdges  = []float64{0, 29, 39, 49, 59, 69, 100}
	AgeLabels = []string{"<30", "30-39", "40-49", "50-59", "60-69", "70+"}
)

// AgeGroup returns the label of the group containing age.
func AgeGroup(age float64) (string, bool) {
	for i := 0; i < len(AgeLabels); i++ {
		if age >= AgeEdges[i] && age < AgeEdges[i+1] {
			return AgeLabels[i], true
		}
	}
	return "", false
}

// AgeGroupStats counts patients per outcome in one age group.
type AgeGroupStats struct {
	Label     string `json:"label"`
	NoDisease int    `json:"no_disease"`
	Disease   int    `json:"disease"`
	Total     int    `json:"total"`
	// DiseaseRate is null for an empty group.
	DiseaseRate Float `json:"disease_rate"`
}

// Trends is the age distribution and disease rate per group.
type Trends struct {
	Groups []AgeGroupStats `json:"groups"`
	// Ungrouped counts rows whose age falls outside every group.
	Ungrouped int `json:"ungrouped"`
}

// AgeTrends groups every row of t by age. t must carry age and target.
func AgeTrends(t *dataset.Table) (Trends, error) {
	ages, err := column(t, patient.ColAge)
	if err != nil {
		return Trends{}, err
	}
	target, err := column(t, patient.ColTarget)
	if err != nil {
		return Trends{}, err
	}

	tr := Trends{Groups: make([]AgeGroupStats, len(AgeLabels))}
	pos := make(map[string]int, len(AgeLabels))
	for i, l := range AgeLabels {
		tr.Groups[i].Label = l
		pos[l] = i
	}

	for i, age := range ages {
		label, ok := AgeGroup(age)
		if !ok {
			tr.Ungrouped++
			continue
		}
		g := &tr.Groups[pos[label]]
		if target[i] == 1 {
			g.Disease++
		} else {
			g.NoDisease++
		}
		g.Total++
	}
	for i := range tr.Groups {
		g := &tr.Groups[i]
		g.DiseaseRate = Float(math.NaN())
		if g.Total > 0 {
			g.DiseaseRate = Float(float64(g.Disease) / float64(g.Total))
		}
	}
	return tr, nil
}

// ScatterPoint is one patient in the feature-by-age scatter view.
type ScatterPoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	AgeGroup string  `json:"age_group,omitempty"`
	Target   int     `json:"target"`
}

// Scatter is a two-feature plot coloured by age group.
type Scatter struct {
	X      string         `json:"x"`
	Y      string         `json:"y"`
	Points []ScatterPoint `json:"points"`
}

// ScatterDefaults are the axes the view opens with.
var ScatterDefaults = [2]string{patient.ColChestPainType, patient.ColSex}

// NewScatter pairs two columns of t with each row's age group and target.
// Empty names fall back to ScatterDefaults.
func NewScatter(t *dataset.Table, x, y string) (*Scatter, error) {
	if x == "" {
		x = ScatterDefaults[0]
	}
	if y == "" {
		y = ScatterDefaults[1]
	}
	xs, err := column(t, x)
	if err != nil {
		return nil, err
	}
	ys, err := column(t, y)
	if err != nil {
		return nil, err
	}
	ages, err := column(t, patient.ColAge)
	if err != nil {
		return nil, err
	}
	target, err := column(t, patient.ColTarget)
	if err != nil {
		return nil, err
	}

	s := &Scatter{X: x, Y: y, Points: make([]ScatterPoint, len(xs))}
	for i := range xs {
		group, _ := AgeGroup(ages[i])
		s.Points[i] = ScatterPoint{X: xs[i], Y: ys[i], AgeGroup: group, Target: int(target[i])}
	}
	return s, nil
}
