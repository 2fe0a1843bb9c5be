package patient

// Range is a closed numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Hint describes how the form presents a field. Bounds are the widget limits;
// Typical is the soft range outside of which WarningKey is raised.
type Hint struct {
	Column     string   `json:"column"`
	Bounds     *Range   `json:"bounds,omitempty"`
	Step       float64  `json:"step,omitempty"`
	Typical    *Range   `json:"typical,omitempty"`
	WarningKey string   `json:"warning_key,omitempty"`
	Choices    []Choice `json:"choices,omitempty"`
}

// Warning is a soft range violation. It never blocks a prediction.
type Warning struct {
	Column string `json:"column"`
	Key    string `json:"key"`
}

var numericHints = map[string]Hint{
	ColAge:          {Column: ColAge, Bounds: &Range{1, 120}, Step: 1, Typical: &Range{18, 100}, WarningKey: "age_warning"},
	ColRestingBP:    {Column: ColRestingBP, Bounds: &Range{80, 200}, Step: 1, Typical: &Range{90, 180}, WarningKey: "bp_warning"},
	ColCholesterol:  {Column: ColCholesterol, Bounds: &Range{100, 600}, Step: 1, Typical: &Range{120, 300}, WarningKey: "cholesterol_info"},
	ColMaxHeartRate: {Column: ColMaxHeartRate, Bounds: &Range{60, 220}, Step: 1, Typical: &Range{100, 200}, WarningKey: "hr_info"},
	ColOldpeak:      {Column: ColOldpeak, Bounds: &Range{-2.0, 6.2}, Step: 0.1},
}

// FormHints returns one hint per feature column in schema order.
func FormHints() []Hint {
	hints := make([]Hint, 0, NumFeatures)
	for _, col := range FeatureColumns {
		if h, ok := numericHints[col]; ok {
			hints = append(hints, h)
			continue
		}
		hints = append(hints, Hint{Column: col, Choices: Choices(col)})
	}
	return hints
}

// Warnings reports every soft range the record falls outside of, in schema order.
func (r Record) Warnings() []Warning {
	var out []Warning
	for _, col := range FeatureColumns {
		h, ok := numericHints[col]
		if !ok || h.Typical == nil {
			continue
		}
		v, _ := r.Value(col)
		if !h.Typical.contains(v) {
			out = append(out, Warning{Column: col, Key: h.WarningKey})
		}
	}
	return out
}
