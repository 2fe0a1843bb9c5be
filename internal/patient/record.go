// Package patient defines the fixed patient record schema shared by the dataset
// loader, the classifiers and the HTTP API.
//
// Column names match the source CSV exactly. The classifiers are positional, so
// every feature vector handed to a model must follow FeatureColumns order.
package patient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Column names as they appear in the source dataset.
const (
	ColAge               = "age"
	ColSex               = "sex"
	ColChestPainType     = "chest pain type"
	ColRestingBP         = "resting bp s"
	ColCholesterol       = "cholesterol"
	ColFastingBloodSugar = "fasting blood sugar"
	ColRestingECG        = "resting ecg"
	ColMaxHeartRate      = "max heart rate"
	ColExerciseAngina    = "exercise angina"
	ColOldpeak           = "oldpeak"
	ColSTSlope           = "ST slope"
	ColSmoke             = "smoke"
	ColTarget            = "target"
)

// FeatureColumns is the model input schema in positional order.
var FeatureColumns = []string{
	ColAge,
	ColSex,
	ColChestPainType,
	ColRestingBP,
	ColCholesterol,
	ColFastingBloodSugar,
	ColRestingECG,
	ColMaxHeartRate,
	ColExerciseAngina,
	ColOldpeak,
	ColSTSlope,
	ColSmoke,
}

// NumFeatures is len(FeatureColumns).
const NumFeatures = 12

// FeatureIndex returns the position of a feature column, or -1.
func FeatureIndex(name string) int {
	for i, c := range FeatureColumns {
		if c == name {
			return i
		}
	}
	return -1
}

// Record is a single patient observation without its label.
type Record struct {
	Age               float64       `json:"age"`
	Sex               Sex           `json:"sex"`
	ChestPainType     ChestPainType `json:"chest_pain_type"`
	RestingBP         float64       `json:"resting_bp_s"`
	Cholesterol       float64       `json:"cholesterol"`
	FastingBloodSugar YesNo         `json:"fasting_blood_sugar"`
	RestingECG        RestingECG    `json:"resting_ecg"`
	MaxHeartRate      float64       `json:"max_heart_rate"`
	ExerciseAngina    YesNo         `json:"exercise_angina"`
	Oldpeak           float64       `json:"oldpeak"`
	STSlope           STSlope       `json:"st_slope"`
	Smoke             YesNo         `json:"smoke"`
}

// DefaultRecord returns the values a blank form starts with.
func DefaultRecord() Record {
	return Record{
		Age:           50,
		Sex:           Male,
		ChestPainType: TypicalAngina,
		RestingBP:     120,
		Cholesterol:   200,
		RestingECG:    ECGNormal,
		MaxHeartRate:  150,
		STSlope:       Upsloping,
	}
}

// Vector returns the record as a feature vector in FeatureColumns order.
func (r Record) Vector() []float64 {
	return []float64{
		r.Age,
		float64(r.Sex),
		float64(r.ChestPainType),
		r.RestingBP,
		r.Cholesterol,
		float64(r.FastingBloodSugar),
		float64(r.RestingECG),
		r.MaxHeartRate,
		float64(r.ExerciseAngina),
		r.Oldpeak,
		float64(r.STSlope),
		float64(r.Smoke),
	}
}

// FromVector builds a record from a FeatureColumns-ordered vector. Categorical
// codes are copied verbatim; use Validate to check them.
func FromVector(v []float64) (Record, error) {
	if len(v) != NumFeatures {
		return Record{}, fmt.Errorf("expected %d features, got %d", NumFeatures, len(v))
	}
	return Record{
		Age:               v[0],
		Sex:               Sex(v[1]),
		ChestPainType:     ChestPainType(v[2]),
		RestingBP:         v[3],
		Cholesterol:       v[4],
		FastingBloodSugar: YesNo(v[5]),
		RestingECG:        RestingECG(v[6]),
		MaxHeartRate:      v[7],
		ExerciseAngina:    YesNo(v[8]),
		Oldpeak:           v[9],
		STSlope:           STSlope(v[10]),
		Smoke:             YesNo(v[11]),
	}, nil
}

// Value returns the value of a single feature column by name.
func (r Record) Value(column string) (float64, bool) {
	idx := FeatureIndex(column)
	if idx < 0 {
		return 0, false
	}
	return r.Vector()[idx], true
}

// With returns a copy of the record with one feature replaced.
func (r Record) With(column string, value float64) (Record, error) {
	idx := FeatureIndex(column)
	if idx < 0 {
		return Record{}, fmt.Errorf("unknown feature %q", column)
	}
	v := r.Vector()
	v[idx] = value
	return FromVector(v)
}

// Validate checks that every categorical field carries a known code.
func (r Record) Validate() error {
	checks := []struct {
		column string
		ok     bool
	}{
		{ColSex, r.Sex.Valid()},
		{ColChestPainType, r.ChestPainType.Valid()},
		{ColFastingBloodSugar, r.FastingBloodSugar.Valid()},
		{ColRestingECG, r.RestingECG.Valid()},
		{ColExerciseAngina, r.ExerciseAngina.Valid()},
		{ColSTSlope, r.STSlope.Valid()},
		{ColSmoke, r.Smoke.Valid()},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("invalid code for %q", c.column)
		}
	}
	return nil
}

// JSONFields are the wire names of the Record fields in FeatureColumns order.
var JSONFields = []string{
	"age",
	"sex",
	"chest_pain_type",
	"resting_bp_s",
	"cholesterol",
	"fasting_blood_sugar",
	"resting_ecg",
	"max_heart_rate",
	"exercise_angina",
	"oldpeak",
	"st_slope",
	"smoke",
}

// MissingFieldsError lists the record fields absent from a JSON object.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing fields: " + strings.Join(e.Fields, ", ")
}

// DecodeJSON parses a complete record. Every field must be present and
// non-null; unknown keys are rejected.
func DecodeJSON(data []byte) (Record, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return Record{}, err
	}
	var missing []string
	for _, f := range JSONFields {
		if v, ok := present[f]; !ok || string(v) == "null" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Record{}, &MissingFieldsError{Fields: missing}
	}

	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
