package patient

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorFollowsFeatureColumns(t *testing.T) {
	r := Record{
		Age: 63, Sex: Male, ChestPainType: Asymptomatic, RestingBP: 145, Cholesterol: 233,
		FastingBloodSugar: Yes, RestingECG: ECGLVH, MaxHeartRate: 150, ExerciseAngina: No,
		Oldpeak: 2.3, STSlope: Downsloping, Smoke: Yes,
	}
	v := r.Vector()
	require.Len(t, v, NumFeatures)
	require.Len(t, FeatureColumns, NumFeatures)

	for i, col := range FeatureColumns {
		got, ok := r.Value(col)
		require.True(t, ok, col)
		assert.Equal(t, v[i], got, col)
	}

	back, err := FromVector(v)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestFromVectorWrongLength(t *testing.T) {
	_, err := FromVector([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	full, err := json.Marshal(DefaultRecord())
	require.NoError(t, err)

	rec, err := DecodeJSON(full)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecord(), rec)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(full, &fields))
	assert.Len(t, fields, len(JSONFields))
	for _, f := range JSONFields {
		assert.Contains(t, fields, f)
	}

	t.Run("categoricals only", func(t *testing.T) {
		_, err := DecodeJSON([]byte(`{"sex":1,"chest_pain_type":1,"resting_ecg":0,"st_slope":1}`))
		var mf *MissingFieldsError
		require.True(t, errors.As(err, &mf), "got %v", err)
		assert.Equal(t, []string{
			"age", "resting_bp_s", "cholesterol", "fasting_blood_sugar",
			"max_heart_rate", "exercise_angina", "oldpeak", "smoke",
		}, mf.Fields)
	})

	t.Run("null counts as absent", func(t *testing.T) {
		fields["cholesterol"] = nil
		data, err := json.Marshal(fields)
		require.NoError(t, err)
		_, err = DecodeJSON(data)
		var mf *MissingFieldsError
		require.True(t, errors.As(err, &mf), "got %v", err)
		assert.Equal(t, []string{"cholesterol"}, mf.Fields)
	})

	t.Run("explicit zero is kept", func(t *testing.T) {
		r := DefaultRecord()
		r.Oldpeak = 0
		data, err := json.Marshal(r)
		require.NoError(t, err)
		got, err := DecodeJSON(data)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.Oldpeak)
	})

	t.Run("unknown field", func(t *testing.T) {
		delete(fields, "cholesterol")
		fields["cholesterol"] = 200
		fields["height"] = 180
		data, err := json.Marshal(fields)
		require.NoError(t, err)
		_, err = DecodeJSON(data)
		require.Error(t, err)
		var mf *MissingFieldsError
		assert.False(t, errors.As(err, &mf))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeJSON([]byte(`{"age":`))
		assert.Error(t, err)
	})
}

func TestWith(t *testing.T) {
	r := DefaultRecord()
	changed, err := r.With(ColCholesterol, 280)
	require.NoError(t, err)
	assert.Equal(t, 280.0, changed.Cholesterol)
	assert.Equal(t, 200.0, r.Cholesterol, "original must be untouched")

	_, err = r.With("bogus", 1)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	r := DefaultRecord()
	assert.NoError(t, r.Validate())

	r.ChestPainType = 7
	assert.ErrorContains(t, r.Validate(), ColChestPainType)

	r = DefaultRecord()
	r.Smoke = 2
	assert.ErrorContains(t, r.Validate(), ColSmoke)
}

func TestChoiceLookups(t *testing.T) {
	cp, ok := ParseChestPainType("Non-anginal pain")
	require.True(t, ok)
	assert.Equal(t, NonAnginalPain, cp)
	assert.Equal(t, "Non-anginal pain", cp.String())

	fbs, ok := ParseYesNo("True")
	require.True(t, ok)
	assert.Equal(t, Yes, fbs)

	_, ok = ParseSTSlope("Sideways")
	assert.False(t, ok)

	assert.Nil(t, Choices(ColAge))
	assert.Len(t, Choices(ColRestingECG), 3)
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		edit func(r *Record)
		want []string
	}{
		{"defaults are typical", func(r *Record) {}, nil},
		{"young patient", func(r *Record) { r.Age = 12 }, []string{"age_warning"}},
		{"low bp and high cholesterol", func(r *Record) {
			r.RestingBP = 85
			r.Cholesterol = 350
		}, []string{"bp_warning", "cholesterol_info"}},
		{"edges are inclusive", func(r *Record) {
			r.Age = 100
			r.MaxHeartRate = 200
		}, nil},
		{"low max heart rate", func(r *Record) { r.MaxHeartRate = 90 }, []string{"hr_info"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := DefaultRecord()
			tc.edit(&r)
			var keys []string
			for _, w := range r.Warnings() {
				keys = append(keys, w.Key)
			}
			assert.Equal(t, tc.want, keys)
		})
	}
}

func TestFormHints(t *testing.T) {
	hints := FormHints()
	require.Len(t, hints, NumFeatures)
	for i, h := range hints {
		assert.Equal(t, FeatureColumns[i], h.Column)
	}
	assert.NotNil(t, hints[0].Bounds)
	assert.Len(t, hints[1].Choices, 2)
}
