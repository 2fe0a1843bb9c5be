package advice

import (
	"testing"

	"heart-insights/internal/i18n"
	"heart-insights/internal/patient"

	"github.com/stretchr/testify/assert"
)

func healthy() patient.Record {
	r := patient.DefaultRecord()
	r.Age = 40
	r.MaxHeartRate = 170
	return r
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *patient.Record)
		label  int
		want   []string
	}{
		{"nothing fires", func(r *patient.Record) {}, 0, nil},
		{"cholesterol boundary is exclusive", func(r *patient.Record) { r.Cholesterol = 240 }, 0, nil},
		{"high cholesterol", func(r *patient.Record) { r.Cholesterol = 241 }, 0, []string{"rec_rule_1_cholesterol"}},
		{"bp boundary is exclusive", func(r *patient.Record) { r.RestingBP = 140 }, 0, nil},
		{"high bp", func(r *patient.Record) { r.RestingBP = 150 }, 0, []string{"rec_rule_2_bp"}},
		// (220 - 40) * 0.7 = 126
		{"hr at threshold", func(r *patient.Record) { r.MaxHeartRate = 126 }, 0, nil},
		{"low hr", func(r *patient.Record) { r.MaxHeartRate = 125 }, 0, []string{"rec_rule_3_hr"}},
		{"smoker", func(r *patient.Record) { r.Smoke = patient.Yes }, 0, []string{"rec_rule_4_smoke"}},
		{"disease", func(r *patient.Record) {}, 1, []string{"rec_rule_5_disease"}},
		// (220 - 50) * 0.7 = 119
		{
			"cholesterol only for a fit fifty year old",
			func(r *patient.Record) {
				r.Age = 50
				r.Cholesterol = 250
				r.RestingBP = 130
				r.MaxHeartRate = 140
			},
			0,
			[]string{"rec_rule_1_cholesterol"},
		},
		{
			"hypertensive smoker with disease",
			func(r *patient.Record) {
				r.Cholesterol = 200
				r.RestingBP = 150
				r.Smoke = patient.Yes
			},
			1,
			[]string{"rec_rule_2_bp", "rec_rule_4_smoke", "rec_rule_5_disease"},
		},
		{
			"all rules in order",
			func(r *patient.Record) {
				r.Cholesterol = 300
				r.RestingBP = 160
				r.MaxHeartRate = 90
				r.Smoke = patient.Yes
			},
			1,
			[]string{"rec_rule_1_cholesterol", "rec_rule_2_bp", "rec_rule_3_hr", "rec_rule_4_smoke", "rec_rule_5_disease"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := healthy()
			tt.mutate(&r)
			assert.Equal(t, tt.want, Keys(r, tt.label))
		})
	}
}

func TestGenerateLocalizes(t *testing.T) {
	r := healthy()
	r.Smoke = patient.Yes

	for _, locale := range i18n.Locales() {
		tr := i18n.For(locale)
		assert.Equal(t, []string{tr.T("rec_rule_4_smoke")}, Generate(r, 0, tr), locale)
	}
	assert.Empty(t, Generate(healthy(), 0, i18n.For("en")))
}

func TestBuild(t *testing.T) {
	en := i18n.For("en")

	empty := Build(healthy(), 0, en)
	assert.Empty(t, empty.Recommendations)
	assert.Equal(t, en.T(NoneKey), empty.Empty)
	assert.Equal(t, en.T("rec_intro_1"), empty.Intro)

	flagged := Build(healthy(), 1, en)
	assert.Len(t, flagged.Recommendations, 1)
	assert.Empty(t, flagged.Empty)
}
