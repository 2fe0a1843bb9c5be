// Package advice turns a patient record and its predicted label into
// rule-based lifestyle recommendations.
package advice

import (
	"heart-insights/internal/i18n"
	"heart-insights/internal/patient"
)

// NoneKey is the message shown when no rule fires.
const NoneKey = "rec_none"

// Rule is one recommendation trigger.
type Rule struct {
	Key     string
	Applies func(r patient.Record, label int) bool
}

// Rules are evaluated in order and independently of each other.
var Rules = []Rule{
	{"rec_rule_1_cholesterol", func(r patient.Record, _ int) bool { return r.Cholesterol > 240 }},
	{"rec_rule_2_bp", func(r patient.Record, _ int) bool { return r.RestingBP > 140 }},
	{"rec_rule_3_hr", func(r patient.Record, _ int) bool { return r.MaxHeartRate < (220-r.Age)*0.7 }},
	{"rec_rule_4_smoke", func(r patient.Record, _ int) bool { return r.Smoke == patient.Yes }},
	{"rec_rule_5_disease", func(_ patient.Record, label int) bool { return label == 1 }},
}

// Keys returns the string keys of every rule that fires.
func Keys(r patient.Record, label int) []string {
	var keys []string
	for _, rule := range Rules {
		if rule.Applies(r, label) {
			keys = append(keys, rule.Key)
		}
	}
	return keys
}

// Generate returns the localized recommendations for a prediction. The
// result is empty when no rule fires.
func Generate(r patient.Record, label int, t i18n.Translator) []string {
	keys := Keys(r, label)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = t.T(k)
	}
	return out
}

// Report is the recommendations view of one prediction.
type Report struct {
	Intro           string   `json:"intro"`
	Recommendations []string `json:"recommendations"`
	Empty           string   `json:"empty,omitempty"`
	Outro           string   `json:"outro"`
}

// Build assembles the full view, including the empty-state message.
func Build(r patient.Record, label int, t i18n.Translator) Report {
	rep := Report{
		Intro:           t.T("rec_intro_1"),
		Recommendations: Generate(r, label, t),
		Outro:           t.T("rec_intro_2"),
	}
	if len(rep.Recommendations) == 0 {
		rep.Empty = t.T(NoneKey)
	}
	return rep
}
