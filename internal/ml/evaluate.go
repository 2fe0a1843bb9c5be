package ml

// Scores are binary classification metrics with class 1 as the positive class.
// Ratios with an empty denominator are 0.
type Scores struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluate scores clf on X against y.
func Evaluate(clf Classifier, X [][]float64, y []int) Scores {
	var tp, fp, tn, fn float64
	for i, x := range X {
		pred := clf.Predict(x)
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1:
			fp++
		case y[i] == 0:
			tn++
		default:
			fn++
		}
	}

	s := Scores{
		Accuracy:  ratio(tp+tn, tp+tn+fp+fn),
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
	}
	s.F1 = ratio(2*s.Precision*s.Recall, s.Precision+s.Recall)
	return s
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
