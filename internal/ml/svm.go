package ml

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	smoTau     = 1e-12
	smoEps     = 1e-3
	smoMaxIter = 10_000_000
	plattFolds = 5
)

// SVM is a C-support vector classifier with an RBF kernel. Probabilities come
// from a sigmoid fitted to out-of-fold decision values.
type SVM struct {
	C     float64
	Gamma float64 // 0 selects 1 / (features * Var(X))
	Seed  int64   // permutation seed for the probability folds

	model *smoModel
	probA float64
	probB float64
}

// NewSVM returns an unfitted classifier with C=1 and automatic gamma.
func NewSVM(seed int64) *SVM {
	return &SVM{C: 1, Seed: seed}
}

// Fit solves the dual problem on X and calibrates probabilities.
func (s *SVM) Fit(X [][]float64, y []int) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	if s.C <= 0 {
		return fmt.Errorf("%w: C must be positive", ErrTrainingFailed)
	}

	gamma := s.Gamma
	if gamma <= 0 {
		gamma = scaleGamma(X)
	}

	model, err := trainSMO(X, y, s.C, gamma)
	if err != nil {
		return err
	}

	dec := s.crossValidatedDecisions(X, y, gamma)
	a, b := plattSigmoid(dec, y)

	s.model = model
	s.probA, s.probB = a, b
	return nil
}

// DecisionFunction returns the signed distance to the separating surface.
// Positive values favour class 1.
func (s *SVM) DecisionFunction(x []float64) float64 {
	return s.model.decision(x)
}

// PredictProba applies the fitted sigmoid to the decision value.
func (s *SVM) PredictProba(x []float64) [2]float64 {
	p1 := plattPredict(s.model.decision(x), s.probA, s.probB)
	return [2]float64{1 - p1, p1}
}

// Predict returns the side of the decision surface x falls on.
func (s *SVM) Predict(x []float64) int {
	if s.model.decision(x) > 0 {
		return 1
	}
	return 0
}

// scaleGamma is 1 / (features * variance of every entry of X).
func scaleGamma(X [][]float64) float64 {
	all := make([]float64, 0, len(X)*len(X[0]))
	for _, row := range X {
		all = append(all, row...)
	}
	v := stat.PopVariance(all, nil)
	if v == 0 || math.IsNaN(v) {
		return 1
	}
	return 1 / (float64(len(X[0])) * v)
}

func (s *SVM) crossValidatedDecisions(X [][]float64, y []int, gamma float64) []float64 {
	n := len(X)
	perm := rand.New(rand.NewSource(s.Seed)).Perm(n)
	dec := make([]float64, n)

	for f := 0; f < plattFolds; f++ {
		begin, end := f*n/plattFolds, (f+1)*n/plattFolds

		var trX [][]float64
		var trY []int
		var pos, neg int
		for _, i := range append(append([]int(nil), perm[:begin]...), perm[end:]...) {
			trX = append(trX, X[i])
			trY = append(trY, y[i])
			if y[i] == 1 {
				pos++
			} else {
				neg++
			}
		}

		switch {
		case pos == 0 && neg == 0:
			for _, i := range perm[begin:end] {
				dec[i] = 0
			}
		case neg == 0:
			for _, i := range perm[begin:end] {
				dec[i] = 1
			}
		case pos == 0:
			for _, i := range perm[begin:end] {
				dec[i] = -1
			}
		default:
			m, err := trainSMO(trX, trY, s.C, gamma)
			if err != nil {
				log.Warn().Err(err).Int("fold", f).Msg("Probability fold failed to fit")
				continue
			}
			for _, i := range perm[begin:end] {
				dec[i] = m.decision(X[i])
			}
		}
	}
	return dec
}

// smoModel holds the support vectors of a solved dual problem.
type smoModel struct {
	vectors [][]float64
	coef    []float64 // alpha_i * y_i
	rho     float64
	gamma   float64
}

func (m *smoModel) decision(x []float64) float64 {
	var sum float64
	for i, sv := range m.vectors {
		sum += m.coef[i] * rbf(sv, x, m.gamma)
	}
	return sum - m.rho
}

func rbf(a, b []float64, gamma float64) float64 {
	d := floats.Distance(a, b, 2)
	return math.Exp(-gamma * d * d)
}

// trainSMO solves the C-SVC dual with second order working set selection.
func trainSMO(X [][]float64, labels []int, C, gamma float64) (*smoModel, error) {
	n := len(X)
	y := make([]float64, n)
	for i, v := range labels {
		if v == 1 {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}

	// Q[i][j] = y_i y_j K(x_i, x_j)
	Q := make([][]float64, n)
	for i := range Q {
		Q[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			q := y[i] * y[j] * rbf(X[i], X[j], gamma)
			Q[i][j], Q[j][i] = q, q
		}
	}

	alpha := make([]float64, n)
	G := make([]float64, n)
	for i := range G {
		G[i] = -1
	}

	upper := func(i int) bool { return alpha[i] >= C }
	lower := func(i int) bool { return alpha[i] <= 0 }

	maxIter := smoMaxIter
	if 100*n > maxIter {
		maxIter = 100 * n
	}

	iter := 0
	for ; iter < maxIter; iter++ {
		i, j, ok := selectWorkingSet(Q, y, G, upper, lower)
		if !ok {
			break
		}

		oldI, oldJ := alpha[i], alpha[j]
		if y[i] != y[j] {
			quad := Q[i][i] + Q[j][j] + 2*Q[i][j]
			if quad <= 0 {
				quad = smoTau
			}
			delta := (-G[i] - G[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else if alpha[j] > C {
				alpha[j] = C
				alpha[i] = C + diff
			}
		} else {
			quad := Q[i][i] + Q[j][j] - 2*Q[i][j]
			if quad <= 0 {
				quad = smoTau
			}
			delta := (G[i] - G[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for k := 0; k < n; k++ {
			G[k] += Q[i][k]*dI + Q[j][k]*dJ
		}
	}
	if iter == maxIter {
		log.Warn().Int("iterations", iter).Msg("SMO reached the iteration limit")
	}
	if floats.HasNaN(alpha) {
		return nil, fmt.Errorf("%w: dual coefficients are not finite", ErrTrainingFailed)
	}

	m := &smoModel{rho: smoRho(y, G, upper, lower), gamma: gamma}
	for i, a := range alpha {
		if a > 0 {
			m.vectors = append(m.vectors, X[i])
			m.coef = append(m.coef, a*y[i])
		}
	}
	if len(m.vectors) == 0 {
		return nil, fmt.Errorf("%w: no support vectors", ErrTrainingFailed)
	}
	return m, nil
}

func selectWorkingSet(Q [][]float64, y, G []float64, upper, lower func(int) bool) (int, int, bool) {
	gmax, gmax2 := math.Inf(-1), math.Inf(-1)
	iIdx, jIdx := -1, -1
	objMin := math.Inf(1)

	for t := range G {
		if y[t] == 1 {
			if !upper(t) && -G[t] >= gmax {
				gmax, iIdx = -G[t], t
			}
		} else if !lower(t) && G[t] >= gmax {
			gmax, iIdx = G[t], t
		}
	}
	if iIdx < 0 {
		return 0, 0, false
	}

	Qi := Q[iIdx]
	for j := range G {
		var gradDiff, quad float64
		if y[j] == 1 {
			if lower(j) {
				continue
			}
			gradDiff = gmax + G[j]
			if G[j] >= gmax2 {
				gmax2 = G[j]
			}
			quad = Qi[iIdx] + Q[j][j] - 2*y[iIdx]*Qi[j]
		} else {
			if upper(j) {
				continue
			}
			gradDiff = gmax - G[j]
			if -G[j] >= gmax2 {
				gmax2 = -G[j]
			}
			quad = Qi[iIdx] + Q[j][j] + 2*y[iIdx]*Qi[j]
		}
		if gradDiff <= 0 {
			continue
		}
		if quad <= 0 {
			quad = smoTau
		}
		if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
			jIdx, objMin = j, obj
		}
	}

	if gmax+gmax2 < smoEps || jIdx < 0 {
		return 0, 0, false
	}
	return iIdx, jIdx, true
}

func smoRho(y, G []float64, upper, lower func(int) bool) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var free int
	var sumFree float64
	for i := range G {
		yG := y[i] * G[i]
		switch {
		case upper(i):
			if y[i] == -1 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case lower(i):
			if y[i] == 1 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			free++
			sumFree += yG
		}
	}
	if free > 0 {
		return sumFree / float64(free)
	}
	return (ub + lb) / 2
}

// plattSigmoid fits P(y=1|f) = 1 / (1 + exp(A f + B)) by Newton's method
// with backtracking, using smoothed targets.
func plattSigmoid(dec []float64, y []int) (float64, float64) {
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)

	var prior1, prior0 float64
	for _, v := range y {
		if v == 1 {
			prior1++
		} else {
			prior0++
		}
	}
	hi := (prior1 + 1) / (prior1 + 2)
	lo := 1 / (prior0 + 2)
	t := make([]float64, len(y))
	for i, v := range y {
		if v == 1 {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	objective := func(a, b float64) float64 {
		var f float64
		for i, d := range dec {
			z := d*a + b
			if z >= 0 {
				f += t[i]*z + math.Log1p(math.Exp(-z))
			} else {
				f += (t[i]-1)*z + math.Log1p(math.Exp(z))
			}
		}
		return f
	}

	a, b := 0.0, math.Log((prior0+1)/(prior1+1))
	fval := objective(a, b)

	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21 := sigma, sigma, 0.0
		var g1, g2 float64
		for i, d := range dec {
			z := d*a + b
			var p, q float64
			if z >= 0 {
				e := math.Exp(-z)
				p, q = e/(1+e), 1/(1+e)
			} else {
				e := math.Exp(z)
				p, q = 1/(1+e), e/(1+e)
			}
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			na, nb := a+step*dA, b+step*dB
			if nf := objective(na, nb); nf < fval+0.0001*step*gd {
				a, b, fval = na, nb, nf
				break
			}
			step /= 2
		}
		if step < minStep {
			log.Debug().Msg("Platt line search failed")
			break
		}
	}
	return a, b
}

func plattPredict(dec, a, b float64) float64 {
	z := dec*a + b
	if z >= 0 {
		e := math.Exp(-z)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(z))
}
