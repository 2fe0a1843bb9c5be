package ml

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is an L2-penalized binary logistic model fitted with
// Newton's method. The intercept is not penalized.
type LogisticRegression struct {
	C       float64 // inverse regularization strength
	MaxIter int
	Tol     float64 // per-sample gradient tolerance

	coef      []float64
	intercept float64
}

// NewLogisticRegression returns an unfitted model with C=1 and 1000 iterations.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, MaxIter: 1000, Tol: 1e-6}
}

// Fit minimizes the penalized negative log-likelihood.
func (lr *LogisticRegression) Fit(X [][]float64, y []int) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	if lr.C <= 0 {
		return fmt.Errorf("%w: C must be positive", ErrTrainingFailed)
	}

	n, d := len(X), len(X[0])
	p := d + 1 // intercept is the last coefficient
	lambda := 1 / lr.C

	design := mat.NewDense(n, p, nil)
	for i, row := range X {
		for j, v := range row {
			design.Set(i, j, v)
		}
		design.Set(i, d, 1)
	}
	target := make([]float64, n)
	for i, v := range y {
		target[i] = float64(v)
	}

	w := make([]float64, p)
	loss := lr.objective(design, target, w, lambda)
	tol := lr.Tol * float64(n)

	converged := false
	iter := 0
	for ; iter < lr.MaxIter; iter++ {
		grad, hess := lr.derivatives(design, target, w, lambda)
		if floats.Norm(grad, math.Inf(1)) <= tol {
			converged = true
			break
		}

		var step mat.VecDense
		if err := step.SolveVec(hess, mat.NewVecDense(p, grad)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return fmt.Errorf("%w: newton step: %v", ErrTrainingFailed, err)
			}
		}
		delta := step.RawVector().Data
		if floats.HasNaN(delta) {
			return fmt.Errorf("%w: newton step is not finite", ErrTrainingFailed)
		}

		// backtracking line search on the objective
		alpha := 1.0
		next := make([]float64, p)
		improved := false
		for k := 0; k < 50; k++ {
			floats.AddScaledTo(next, w, -alpha, delta)
			if l := lr.objective(design, target, next, lambda); l <= loss {
				loss = l
				improved = true
				break
			}
			alpha /= 2
		}
		if !improved {
			converged = true
			break
		}
		w = next
	}

	if floats.HasNaN(w) {
		return fmt.Errorf("%w: coefficients are not finite", ErrTrainingFailed)
	}
	if !converged {
		log.Warn().Int("iterations", iter).Msg("Logistic regression reached the iteration limit")
	}

	lr.coef = w[:d]
	lr.intercept = w[d]
	return nil
}

func (lr *LogisticRegression) objective(design *mat.Dense, y, w []float64, lambda float64) float64 {
	n, p := design.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		z := floats.Dot(design.RawRowView(i), w)
		// log(1+exp(z)) - y*z, computed without overflow
		if z > 0 {
			sum += z + math.Log1p(math.Exp(-z)) - y[i]*z
		} else {
			sum += math.Log1p(math.Exp(z)) - y[i]*z
		}
	}
	pen := floats.Dot(w[:p-1], w[:p-1])
	return sum + 0.5*lambda*pen
}

func (lr *LogisticRegression) derivatives(design *mat.Dense, y, w []float64, lambda float64) ([]float64, *mat.SymDense) {
	n, p := design.Dims()
	grad := make([]float64, p)
	hess := mat.NewSymDense(p, nil)

	for i := 0; i < n; i++ {
		row := design.RawRowView(i)
		mu := sigmoid(floats.Dot(row, w))
		floats.AddScaled(grad, mu-y[i], row)
		weight := mu * (1 - mu)
		for a := 0; a < p; a++ {
			wa := weight * row[a]
			for b := a; b < p; b++ {
				hess.SetSym(a, b, hess.At(a, b)+wa*row[b])
			}
		}
	}
	for j := 0; j < p-1; j++ {
		grad[j] += lambda * w[j]
		hess.SetSym(j, j, hess.At(j, j)+lambda)
	}
	return grad, hess
}

// PredictProba returns (1-s, s) with s the logistic of the linear score.
func (lr *LogisticRegression) PredictProba(x []float64) [2]float64 {
	s := sigmoid(floats.Dot(lr.coef, x) + lr.intercept)
	return [2]float64{1 - s, s}
}

// Predict returns 1 when P(y=1) exceeds one half.
func (lr *LogisticRegression) Predict(x []float64) int {
	if lr.PredictProba(x)[1] > 0.5 {
		return 1
	}
	return 0
}

// Coefficients returns the fitted feature weights and intercept.
func (lr *LogisticRegression) Coefficients() ([]float64, float64) {
	return lr.coef, lr.intercept
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
