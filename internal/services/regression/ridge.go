package regression

import (
	"fmt"
	"math"
	"math/rand"

	"PollPulse/internal/domain/models"
	"PollPulse/internal/domain/service"
)

const (
	// DefaultMinSamples is the training floor per candidate.
	DefaultMinSamples = 30

	// DefaultLambda is the ridge penalty. Small enough to stay close to
	// ordinary least squares, large enough to keep the normal equations
	// solvable when features are collinear (the three rolling means often
	// are).
	DefaultLambda = 1e-3

	holdoutFraction = 0.2
)

// Trainer fits one ridge model per candidate on engineered feature vectors.
// It implements service.CandidateRegressor.
type Trainer struct {
	minSamples int
	lambda     float64
}

// NewTrainer creates a trainer. Non-positive arguments fall back to defaults.
func NewTrainer(minSamples int, lambda float64) *Trainer {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	if lambda <= 0 {
		lambda = DefaultLambda
	}
	return &Trainer{minSamples: minSamples, lambda: lambda}
}

// Model is a trained ridge regressor. Weights are frozen at creation.
type Model struct {
	weights []float64 // intercept first
	diag    models.ModelDiagnostics
}

// Predict returns the point estimate for one feature vector.
func (m *Model) Predict(features []float64) float64 {
	y := m.weights[0]
	for i, x := range features {
		y += m.weights[i+1] * x
	}
	return y
}

// Diagnostics reports holdout fit quality.
func (m *Model) Diagnostics() models.ModelDiagnostics {
	return m.diag
}

// Train fits a model on an 80/20 split. The split is shuffled with the given
// seed so repeated runs produce identical models. R-squared is computed on
// the held-out 20%.
func (t *Trainer) Train(vectors []models.FeatureVector, seed int64) (service.CandidateModel, error) {
	n := len(vectors)
	if n < t.minSamples {
		candidate := ""
		if n > 0 {
			candidate = vectors[0].Candidate
		}
		return nil, &models.DataInsufficientError{Candidate: candidate, Got: n, Need: t.minSamples}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nTest := int(float64(n) * holdoutFraction)
	testIdx, trainIdx := idx[:nTest], idx[nTest:]

	x := make([][]float64, 0, len(trainIdx))
	y := make([]float64, 0, len(trainIdx))
	for _, i := range trainIdx {
		x = append(x, vectors[i].Values())
		y = append(y, vectors[i].Target)
	}

	w, err := solveRidge(x, y, t.lambda)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", vectors[0].Candidate, err)
	}

	m := &Model{weights: w}
	m.diag = models.ModelDiagnostics{
		RSquared: rSquared(m, vectors, testIdx),
		NSamples: n,
	}
	return m, nil
}

// solveRidge solves (X'X + lambda*I) w = X'y with an intercept column. The
// intercept is not penalized.
func solveRidge(x [][]float64, y []float64, lambda float64) ([]float64, error) {
	d := len(x[0]) + 1 // intercept

	a := make([][]float64, d)
	for i := range a {
		a[i] = make([]float64, d+1) // augmented with X'y
	}

	row := make([]float64, d)
	for r, xi := range x {
		row[0] = 1
		copy(row[1:], xi)
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				a[i][j] += row[i] * row[j]
			}
			a[i][d] += row[i] * y[r]
		}
	}
	for i := 1; i < d; i++ {
		a[i][i] += lambda
	}

	return gaussianSolve(a)
}

// gaussianSolve runs elimination with partial pivoting on an augmented
// matrix [A | b].
func gaussianSolve(a [][]float64) ([]float64, error) {
	d := len(a)
	for col := 0; col < d; col++ {
		pivot := col
		for r := col + 1; r < d; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular design matrix at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := col + 1; r < d; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= d; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	w := make([]float64, d)
	for i := d - 1; i >= 0; i-- {
		s := a[i][d]
		for j := i + 1; j < d; j++ {
			s -= a[i][j] * w[j]
		}
		w[i] = s / a[i][i]
	}
	return w, nil
}

// rSquared scores the model on the held-out rows. A constant-target holdout
// or an empty one scores 0 rather than dividing by zero.
func rSquared(m *Model, vectors []models.FeatureVector, testIdx []int) float64 {
	if len(testIdx) == 0 {
		return 0
	}
	mean := 0.0
	for _, i := range testIdx {
		mean += vectors[i].Target
	}
	mean /= float64(len(testIdx))

	ssRes, ssTot := 0.0, 0.0
	for _, i := range testIdx {
		yi := vectors[i].Target
		resid := yi - m.Predict(vectors[i].Values())
		ssRes += resid * resid
		ssTot += (yi - mean) * (yi - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
