package regression

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"PollPulse/internal/domain/models"
)

// syntheticVectors builds n vectors whose target is a noisy linear function
// of two feature columns.
func syntheticVectors(n int, noise float64, seed int64) []models.FeatureVector {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.FeatureVector, 0, n)
	for i := 0; i < n; i++ {
		avg := 40 + rng.Float64()*20
		lean := float64(rng.Intn(3) - 1)
		v := models.FeatureVector{
			Candidate:         "A",
			Region:            "PA",
			DaysSincePollNorm: rng.Float64(),
			WeeksSincePoll:    rng.Float64() * 8,
			TimeWeight:        rng.Float64(),
			RegionEncoded:     float64(rng.Intn(5)),
			RegionLean:        lean,
			IsSwingRegion:     float64(rng.Intn(2)),
			PollAvg7d:         avg,
			PollAvg14d:        avg,
			PollAvg30d:        avg,
			QualityScoreNorm:  rng.Float64(),
			InfluenceNorm:     rng.Float64(),
		}
		v.Target = 0.9*avg + 2*lean + 3 + rng.NormFloat64()*noise
		out = append(out, v)
	}
	return out
}

func TestTrainRejectsInsufficientSamples(t *testing.T) {
	tr := NewTrainer(30, 0)
	_, err := tr.Train(syntheticVectors(29, 0.1, 1), 42)
	if !errors.Is(err, models.ErrDataInsufficient) {
		t.Fatalf("expected ErrDataInsufficient, got %v", err)
	}
	var de *models.DataInsufficientError
	if !errors.As(err, &de) || de.Candidate != "A" || de.Got != 29 || de.Need != 30 {
		t.Fatalf("unexpected error detail: %v", err)
	}
}

func TestTrainDeterministicForSeed(t *testing.T) {
	vecs := syntheticVectors(100, 1.0, 7)
	tr := NewTrainer(30, 0)

	m1, err := tr.Train(vecs, 42)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	m2, err := tr.Train(vecs, 42)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	in := vecs[0].Values()
	if m1.Predict(in) != m2.Predict(in) {
		t.Fatalf("same seed must give identical predictions")
	}
	if m1.Diagnostics() != m2.Diagnostics() {
		t.Fatalf("same seed must give identical diagnostics")
	}
}

func TestTrainRecoversLinearSignal(t *testing.T) {
	vecs := syntheticVectors(400, 0.5, 11)
	tr := NewTrainer(30, 0)

	m, err := tr.Train(vecs, 42)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	diag := m.Diagnostics()
	if diag.NSamples != 400 {
		t.Fatalf("expected 400 samples, got %d", diag.NSamples)
	}
	if diag.RSquared < 0.9 {
		t.Fatalf("expected strong fit on near-linear data, got r2=%v", diag.RSquared)
	}

	// Prediction should sit near the generating function.
	v := vecs[5]
	want := 0.9*v.PollAvg7d + 2*v.RegionLean + 3
	if math.Abs(m.Predict(v.Values())-want) > 3 {
		t.Fatalf("prediction %v too far from %v", m.Predict(v.Values()), want)
	}
}

func TestGaussianSolveKnownSystem(t *testing.T) {
	// 2x + y = 5, x + 3y = 10  =>  x = 1, y = 3
	a := [][]float64{
		{2, 1, 5},
		{1, 3, 10},
	}
	w, err := gaussianSolve(a)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(w[0]-1) > 1e-9 || math.Abs(w[1]-3) > 1e-9 {
		t.Fatalf("unexpected solution %v", w)
	}
}

func TestGaussianSolveSingular(t *testing.T) {
	a := [][]float64{
		{1, 1, 2},
		{2, 2, 4},
	}
	if _, err := gaussianSolve(a); err == nil {
		t.Fatalf("expected singular matrix error")
	}
}
