package service

import (
	"PollPulse/internal/domain/models"
)

// CandidateModel is a trained per-candidate regressor. Instances are
// immutable once produced; retraining yields a new instance.
type CandidateModel interface {
	Predict(features []float64) float64
	Diagnostics() models.ModelDiagnostics
}

// CandidateRegressor trains one model per candidate. Implementations must
// be deterministic for a fixed seed so the pipeline is reproducible.
type CandidateRegressor interface {
	Train(vectors []models.FeatureVector, seed int64) (CandidateModel, error)
}

// OutcomeSimulator propagates uncertainty over regional point predictions
// into a win-probability / expected-outcome distribution.
type OutcomeSimulator interface {
	Simulate(predictions map[string]map[string]float64, regions map[string]models.RegionMetadata, totalUnits int) (*models.SimulationResult, error)
}
