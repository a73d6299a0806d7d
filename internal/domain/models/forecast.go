package models

import "time"

// SimulationResult aggregates the Monte Carlo outcome distribution.
// Produced fresh per simulation run; never mutated post-creation.
type SimulationResult struct {
	Candidates           []string                      `json:"candidates"`
	WinProbabilities     []float64                     `json:"win_probabilities"`
	ExpectedOutcomeUnits []float64                     `json:"expected_outcome_units"`
	RegionWinProbs       map[string]map[string]float64 `json:"region_win_probabilities"`
	RegionSupportMeans   map[string]map[string]float64 `json:"region_support_means"`
	NSimulations         int                           `json:"n_simulations"`
}

// Forecast is the assembled output of one nowcast pipeline run.
type Forecast struct {
	NowcastDate          time.Time                     `json:"nowcast_date"`
	DataSourceLabel      string                        `json:"data_source_label"`
	Candidates           []string                      `json:"candidates"`
	WinProbabilities     []float64                     `json:"win_probabilities"`
	ExpectedOutcomeUnits []float64                     `json:"expected_outcome_units"`
	ExpectedSupport      []float64                     `json:"expected_support"`
	TotalOutcomeUnits    int                           `json:"total_outcome_units"`
	RegionPredictions    map[string]map[string]float64 `json:"region_predictions"`
	RegionWinProbs       map[string]map[string]float64 `json:"region_win_probabilities"`
	ModelDiagnostics     map[string]ModelDiagnostics   `json:"model_diagnostics"`
	SkippedCandidates    []string                      `json:"skipped_candidates,omitempty"`
	NPollsUsed           int                           `json:"n_polls_used"`
	PollRecencyRangeDays [2]int                        `json:"poll_recency_range_days"`
	NSimulations         int                           `json:"n_simulations"`
}
