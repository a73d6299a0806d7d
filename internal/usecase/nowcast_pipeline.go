package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"PollPulse/internal/domain/models"
	"PollPulse/internal/domain/repository"
	"PollPulse/internal/domain/service"
	"PollPulse/internal/services/features"
	"PollPulse/internal/services/regression"
	"PollPulse/internal/services/simulation"
	"PollPulse/pkg/logger"
)

// NowcastParams configures one pipeline run.
type NowcastParams struct {
	PeriodID           string
	DataSourceLabel    string
	Candidates         []string
	CurrentDate        time.Time
	LookbackDays       int
	NSimulations       int
	ShyVoterAdjustment float64
	ShyCandidate       string
	ShyRegions         []string
	UncertaintyStd     float64
	RandomSeed         *int64
	MinSamples         int
	DecayRate          float64
	MaxPollRecords     int
	TotalOutcomeUnits  int
	RequireAll         bool
}

// TrainerFactory builds a regressor for a run's sample floor.
type TrainerFactory func(minSamples int) service.CandidateRegressor

// SimulatorFactory builds a simulator for a run's noise and seed.
type SimulatorFactory func(p NowcastParams, seed int64) service.OutcomeSimulator

// PipelineOption configures NowcastPipeline.
type PipelineOption func(*NowcastPipeline)

// WithTrainerFactory overrides the default ridge trainer.
func WithTrainerFactory(f TrainerFactory) PipelineOption {
	return func(p *NowcastPipeline) { p.newTrainer = f }
}

// WithSimulatorFactory overrides the default Monte Carlo simulator.
func WithSimulatorFactory(f SimulatorFactory) PipelineOption {
	return func(p *NowcastPipeline) { p.newSimulator = f }
}

// NowcastPipeline runs the full nowcast: load polls, engineer features,
// train per-candidate models, simulate outcomes, assemble the forecast.
type NowcastPipeline struct {
	store     repository.PollStore
	publisher repository.ForecastPublisher // nil disables publishing
	metrics   repository.Metrics
	log       *logger.Logger

	newTrainer   TrainerFactory
	newSimulator SimulatorFactory
}

// NewNowcastPipeline creates the pipeline use case.
func NewNowcastPipeline(
	store repository.PollStore,
	publisher repository.ForecastPublisher,
	metrics repository.Metrics,
	log *logger.Logger,
	opts ...PipelineOption,
) *NowcastPipeline {
	p := &NowcastPipeline{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		newTrainer: func(minSamples int) service.CandidateRegressor {
			return regression.NewTrainer(minSamples, 0)
		},
		newSimulator: func(params NowcastParams, seed int64) service.OutcomeSimulator {
			return simulation.New(
				simulation.WithIterations(params.NSimulations),
				simulation.WithStdDev(params.UncertaintyStd),
				simulation.WithSeed(seed),
				simulation.WithShyVoter(params.ShyVoterAdjustment, params.ShyCandidate, params.ShyRegions),
			)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one nowcast and publishes the forecast when a publisher is
// wired. All randomness derives from the run seed, so a fixed seed gives a
// bit-identical forecast.
func (p *NowcastPipeline) Run(ctx context.Context, params NowcastParams) (*models.Forecast, error) {
	params = withDefaults(params)
	if err := validateParams(params); err != nil {
		p.fail(params.PeriodID, "config", err)
		return nil, err
	}

	seed := time.Now().UnixNano()
	if params.RandomSeed != nil {
		seed = *params.RandomSeed
	}

	from := params.CurrentDate.AddDate(0, 0, -params.LookbackDays)
	polls, err := p.store.GetPolls(ctx, params.PeriodID, params.Candidates, from, params.CurrentDate)
	if err != nil {
		p.fail(params.PeriodID, "store", err)
		return nil, fmt.Errorf("load polls: %w", err)
	}
	regions, err := p.store.GetRegions(ctx, params.PeriodID)
	if err != nil {
		p.fail(params.PeriodID, "store", err)
		return nil, fmt.Errorf("load regions: %w", err)
	}

	totalUnits, err := resolveTotalUnits(params.TotalOutcomeUnits, regions)
	if err != nil {
		p.fail(params.PeriodID, "config", err)
		return nil, err
	}
	if err := validatePollRegions(polls, regions); err != nil {
		p.fail(params.PeriodID, "config", err)
		return nil, err
	}

	stage := time.Now()
	engineer := features.NewEngineer(params.DecayRate, 1, params.MaxPollRecords)
	fs, err := engineer.Build(polls, regions, params.CurrentDate, params.LookbackDays, seed)
	if err != nil {
		p.fail(params.PeriodID, "features", err)
		return nil, fmt.Errorf("engineer features: %w", err)
	}
	p.metrics.RecordStageLatency("features", time.Since(stage).Seconds())
	p.log.Info("features built",
		logger.String("period", params.PeriodID),
		logger.Int("polls", fs.NPolls),
		logger.Int("regions", len(fs.Vocabulary.Regions())))

	stage = time.Now()
	trainer := p.newTrainer(params.MinSamples)
	byCandidate := fs.ByCandidate()

	trained := make(map[string]service.CandidateModel, len(params.Candidates))
	diagnostics := make(map[string]models.ModelDiagnostics, len(params.Candidates))
	var skipped []string
	for _, candidate := range params.Candidates {
		vectors := byCandidate[candidate]
		model, trainErr := trainer.Train(vectors, seed)
		if trainErr != nil {
			if !errors.Is(trainErr, models.ErrDataInsufficient) {
				p.fail(params.PeriodID, "training", trainErr)
				return nil, fmt.Errorf("train %s: %w", candidate, trainErr)
			}
			if params.RequireAll {
				p.fail(params.PeriodID, "training", trainErr)
				return nil, trainErr
			}
			p.log.Warn("candidate skipped",
				logger.String("candidate", candidate),
				logger.Int("samples", len(vectors)))
			skipped = append(skipped, candidate)
			continue
		}
		trained[candidate] = model
		diagnostics[candidate] = model.Diagnostics()
	}
	if len(trained) < 2 {
		err := &models.DataInsufficientError{Got: len(trained), Need: 2}
		p.fail(params.PeriodID, "training", err)
		return nil, fmt.Errorf("only %d candidates trainable: %w", len(trained), err)
	}
	p.metrics.RecordStageLatency("training", time.Since(stage).Seconds())

	predictions, err := p.predictRegions(trained, fs, regions)
	if err != nil {
		p.fail(params.PeriodID, "prediction", err)
		return nil, err
	}

	stage = time.Now()
	sim := p.newSimulator(params, seed)
	result, err := sim.Simulate(predictions, regions, totalUnits)
	if err != nil {
		p.fail(params.PeriodID, "simulation", err)
		return nil, fmt.Errorf("simulate: %w", err)
	}
	p.metrics.RecordStageLatency("simulation", time.Since(stage).Seconds())

	sort.Strings(skipped)
	forecast := &models.Forecast{
		NowcastDate:          params.CurrentDate,
		DataSourceLabel:      params.DataSourceLabel,
		Candidates:           result.Candidates,
		WinProbabilities:     result.WinProbabilities,
		ExpectedOutcomeUnits: result.ExpectedOutcomeUnits,
		ExpectedSupport:      expectedSupport(result.Candidates, predictions),
		TotalOutcomeUnits:    totalUnits,
		RegionPredictions:    predictions,
		RegionWinProbs:       result.RegionWinProbs,
		ModelDiagnostics:     diagnostics,
		SkippedCandidates:    skipped,
		NPollsUsed:           fs.NPolls,
		PollRecencyRangeDays: [2]int{fs.MinDaysAgo, fs.MaxDaysAgo},
		NSimulations:         result.NSimulations,
	}

	p.metrics.RecordPipelineRun(params.PeriodID, "success")
	for i, c := range forecast.Candidates {
		p.metrics.RecordWinProbability(params.PeriodID, c, forecast.WinProbabilities[i])
	}
	p.log.Info("nowcast complete",
		logger.String("period", params.PeriodID),
		logger.Strings("candidates", forecast.Candidates),
		logger.Any("win_probabilities", forecast.WinProbabilities),
		logger.Int("n_simulations", forecast.NSimulations))

	if p.publisher != nil {
		if pubErr := p.publisher.Publish(ctx, params.PeriodID, forecast); pubErr != nil {
			// the forecast itself is good; publishing is best-effort
			p.metrics.RecordError("publish")
			p.log.Error("forecast publish failed", logger.Error(pubErr))
		}
	}
	return forecast, nil
}

// predictRegions builds the clamped per-region point predictions for every
// trained candidate. Non-finite model output aborts the run.
func (p *NowcastPipeline) predictRegions(
	trained map[string]service.CandidateModel,
	fs *features.FeatureSet,
	regions map[string]models.RegionMetadata,
) (map[string]map[string]float64, error) {
	predictions := make(map[string]map[string]float64, len(regions))
	for region, meta := range regions {
		row := make(map[string]float64, len(trained))
		for candidate, model := range trained {
			pred := model.Predict(fs.PredictionVector(candidate, region, meta))
			if math.IsNaN(pred) || math.IsInf(pred, 0) {
				return nil, &models.ModelOutputError{Candidate: candidate, Region: region, Value: pred}
			}
			row[candidate] = clampPct(pred)
		}
		predictions[region] = row
	}
	return predictions, nil
}

func (p *NowcastPipeline) fail(periodID, kind string, err error) {
	p.metrics.RecordPipelineRun(periodID, "error")
	p.metrics.RecordError(kind)
	p.log.Error("nowcast failed", logger.String("stage", kind), logger.Error(err))
}

func withDefaults(p NowcastParams) NowcastParams {
	if p.CurrentDate.IsZero() {
		p.CurrentDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if p.LookbackDays == 0 {
		p.LookbackDays = 60
	}
	if p.NSimulations == 0 {
		p.NSimulations = simulation.DefaultIterations
	}
	if p.UncertaintyStd == 0 {
		p.UncertaintyStd = simulation.DefaultStdDev
	}
	if p.MinSamples == 0 {
		p.MinSamples = regression.DefaultMinSamples
	}
	if p.DataSourceLabel == "" {
		p.DataSourceLabel = "pct_estimate"
	}
	return p
}

func validateParams(p NowcastParams) error {
	if p.PeriodID == "" {
		return &models.ConfigError{Field: "period_id", Reason: "required"}
	}
	if len(p.Candidates) < 2 {
		return &models.ConfigError{Field: "candidates", Reason: fmt.Sprintf("need at least 2, got %d", len(p.Candidates))}
	}
	seen := make(map[string]struct{}, len(p.Candidates))
	for _, c := range p.Candidates {
		if c == "" {
			return &models.ConfigError{Field: "candidates", Reason: "empty candidate name"}
		}
		if _, dup := seen[c]; dup {
			return &models.ConfigError{Field: "candidates", Reason: "duplicate candidate " + c}
		}
		seen[c] = struct{}{}
	}
	if p.LookbackDays < 1 {
		return &models.ConfigError{Field: "lookback_days", Reason: "must be positive"}
	}
	if p.NSimulations < 1 {
		return &models.ConfigError{Field: "n_simulations", Reason: "must be positive"}
	}
	if p.UncertaintyStd < 0 {
		return &models.ConfigError{Field: "uncertainty_std", Reason: "must be non-negative"}
	}
	if p.MinSamples < 1 {
		return &models.ConfigError{Field: "min_samples", Reason: "must be positive"}
	}
	if p.ShyCandidate != "" {
		if _, ok := seen[p.ShyCandidate]; !ok {
			return &models.ConfigError{Field: "shy_candidate", Reason: p.ShyCandidate + " is not a candidate"}
		}
	}
	return nil
}

// resolveTotalUnits reconciles the configured race size with region
// metadata. A zero configured value derives the total from the regions.
func resolveTotalUnits(configured int, regions map[string]models.RegionMetadata) (int, error) {
	if len(regions) == 0 {
		return 0, &models.ConfigError{Field: "regions", Reason: "no region metadata for period"}
	}
	sum := 0
	for _, r := range regions {
		if r.OutcomeUnits < 0 {
			return 0, &models.ConfigError{Field: "regions", Reason: "negative outcome units for " + r.RegionID}
		}
		sum += r.OutcomeUnits
	}
	if sum == 0 {
		return 0, &models.ConfigError{Field: "regions", Reason: "region outcome units sum to zero"}
	}
	if configured > 0 && configured != sum {
		return 0, &models.ConfigError{
			Field:  "total_outcome_units",
			Reason: fmt.Sprintf("configured %d but regions sum to %d", configured, sum),
		}
	}
	return sum, nil
}

// validatePollRegions rejects poll records citing regions with no metadata.
// A mislabeled region would otherwise train on zero-value metadata and an
// encoding that collides with the first known region.
func validatePollRegions(polls []models.PollRecord, regions map[string]models.RegionMetadata) error {
	for _, p := range polls {
		if _, ok := regions[p.Region]; !ok {
			return &models.ConfigError{Field: "regions", Reason: "poll references unknown region " + p.Region}
		}
	}
	return nil
}

// expectedSupport is the unweighted mean of regional point predictions per
// candidate, aligned with the candidates slice.
func expectedSupport(candidates []string, predictions map[string]map[string]float64) []float64 {
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		sum := 0.0
		n := 0
		for _, row := range predictions {
			if pred, ok := row[c]; ok {
				sum += pred
				n++
			}
		}
		if n > 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

func clampPct(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}
