package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"PollPulse/internal/domain/models"
	"PollPulse/internal/domain/service"
	"PollPulse/pkg/logger"
)

type fakeStore struct {
	polls   []models.PollRecord
	regions map[string]models.RegionMetadata
	stored  []models.PollRecord
}

func (s *fakeStore) Init(ctx context.Context) error { return nil }

func (s *fakeStore) GetPolls(ctx context.Context, periodID string, candidates []string, from, to time.Time) ([]models.PollRecord, error) {
	return s.polls, nil
}

func (s *fakeStore) GetRegions(ctx context.Context, periodID string) (map[string]models.RegionMetadata, error) {
	return s.regions, nil
}

func (s *fakeStore) StorePolls(ctx context.Context, periodID string, polls []models.PollRecord) error {
	s.stored = append(s.stored, polls...)
	return nil
}

func (s *fakeStore) Health(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                     { return nil }

type fakePublisher struct {
	published []*models.Forecast
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, periodID string, f *models.Forecast) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, f)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeMetrics struct {
	runs   map[string]int
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordPipelineRun(periodID, result string) { m.runs[result]++ }
func (m *fakeMetrics) RecordError(kind string)                   { m.errors[kind]++ }

func (m *fakeMetrics) RecordWinProbability(periodID, candidate string, p float64) {}
func (m *fakeMetrics) RecordStageLatency(stage string, seconds float64)           {}
func (m *fakeMetrics) RecordPollsIngested(periodID string, n int)                 {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testRegions() map[string]models.RegionMetadata {
	return map[string]models.RegionMetadata{
		"CA": {RegionID: "CA", OutcomeUnits: 54, HistoricalLean: -1},
		"PA": {RegionID: "PA", OutcomeUnits: 19, IsSwing: true},
		"TX": {RegionID: "TX", OutcomeUnits: 40, HistoricalLean: 1},
	}
}

// racePolls builds a deterministic poll history where A leads in CA, B leads
// in TX and PA is close.
func racePolls(current time.Time, candidates ...string) []models.PollRecord {
	rng := rand.New(rand.NewSource(99))
	base := map[string]map[string]float64{
		"CA": {"A": 57, "B": 40, "C": 3},
		"PA": {"A": 49, "B": 48, "C": 3},
		"TX": {"A": 41, "B": 55, "C": 4},
	}
	var polls []models.PollRecord
	for region, byCand := range base {
		for _, c := range candidates {
			mean, ok := byCand[c]
			if !ok {
				continue
			}
			for day := 1; day <= 50; day++ {
				polls = append(polls, models.PollRecord{
					Candidate:         c,
					Region:            region,
					ObservationDate:   current.AddDate(0, 0, -day),
					PctEstimate:       mean + rng.NormFloat64()*1.5,
					PollsterQuality:   0.5 + rng.Float64()*0.5,
					PollsterInfluence: rng.Float64(),
				})
			}
		}
	}
	return polls
}

func baseParams(current time.Time) NowcastParams {
	seed := int64(42)
	return NowcastParams{
		PeriodID:     "us-2024",
		Candidates:   []string{"A", "B"},
		CurrentDate:  current,
		LookbackDays: 60,
		NSimulations: 500,
		MinSamples:   20,
		RandomSeed:   &seed,
	}
}

func TestPipelineRunProducesForecast(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{polls: racePolls(current, "A", "B"), regions: testRegions()}
	pub := &fakePublisher{}
	metrics := newFakeMetrics()

	p := NewNowcastPipeline(store, pub, metrics, testLogger(t))
	f, err := p.Run(context.Background(), baseParams(current))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !reflect.DeepEqual(f.Candidates, []string{"A", "B"}) {
		t.Fatalf("unexpected candidates %v", f.Candidates)
	}
	if f.TotalOutcomeUnits != 113 {
		t.Fatalf("expected 113 units, got %d", f.TotalOutcomeUnits)
	}
	sum := 0.0
	for _, prob := range f.WinProbabilities {
		if prob < 0 || prob > 1 {
			t.Fatalf("probability out of range: %v", prob)
		}
		sum += prob
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("two-way probabilities must sum to 1, got %v", sum)
	}
	for region, row := range f.RegionPredictions {
		for c, pred := range row {
			if pred < 0 || pred > 100 {
				t.Fatalf("prediction out of range for %s/%s: %v", c, region, pred)
			}
		}
	}
	if len(f.ModelDiagnostics) != 2 {
		t.Fatalf("expected diagnostics for both candidates, got %v", f.ModelDiagnostics)
	}
	for c, d := range f.ModelDiagnostics {
		if d.NSamples != 150 {
			t.Fatalf("expected 150 samples for %s, got %d", c, d.NSamples)
		}
	}
	if f.NPollsUsed != 300 {
		t.Fatalf("expected 300 polls used, got %d", f.NPollsUsed)
	}
	if len(pub.published) != 1 {
		t.Fatalf("forecast not published")
	}
	if metrics.runs["success"] != 1 {
		t.Fatalf("success run not recorded: %v", metrics.runs)
	}
}

func TestPipelineDeterministicForSeed(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{polls: racePolls(current, "A", "B"), regions: testRegions()}

	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t))
	f1, err := p.Run(context.Background(), baseParams(current))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	f2, err := p.Run(context.Background(), baseParams(current))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(f1, f2) {
		t.Fatalf("same seed must give identical forecasts")
	}
}

func TestPipelineSkipsThinCandidate(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	polls := racePolls(current, "A", "B")
	// C gets a single poll, far below the sample floor
	polls = append(polls, models.PollRecord{
		Candidate: "C", Region: "PA",
		ObservationDate: current.AddDate(0, 0, -3),
		PctEstimate:     3,
	})
	store := &fakeStore{polls: polls, regions: testRegions()}

	params := baseParams(current)
	params.Candidates = []string{"A", "B", "C"}

	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t))
	f, err := p.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(f.SkippedCandidates, []string{"C"}) {
		t.Fatalf("expected C skipped, got %v", f.SkippedCandidates)
	}
	if !reflect.DeepEqual(f.Candidates, []string{"A", "B"}) {
		t.Fatalf("skipped candidate leaked into race: %v", f.Candidates)
	}
}

func TestPipelineRequireAllFailsOnThinCandidate(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{polls: racePolls(current, "A", "B"), regions: testRegions()}

	params := baseParams(current)
	params.Candidates = []string{"A", "B", "C"}
	params.RequireAll = true

	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t))
	_, err := p.Run(context.Background(), params)
	if !errors.Is(err, models.ErrDataInsufficient) {
		t.Fatalf("expected ErrDataInsufficient, got %v", err)
	}
}

func TestPipelineFailsWhenFewerThanTwoTrainable(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{polls: racePolls(current, "A"), regions: testRegions()}

	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t))
	_, err := p.Run(context.Background(), baseParams(current))
	if !errors.Is(err, models.ErrDataInsufficient) {
		t.Fatalf("expected ErrDataInsufficient, got %v", err)
	}
}

func TestPipelineValidatesParams(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{polls: racePolls(current, "A", "B"), regions: testRegions()}
	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t))

	cases := []struct {
		name   string
		mutate func(*NowcastParams)
	}{
		{"duplicate candidates", func(p *NowcastParams) { p.Candidates = []string{"A", "A"} }},
		{"one candidate", func(p *NowcastParams) { p.Candidates = []string{"A"} }},
		{"unknown shy candidate", func(p *NowcastParams) { p.ShyCandidate = "Z" }},
		{"negative sigma", func(p *NowcastParams) { p.UncertaintyStd = -1 }},
		{"missing period", func(p *NowcastParams) { p.PeriodID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := baseParams(current)
			tc.mutate(&params)
			if _, err := p.Run(context.Background(), params); !errors.Is(err, models.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestPipelineRejectsUnknownPollRegion(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	polls := racePolls(current, "A", "B")
	// a poll citing a region with no metadata must stop the run before
	// any training happens
	polls = append(polls, models.PollRecord{
		Candidate:       "A",
		Region:          "ZZ",
		ObservationDate: current.AddDate(0, 0, -2),
		PctEstimate:     50,
	})
	store := &fakeStore{polls: polls, regions: testRegions()}

	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t))
	_, err := p.Run(context.Background(), baseParams(current))
	if !errors.Is(err, models.ErrConfig) {
		t.Fatalf("expected ErrConfig for poll citing unmapped region, got %v", err)
	}
}

func TestPipelineExpectedSupportIsMeanOfRegionPredictions(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{polls: racePolls(current, "A", "B"), regions: testRegions()}

	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t))
	f, err := p.Run(context.Background(), baseParams(current))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, c := range f.Candidates {
		sum := 0.0
		n := 0
		for _, row := range f.RegionPredictions {
			if pred, ok := row[c]; ok {
				sum += pred
				n++
			}
		}
		want := sum / float64(n)
		if math.Abs(f.ExpectedSupport[i]-want) > 1e-9 {
			t.Fatalf("expected support for %s to average its region predictions: got %v, want %v",
				c, f.ExpectedSupport[i], want)
		}
	}
}

func TestPipelineRejectsRegionTotalMismatch(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{polls: racePolls(current, "A", "B"), regions: testRegions()}

	params := baseParams(current)
	params.TotalOutcomeUnits = 500 // regions sum to 113

	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t))
	if _, err := p.Run(context.Background(), params); !errors.Is(err, models.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

type nanModel struct{}

func (nanModel) Predict([]float64) float64            { return math.NaN() }
func (nanModel) Diagnostics() models.ModelDiagnostics { return models.ModelDiagnostics{} }

type nanTrainer struct{}

func (nanTrainer) Train(vectors []models.FeatureVector, seed int64) (service.CandidateModel, error) {
	return nanModel{}, nil
}

func TestPipelineRejectsNonFinitePrediction(t *testing.T) {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{polls: racePolls(current, "A", "B"), regions: testRegions()}

	p := NewNowcastPipeline(store, nil, newFakeMetrics(), testLogger(t),
		WithTrainerFactory(func(int) service.CandidateRegressor { return nanTrainer{} }))
	_, err := p.Run(context.Background(), baseParams(current))
	if !errors.Is(err, models.ErrModelOutput) {
		t.Fatalf("expected ErrModelOutput, got %v", err)
	}
}
