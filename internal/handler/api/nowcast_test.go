package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PollPulse/internal/domain/models"
	icache "PollPulse/internal/service/cache"
	"PollPulse/internal/usecase"
	xlogger "PollPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type stubStore struct {
	polls     []models.PollRecord
	regions   map[string]models.RegionMetadata
	pollCalls int
	healthErr error
}

func (s *stubStore) Init(ctx context.Context) error { return nil }

func (s *stubStore) GetPolls(ctx context.Context, periodID string, candidates []string, from, to time.Time) ([]models.PollRecord, error) {
	s.pollCalls++
	return s.polls, nil
}

func (s *stubStore) GetRegions(ctx context.Context, periodID string) (map[string]models.RegionMetadata, error) {
	return s.regions, nil
}

func (s *stubStore) StorePolls(ctx context.Context, periodID string, polls []models.PollRecord) error {
	return nil
}

func (s *stubStore) Health(ctx context.Context) error { return s.healthErr }
func (s *stubStore) Close() error                     { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordPipelineRun(string, string) {}
func (noopMetrics) RecordError(string) {}
func (noopMetrics) RecordWinProbability(string, string, float64) {}
func (noopMetrics) RecordStageLatency(string, float64) {}
func (noopMetrics) RecordPollsIngested(string, int) {}

func newTestHandler(t *testing.T, store *stubStore) *NowcastEchoHandler {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	pipeline := usecase.NewNowcastPipeline(store, nil, noopMetrics{}, l)
	seed := int64(42)
	return NewNowcastEchoHandler(l, pipeline, store, usecase.NowcastParams{
		PeriodID:     "us-2024",
		Candidates:   []string{"A", "B"},
		CurrentDate:  time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		LookbackDays: 60,
		NSimulations: 200,
		MinSamples:   20,
		RandomSeed:   &seed,
	})
}

func seededStore() *stubStore {
	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(5))
	regions := map[string]models.RegionMetadata{
		"CA": {RegionID: "CA", OutcomeUnits: 54},
		"TX": {RegionID: "TX", OutcomeUnits: 40},
	}
	var polls []models.PollRecord
	for region, lead := range map[string]float64{"CA": 8, "TX": -8} {
		for _, c := range []string{"A", "B"} {
			mean := 48.0 + lead/2
			if c == "B" {
				mean = 48.0 - lead/2
			}
			for day := 1; day <= 40; day++ {
				polls = append(polls, models.PollRecord{
					Candidate:       c,
					Region:          region,
					ObservationDate: current.AddDate(0, 0, -day),
					PctEstimate:     mean + rng.NormFloat64(),
					PollsterQuality: 0.7,
				})
			}
		}
	}
	return &stubStore{polls: polls, regions: regions}
}

func postNowcast(h *NowcastEchoHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodPost, "/api/nowcast", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestNowcastEndpointReturnsForecast(t *testing.T) {
	h := newTestHandler(t, seededStore())
	rec := postNowcast(h, `{}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Status int             `json:"status"`
		Data   models.Forecast `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Status != http.StatusOK {
		t.Fatalf("unexpected envelope status %d", envelope.Status)
	}
	if len(envelope.Data.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %v", envelope.Data.Candidates)
	}
	if envelope.Data.TotalOutcomeUnits != 94 {
		t.Fatalf("expected 94 units, got %d", envelope.Data.TotalOutcomeUnits)
	}
}

func TestNowcastEndpointRejectsBadRequest(t *testing.T) {
	h := newTestHandler(t, seededStore())
	rec := postNowcast(h, `{"lookback_days": -5}`)

	var envelope struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 envelope, got %d", envelope.Status)
	}
}

func TestNowcastEndpointUsesCache(t *testing.T) {
	store := seededStore()
	h := newTestHandler(t, store).WithCache(icache.NewTTLCache(), time.Minute)

	body := `{"use_cache": true}`
	if rec := postNowcast(h, body); rec.Code != http.StatusOK {
		t.Fatalf("first call failed: %d", rec.Code)
	}
	if rec := postNowcast(h, body); rec.Code != http.StatusOK {
		t.Fatalf("second call failed: %d", rec.Code)
	}
	if store.pollCalls != 1 {
		t.Fatalf("expected cached second call, store hit %d times", store.pollCalls)
	}

	// refresh_cache forces a recompute
	if rec := postNowcast(h, `{"use_cache": true, "refresh_cache": true}`); rec.Code != http.StatusOK {
		t.Fatalf("refresh call failed: %d", rec.Code)
	}
	if store.pollCalls != 2 {
		t.Fatalf("expected refresh to bypass cache, store hit %d times", store.pollCalls)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t, seededStore())
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
