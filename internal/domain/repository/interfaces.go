package repository

import (
	"context"
	"time"

	"PollPulse/internal/domain/models"
)

// PollStore supplies cleaned poll records and region metadata.
type PollStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	GetPolls(ctx context.Context, periodID string, candidates []string, from, to time.Time) ([]models.PollRecord, error)
	GetRegions(ctx context.Context, periodID string) (map[string]models.RegionMetadata, error)
	StorePolls(ctx context.Context, periodID string, polls []models.PollRecord) error
	Health(ctx context.Context) error // ping
	Close() error
}

// ForecastPublisher pushes completed forecasts to downstream consumers.
type ForecastPublisher interface {
	Publish(ctx context.Context, periodID string, f *models.Forecast) error
	Close() error
}

// Metrics records operational metrics for the pipeline.
type Metrics interface {
	RecordPipelineRun(periodID, result string)
	RecordError(kind string)
	RecordWinProbability(periodID, candidate string, p float64)
	RecordStageLatency(stage string, seconds float64)
	RecordPollsIngested(periodID string, n int)
}
