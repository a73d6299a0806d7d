package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pipelineRuns   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	winProbability *prometheus.GaugeVec
	stageLatency   *prometheus.HistogramVec
	pollsIngested  *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		pipelineRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollpulse_pipeline_runs_total",
				Help: "Total nowcast pipeline runs by result",
			},
			[]string{"period", "result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		winProbability: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pollpulse_win_probability",
				Help: "Last forecast win probability per candidate",
			},
			[]string{"period", "candidate"},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pollpulse_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		pollsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollpulse_polls_ingested_total",
				Help: "Poll records written to the store",
			},
			[]string{"period"},
		),
	}
}

// RecordPipelineRun records a completed pipeline run.
func (r *Recorder) RecordPipelineRun(periodID, result string) {
	r.pipelineRuns.WithLabelValues(periodID, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordWinProbability records the latest win probability for a candidate.
func (r *Recorder) RecordWinProbability(periodID, candidate string, p float64) {
	r.winProbability.WithLabelValues(periodID, candidate).Set(p)
}

// RecordStageLatency records pipeline stage latency in seconds.
func (r *Recorder) RecordStageLatency(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordPollsIngested records poll records written to the store.
func (r *Recorder) RecordPollsIngested(periodID string, n int) {
	r.pollsIngested.WithLabelValues(periodID).Add(float64(n))
}
