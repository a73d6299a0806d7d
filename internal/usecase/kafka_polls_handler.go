package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"PollPulse/internal/domain/models"
	"PollPulse/internal/domain/repository"
	"PollPulse/pkg/util"
)

// pollMessage is the wire shape of one poll ingest batch.
type pollMessage struct {
	ElectionPeriodID string `json:"election_period_id"`
	Polls            []struct {
		Candidate         string  `json:"candidate"`
		Region            string  `json:"region"`
		ObservationDate   string  `json:"observation_date"`
		PctEstimate       float64 `json:"pct_estimate"`
		PollsterQuality   float64 `json:"pollster_quality"`
		PollsterInfluence float64 `json:"pollster_influence"`
	} `json:"polls"`
}

// KafkaPollsHandler consumes poll batches from Kafka and writes them to the
// poll store.
type KafkaPollsHandler struct {
	topic   string
	store   repository.PollStore
	metrics repository.Metrics
}

// NewKafkaPollsHandler creates a handler bound to one topic.
func NewKafkaPollsHandler(topic string, store repository.PollStore, metrics repository.Metrics) *KafkaPollsHandler {
	return &KafkaPollsHandler{topic: topic, store: store, metrics: metrics}
}

// Topic returns the subscribed topic.
func (h *KafkaPollsHandler) Topic() string { return h.topic }

// Handle decodes one batch and stores it. Decode errors are permanent and
// reported as such so the consumer routes the message to the DLQ instead of
// retrying forever.
func (h *KafkaPollsHandler) Handle(ctx context.Context, data []byte) error {
	var msg pollMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.metrics.RecordError("poll_decode")
		return fmt.Errorf("decode poll batch: %w", err)
	}
	if msg.ElectionPeriodID == "" {
		h.metrics.RecordError("poll_decode")
		return fmt.Errorf("poll batch missing election_period_id")
	}

	polls := make([]models.PollRecord, 0, len(msg.Polls))
	for i, p := range msg.Polls {
		date, ok := util.ParseDate(p.ObservationDate)
		if !ok {
			h.metrics.RecordError("poll_decode")
			return fmt.Errorf("poll %d: bad observation_date %q", i, p.ObservationDate)
		}
		polls = append(polls, models.PollRecord{
			Candidate:         p.Candidate,
			Region:            p.Region,
			ObservationDate:   date,
			PctEstimate:       p.PctEstimate,
			PollsterQuality:   p.PollsterQuality,
			PollsterInfluence: p.PollsterInfluence,
		})
	}
	if len(polls) == 0 {
		return nil
	}

	if err := h.store.StorePolls(ctx, msg.ElectionPeriodID, polls); err != nil {
		h.metrics.RecordError("poll_store")
		return fmt.Errorf("store polls: %w", err)
	}
	h.metrics.RecordPollsIngested(msg.ElectionPeriodID, len(polls))
	return nil
}
