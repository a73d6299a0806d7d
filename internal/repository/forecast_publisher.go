package repository

import (
	"context"

	"PollPulse/internal/domain/models"
	domrepo "PollPulse/internal/domain/repository"
	pkgkafka "PollPulse/pkg/kafka"
)

// KafkaForecastPublisher implements ForecastPublisher over a Kafka topic.
// The election period id keys the message so all forecasts for one race
// land on the same partition in order.
type KafkaForecastPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaForecastPublisher creates a Kafka publisher.
func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) domrepo.ForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

func (p *KafkaForecastPublisher) Publish(ctx context.Context, periodID string, f *models.Forecast) error {
	return p.producer.Publish(ctx, p.topic, []byte(periodID), f)
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
