package repository

import (
	"context"

	"QuotePulse/internal/domain/models"
	domrepo "QuotePulse/internal/domain/repository"
	pkgkafka "QuotePulse/pkg/kafka"
)

// KafkaNotifier publishes quote-update events to a Kafka topic, keyed by
// symbol so one symbol's updates land on one partition in order.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaNotifier creates a Kafka-backed notifier.
func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) domrepo.Notifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) NotifyQuote(ctx context.Context, update *models.QuoteUpdate) error {
	return n.producer.Publish(ctx, n.topic, []byte(update.Quote.Symbol), update)
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}
