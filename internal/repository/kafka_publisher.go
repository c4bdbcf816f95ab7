package repository

import (
	"context"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	pkgkafka "SessionLens/pkg/kafka"
)

// KafkaResultPublisher emits every finished run, keyed by dataset so runs of
// one dataset stay ordered on a partition.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) Publish(ctx context.Context, res *models.RunResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(res.DatasetID), res, map[string]string{
		"run_id":      res.RunID,
		"fingerprint": res.Fingerprint,
	})
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ drepo.ResultPublisher = (*KafkaResultPublisher)(nil)
