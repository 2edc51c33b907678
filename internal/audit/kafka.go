package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"lendgate/pkg/platform/sentinel"
)

// KafkaStore publishes audit events to a Kafka topic, keyed by application ID
// so per-application ordering is preserved within a partition. It satisfies
// the write half of Store; reads go against the downstream consumer's store,
// not the broker.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

func NewKafkaStore(brokers []string, topic string) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaStore{client: client, topic: topic}, nil
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.ApplicationID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *KafkaStore) ListByApplication(context.Context, string) ([]Event, error) {
	return nil, fmt.Errorf("kafka audit store is write-only: %w", sentinel.ErrUnavailable)
}

func (s *KafkaStore) Close() {
	s.client.Close()
}
