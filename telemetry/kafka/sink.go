// Package kafka publishes download events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"plugin-pipeline/telemetry"

	"github.com/twmb/franz-go/pkg/kgo"
)

type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to the given brokers.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Sink{client: client, topic: topic}, nil
}

// Record publishes the event keyed by plugin id. Callers run this on the
// dispatch pool, so a synchronous produce keeps the error path observable.
func (s *Sink) Record(ctx context.Context, event telemetry.DownloadEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal download event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.PluginID),
		Value: value,
	}

	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce download event: %w", err)
	}

	return nil
}

// Close flushes and releases the producer.
func (s *Sink) Close() {
	s.client.Close()
}
