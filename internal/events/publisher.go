package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"twinhub/internal/platform/config"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher emits registration events. Publishing is best effort; a broker
// outage must never fail the registration that triggered the event.
type Publisher interface {
	Publish(ctx context.Context, ev RegistrationEvent)
	Close()
}

// KafkaPublisher produces registration events with franz-go.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

// NewKafka connects to the brokers and makes sure the topic exists.
func NewKafka(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, 3, 1, nil, cfg.Topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", cfg.Topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", cfg.Topic, resp.Err)
	}

	return &KafkaPublisher{client: client, topic: cfg.Topic, log: log}, nil
}

// Publish serializes and produces the event asynchronously. Failures are
// logged and dropped.
func (p *KafkaPublisher) Publish(ctx context.Context, ev RegistrationEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("event marshal failed", "type", ev.Type, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.GlobalID),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("event publish failed", "type", ev.Type, "globalId", ev.GlobalID, "error", err)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

// NopPublisher drops all events. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RegistrationEvent) {}
func (NopPublisher) Close()                                     {}
