//go:build integration

package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"twinhub/internal/platform/config"
	"twinhub/pkg/testutil/containers"
)

func TestKafkaPublisher_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rp := containers.GetManager().GetRedpanda(t)
	cfg := config.KafkaConfig{
		Brokers: []string{rp.Broker},
		Topic:   "twinhub.registrations.test",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	publisher, err := NewKafka(ctx, cfg, log)
	require.NoError(t, err)
	defer publisher.Close()

	want := RegistrationEvent{
		Type:       TypeTwinRegistered,
		GlobalID:   "urn:uuid:0195a3c6-0000-7000-8000-000000000001",
		StackName:  "default",
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	publisher.Publish(ctx, want)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, fetches.Err())
		records := fetches.Records()
		if len(records) == 0 {
			continue
		}

		record := records[0]
		require.Equal(t, want.GlobalID, string(record.Key))

		var got RegistrationEvent
		require.NoError(t, json.Unmarshal(record.Value, &got))
		require.Equal(t, want.Type, got.Type)
		require.Equal(t, want.StackName, got.StackName)
		require.True(t, want.OccurredAt.Equal(got.OccurredAt))
		return
	}
	t.Fatal("no event consumed before deadline")
}

func TestKafkaPublisher_StampsOccurredAt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rp := containers.GetManager().GetRedpanda(t)
	cfg := config.KafkaConfig{
		Brokers: []string{rp.Broker},
		Topic:   "twinhub.registrations.stamp",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	publisher, err := NewKafka(ctx, cfg, log)
	require.NoError(t, err)
	defer publisher.Close()

	publisher.Publish(ctx, RegistrationEvent{Type: TypeTwinShared, GlobalID: "g1"})

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got RegistrationEvent
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.False(t, got.OccurredAt.IsZero())
}
