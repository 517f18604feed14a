package kafka_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/journeys/pkg/channels/kafka"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(t *testing.T) []string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Kafka container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("journeys-test"),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	createTopics(t, brokers, events.Topic, events.OutboxTopic)

	return brokers
}

func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0

	admin, err := sarama.NewClusterAdmin(brokers, config)
	require.NoError(t, err)

	defer func() { _ = admin.Close() }()

	for _, topic := range topics {
		require.NoError(t, admin.CreateTopic(topic, &sarama.TopicDetail{NumPartitions: 1, ReplicationFactor: 1}, false))
	}
}

func TestCreateChannel_DeliversThroughKafka(t *testing.T) {
	brokers := setupKafka(t)

	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(slog.Default()), "integration", brokers)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())

	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *events.UserEventReceived, 1)

	require.NoError(t, bus.Handle(events.UserEventReceivedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.UserEventReceived)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "u1", events.UserEventReceived{
		BaseEvent:   events.NewBaseEvent(events.UserEventReceivedEvent, ""),
		UserID:      "u1",
		WorkspaceID: "ws-1",
		Event:       models.Event{ID: "evt-1", EventType: "signup"},
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "u1", event.UserID)
		assert.Equal(t, "ws-1", event.WorkspaceID)
		assert.Equal(t, "evt-1", event.Event.ID)
		assert.Equal(t, "signup", event.Event.EventType)
	case <-time.After(60 * time.Second):
		t.Fatal("event was not delivered through Kafka")
	}
}
