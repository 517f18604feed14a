package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/cmd"
	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishWelcomeJourney(t *testing.T, p persistence.Persistence) {
	t.Helper()

	version := 1
	require.NoError(t, p.JourneyRepository().Save(t.Context(), &models.Journey{
		ID:               "welcome",
		Name:             "Welcome",
		Status:           models.JourneyStatusActive,
		PublishedVersion: &version,
	}))
	require.NoError(t, p.JourneyRepository().SaveVersion(t.Context(), &models.JourneyVersion{
		JourneyID: "welcome",
		Version:   1,
		Status:    models.VersionStatusPublished,
		Schema: models.Schema{
			Nodes: []*models.Node{
				{ID: "t1", Type: models.NodeTypeTrigger, Data: models.TriggerData{TriggerType: models.TriggerTypeEvent, EventType: "signup"}},
				{ID: "a1", Type: models.NodeTypeAction, Data: models.ActionData{Type: models.ActionTypeEngagement, Title: "Welcome", Message: "Hello"}},
			},
			Edges: []*models.Edge{{Source: "t1", Target: "a1"}},
		},
	}))
}

func TestWorker_StartsJourneysFromBusEvents(t *testing.T) {
	logger := slog.Default()
	p := cmd.NewPersistence(t.Context(), logger, t.TempDir())
	bus := cmd.NewEventBus("gochannel", "worker", "", logger)

	t.Cleanup(func() { _ = bus.Close() })

	publishWelcomeJourney(t, p)

	eng := cmd.NewEngine(p, bus, nil, logger)
	worker := NewWorker("test", bus, services.NewIngestion(p.EventRepository(), eng, logger), logger)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- worker.Start(ctx) }()

	require.Eventually(t, func() bool {
		err := bus.Publish(ctx, "u1", events.UserEventReceived{
			BaseEvent: events.NewBaseEvent(events.UserEventReceivedEvent, ""),
			UserID:    "u1",
			Event:     models.Event{EventType: "signup"},
		})
		if err != nil {
			return false
		}

		deliveries, err := p.DeliveryRepository().ByUser(ctx, "u1")

		return err == nil && len(deliveries) > 0
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

type failingMatcher struct{ err error }

func (m failingMatcher) OnEvent(context.Context, string, models.Event, string) (*engine.EventResult, error) {
	return nil, m.err
}

func TestWorker_HandleUserEvent(t *testing.T) {
	logger := slog.Default()
	p := cmd.NewPersistence(t.Context(), logger, t.TempDir())

	worker := NewWorker("test", nil, services.NewIngestion(p.EventRepository(), failingMatcher{err: assert.AnError}, logger), logger)

	err := worker.handleUserEvent(t.Context(), &events.UserEventReceived{UserID: "u1", Event: models.Event{EventType: "signup"}})
	require.ErrorIs(t, err, assert.AnError, "matcher failures are redelivered")

	err = worker.handleUserEvent(t.Context(), &events.UserEventReceived{Event: models.Event{EventType: "signup"}})
	assert.NoError(t, err, "invalid events are dropped")

	assert.NoError(t, worker.handleUserEvent(t.Context(), "not an event"))
}

func TestWorker_RedeliveryStoresEventOnce(t *testing.T) {
	logger := slog.Default()
	p := cmd.NewPersistence(t.Context(), logger, t.TempDir())

	worker := NewWorker("test", nil, services.NewIngestion(p.EventRepository(), failingMatcher{err: assert.AnError}, logger), logger)

	envelope := &events.UserEventReceived{
		BaseEvent: events.NewBaseEvent(events.UserEventReceivedEvent, ""),
		UserID:    "u1",
		Event:     models.Event{EventType: "deposit"},
	}

	for range 3 {
		require.ErrorIs(t, worker.handleUserEvent(t.Context(), envelope), assert.AnError)
	}

	stored, err := p.EventRepository().RecentEvents(t.Context(), "u1", "deposit", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, envelope.ID, stored[0].ID)
	assert.True(t, envelope.Timestamp.Equal(stored[0].OccurredAt))
	assert.Empty(t, envelope.Event.ID, "the envelope is left untouched")
}
