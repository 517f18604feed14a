package main

import (
	"context"
	"log/slog"

	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/services"
)

// Worker feeds inbound user events from the bus into the trigger matcher.
type Worker struct {
	id        string
	logger    *slog.Logger
	eventBus  eventbus.EventBus
	ingestion *services.Ingestion
}

func NewWorker(id string, eventBus eventbus.EventBus, ingestion *services.Ingestion, logger *slog.Logger) *Worker {
	return &Worker{
		id:        id,
		logger:    logger.With("module", "journeys-worker", "worker_id", id),
		eventBus:  eventBus,
		ingestion: ingestion,
	}
}

// Start subscribes to the bus and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	err := w.eventBus.Handle(events.UserEventReceivedEvent, w.handleUserEvent)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.JourneyPublishedEvent, w.handleJourneyPublished)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

// handleUserEvent runs the matcher for one event. Invalid events are dropped;
// matcher failures are returned so the bus redelivers.
func (w *Worker) handleUserEvent(ctx context.Context, event any) error {
	received, ok := event.(*events.UserEventReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for UserEventReceived")

		return nil
	}

	logger := w.logger.With(
		"user_id", received.UserID,
		"event_type", received.Event.EventType,
		"event_id", received.ID,
	)

	// A redelivered message carries the same envelope, so the stored event keeps one id.
	inbound := received.Event
	if inbound.ID == "" {
		inbound.ID = received.ID
	}

	if inbound.OccurredAt.IsZero() {
		inbound.OccurredAt = received.Timestamp
	}

	result, err := w.ingestion.Ingest(ctx, services.IngestRequest{
		UserID:      received.UserID,
		WorkspaceID: received.WorkspaceID,
		Event:       inbound,
	})
	if err != nil {
		if services.IsValidationError(err) {
			logger.WarnContext(ctx, "Dropping invalid event", "error", err)

			return nil
		}

		logger.ErrorContext(ctx, "Failed to match event", "error", err)

		return err
	}

	for _, failed := range result.Failed() {
		logger.WarnContext(ctx, "Journey traversal failed",
			"journey_id", failed.JourneyID,
			"version", failed.Version,
			"error", failed.Error,
		)
	}

	logger.DebugContext(ctx, "Event processed",
		"journeys_evaluated", result.JourneysEvaluated,
		"matches", len(result.Matches),
	)

	return nil
}

func (w *Worker) handleJourneyPublished(ctx context.Context, event any) error {
	published, ok := event.(*events.JourneyPublished)
	if !ok {
		return nil
	}

	w.logger.InfoContext(ctx, "Journey version went live", "journey_id", published.JourneyID, "version", published.Version)

	return nil
}
