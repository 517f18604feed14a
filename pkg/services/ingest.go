package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// EventMatcher starts journeys for an inbound event.
type EventMatcher interface {
	OnEvent(ctx context.Context, userID string, event models.Event, workspaceID string) (*engine.EventResult, error)
}

// IngestRequest is an inbound behavioral event.
type IngestRequest struct {
	UserID      string       `json:"user_id"      validate:"required"`
	WorkspaceID string       `json:"workspace_id"`
	Event       models.Event `json:"event"`
}

// Ingestion records inbound events in the behavior history and runs the trigger matcher.
type Ingestion struct {
	events  persistence.EventRepository
	matcher EventMatcher
	logger  *slog.Logger
}

// NewIngestion creates a new ingestion service.
func NewIngestion(events persistence.EventRepository, matcher EventMatcher, logger *slog.Logger) *Ingestion {
	return &Ingestion{
		events:  events,
		matcher: matcher,
		logger:  logger.With("module", "ingestion_service"),
	}
}

// Ingest stores the event then matches it against active journeys. A failed
// store write is logged and matching still runs.
func (i *Ingestion) Ingest(ctx context.Context, req IngestRequest) (*engine.EventResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, NewValidationError("Ingest", "invalid_event", err.Error(), ErrInvalidRequest)
	}

	event := req.Event
	event.UserID = req.UserID

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if err := i.events.SaveEvent(ctx, &event); err != nil {
		i.logger.ErrorContext(ctx, "Failed to record event", "user_id", req.UserID, "event_type", event.EventType, "error", err)
	}

	result, err := i.matcher.OnEvent(ctx, req.UserID, event, req.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to match event: %w", err)
	}

	return result, nil
}
