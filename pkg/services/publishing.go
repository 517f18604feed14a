package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// Publishing handles version publishing. Published versions are immutable and
// stay published after a newer one goes live, so waiting tasks resume on the
// version they started on.
type Publishing struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewPublishing creates a new publishing service. publisher may be nil.
func NewPublishing(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Publishing {
	return &Publishing{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "publishing_service"),
	}
}

// Publish validates and publishes a version, then points the journey at it and
// activates the journey. Publishing an already published version only moves
// the pointer back to it.
func (p *Publishing) Publish(ctx context.Context, journeyID string, number int) (*models.Journey, error) {
	journey, err := p.persistence.JourneyRepository().ByID(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	version, err := p.persistence.JourneyRepository().Version(ctx, journeyID, number)
	if err != nil {
		return nil, err
	}

	if !version.IsPublished() {
		if err := ValidateSchema(version.Schema); err != nil {
			return nil, NewValidationError("Publish", "invalid_schema", err.Error(), err)
		}

		now := time.Now().UTC()
		version.Status = models.VersionStatusPublished
		version.PublishedAt = &now

		if err := p.persistence.JourneyRepository().SaveVersion(ctx, version); err != nil {
			return nil, fmt.Errorf("failed to publish version: %w", err)
		}
	}

	journey.PublishedVersion = &version.Version
	journey.Status = models.JourneyStatusActive

	if err := p.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("failed to activate journey: %w", err)
	}

	p.logger.InfoContext(ctx, "Journey published", "journey_id", journeyID, "version", number)
	p.notify(ctx, journeyID, number)

	return journey, nil
}

func (p *Publishing) notify(ctx context.Context, journeyID string, number int) {
	if p.publisher == nil {
		return
	}

	event := events.JourneyPublished{
		BaseEvent: events.NewBaseEvent(events.JourneyPublishedEvent, journeyID),
		Version:   number,
	}

	if err := p.publisher.Publish(ctx, journeyID, event); err != nil {
		p.logger.WarnContext(ctx, "Failed to announce published journey", "journey_id", journeyID, "error", err)
	}
}
