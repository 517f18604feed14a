// Package persistence provides the storage abstraction layer for journeys, continuations and deliveries.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/journeys/pkg/models"
)

// JourneyRepository stores journeys and their versions. The engine only reads from it.
type JourneyRepository interface {
	// ListActive returns every journey with status active.
	ListActive(ctx context.Context) ([]*models.Journey, error)
	// PublishedVersion returns the published version, or nil when it does not exist.
	PublishedVersion(ctx context.Context, journeyID string, version int) (*models.JourneyVersion, error)

	Save(ctx context.Context, journey *models.Journey) error
	ByID(ctx context.Context, id string) (*models.Journey, error)
	SaveVersion(ctx context.Context, version *models.JourneyVersion) error
	Version(ctx context.Context, journeyID string, version int) (*models.JourneyVersion, error)
	Versions(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error)
}

// ProfileRepository exposes psychographic profiles produced outside the engine.
type ProfileRepository interface {
	// LatestProfile returns the most recently analyzed profile, or nil.
	LatestProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error
}

// EventRepository exposes the behavioral event history of users.
type EventRepository interface {
	// RecentEvents returns events of eventType at or after since, newest first.
	RecentEvents(ctx context.Context, userID, eventType string, since time.Time, limit int) ([]*models.Event, error)
	SaveEvent(ctx context.Context, event *models.Event) error
}

// TaskRepository stores journey continuations.
type TaskRepository interface {
	Create(ctx context.Context, task *models.JourneyTask) error
	Update(ctx context.Context, id string, patch models.TaskPatch) error
	// Claim moves a pending task, or a running task whose claim was written at or
	// before staleBefore, to running with updated_at = now. It reports false when
	// another runner holds the task or it has settled.
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
	// DueBefore returns up to limit tasks with run_at <= now that are pending or
	// running under a claim written at or before staleBefore, ordered by run_at.
	DueBefore(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.JourneyTask, error)
	ByID(ctx context.Context, id string) (*models.JourneyTask, error)
}

// DeliveryRepository stores engagement delivery records.
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *models.EngagementDelivery) (*models.EngagementDelivery, error)
	Update(ctx context.Context, id string, patch models.DeliveryPatch) error
	ByID(ctx context.Context, id string) (*models.EngagementDelivery, error)
	ByUser(ctx context.Context, userID string) ([]*models.EngagementDelivery, error)
}

// Persistence groups every repository behind one backend.
type Persistence interface {
	JourneyRepository() JourneyRepository
	ProfileRepository() ProfileRepository
	EventRepository() EventRepository
	TaskRepository() TaskRepository
	DeliveryRepository() DeliveryRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
