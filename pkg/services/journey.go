package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/google/uuid"
)

// Journey handles journey and draft version authoring.
type Journey struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewJourney creates a new journey service.
func NewJourney(persistence persistence.Persistence, logger *slog.Logger) *Journey {
	return &Journey{
		persistence: persistence,
		logger:      logger.With("module", "journey_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (j *Journey) HealthCheck(ctx context.Context) (string, bool) {
	if j.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := j.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateJourneyRequest contains the fields of a new journey.
type CreateJourneyRequest struct {
	Name        string `json:"name"         validate:"required,min=3"`
	WorkspaceID string `json:"workspace_id"`
}

// JourneyDetails is a journey with its version history.
type JourneyDetails struct {
	*models.Journey

	Versions []*models.JourneyVersion `json:"versions"`
}

// Create stores a new draft journey.
func (j *Journey) Create(ctx context.Context, req CreateJourneyRequest) (*models.Journey, error) {
	if err := validate.Struct(req); err != nil {
		return nil, NewValidationError("Create", "invalid_journey", err.Error(), ErrInvalidRequest)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate journey id: %w", err)
	}

	journey := &models.Journey{
		ID:          id.String(),
		Name:        req.Name,
		WorkspaceID: req.WorkspaceID,
		Status:      models.JourneyStatusDraft,
	}

	if err := j.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	j.logger.InfoContext(ctx, "Journey created", "journey_id", journey.ID)

	return journey, nil
}

// ByID returns a journey and its versions.
func (j *Journey) ByID(ctx context.Context, id string) (*JourneyDetails, error) {
	journey, err := j.persistence.JourneyRepository().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	versions, err := j.persistence.JourneyRepository().Versions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	return &JourneyDetails{Journey: journey, Versions: versions}, nil
}

// CreateVersion stores schema as a new draft with the next version number.
func (j *Journey) CreateVersion(ctx context.Context, journeyID string, schema models.Schema) (*models.JourneyVersion, error) {
	if _, err := j.persistence.JourneyRepository().ByID(ctx, journeyID); err != nil {
		return nil, err
	}

	versions, err := j.persistence.JourneyRepository().Versions(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	next := 1
	for _, v := range versions {
		next = max(next, v.Version+1)
	}

	version := &models.JourneyVersion{
		JourneyID: journeyID,
		Version:   next,
		Status:    models.VersionStatusDraft,
		Schema:    schema,
	}

	if err := j.persistence.JourneyRepository().SaveVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	j.logger.InfoContext(ctx, "Draft version created", "journey_id", journeyID, "version", next)

	return version, nil
}

// UpdateVersion replaces the schema of a draft version.
func (j *Journey) UpdateVersion(ctx context.Context, journeyID string, number int, schema models.Schema) (*models.JourneyVersion, error) {
	version, err := j.persistence.JourneyRepository().Version(ctx, journeyID, number)
	if err != nil {
		return nil, err
	}

	if version.IsPublished() {
		return nil, &ServiceError{Op: "UpdateVersion", Code: "version_published", Err: ErrCannotModifyPublished}
	}

	version.Schema = schema

	if err := j.persistence.JourneyRepository().SaveVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	return version, nil
}

// Pause stops trigger matching for a journey. Pending continuations still resume.
func (j *Journey) Pause(ctx context.Context, id string) (*models.Journey, error) {
	return j.setStatus(ctx, id, models.JourneyStatusPaused)
}

// Activate resumes trigger matching. The journey must have a published version.
func (j *Journey) Activate(ctx context.Context, id string) (*models.Journey, error) {
	return j.setStatus(ctx, id, models.JourneyStatusActive)
}

func (j *Journey) setStatus(ctx context.Context, id string, status models.JourneyStatus) (*models.Journey, error) {
	journey, err := j.persistence.JourneyRepository().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if status == models.JourneyStatusActive && journey.PublishedVersion == nil {
		return nil, &ServiceError{Op: "Activate", Code: "not_published", Err: ErrNoPublishedVersion}
	}

	journey.Status = status

	if err := j.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	j.logger.InfoContext(ctx, "Journey status changed", "journey_id", id, "status", status)

	return journey, nil
}
