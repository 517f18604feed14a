package file

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// JourneyRepository handles journey and version file operations. Journeys live in
// journeys/<id>.json and versions in versions/<journey id>/<version>.json.
type JourneyRepository struct {
	store *store
}

// ListActive returns every journey with status active, oldest first.
func (jr *JourneyRepository) ListActive(ctx context.Context) ([]*models.Journey, error) {
	jr.store.mu.RLock()
	defer jr.store.mu.RUnlock()

	all, err := jr.all(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.Journey, 0, len(all))

	for _, journey := range all {
		if journey.Status == models.JourneyStatusActive {
			active = append(active, journey)
		}
	}

	return active, nil
}

func (jr *JourneyRepository) all(_ context.Context) ([]*models.Journey, error) {
	files, err := jr.store.list(jr.store.path("journeys"))
	if err != nil {
		return nil, err
	}

	journeys := make([]*models.Journey, 0, len(files))

	for _, file := range files {
		var journey models.Journey
		if _, err := jr.store.read(file, &journey); err != nil {
			return nil, err
		}

		journeys = append(journeys, &journey)
	}

	sort.SliceStable(journeys, func(i, j int) bool {
		return journeys[i].CreatedAt.Before(journeys[j].CreatedAt)
	})

	return journeys, nil
}

// PublishedVersion returns the version when it exists and is published, nil otherwise.
func (jr *JourneyRepository) PublishedVersion(ctx context.Context, journeyID string, version int) (*models.JourneyVersion, error) {
	v, err := jr.Version(ctx, journeyID, version)
	if err != nil {
		if persistence.IsVersionNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	if !v.IsPublished() {
		return nil, nil
	}

	return v, nil
}

// Save creates or replaces a journey.
func (jr *JourneyRepository) Save(_ context.Context, journey *models.Journey) error {
	if err := validateID("journey", journey.ID); err != nil {
		return err
	}

	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	now := time.Now().UTC()
	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = now
	}

	journey.UpdatedAt = now

	return jr.store.write(jr.store.path("journeys", journey.ID+".json"), journey)
}

// ByID returns the journey or ErrJourneyNotFound.
func (jr *JourneyRepository) ByID(_ context.Context, id string) (*models.Journey, error) {
	if err := validateID("journey", id); err != nil {
		return nil, err
	}

	jr.store.mu.RLock()
	defer jr.store.mu.RUnlock()

	var journey models.Journey

	found, err := jr.store.read(jr.store.path("journeys", id+".json"), &journey)
	if err != nil {
		return nil, persistence.NewJourneyError("ByID", id, err)
	}

	if !found {
		return nil, persistence.NewJourneyError("ByID", id, persistence.ErrJourneyNotFound)
	}

	return &journey, nil
}

// SaveVersion writes a version. Published versions cannot be replaced.
func (jr *JourneyRepository) SaveVersion(_ context.Context, version *models.JourneyVersion) error {
	if err := validateID("journey", version.JourneyID); err != nil {
		return err
	}

	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	path := jr.versionPath(version.JourneyID, version.Version)

	var existing models.JourneyVersion

	found, err := jr.store.read(path, &existing)
	if err != nil {
		return persistence.NewVersionError("SaveVersion", version.JourneyID, version.Version, err)
	}

	if found && existing.IsPublished() {
		return persistence.NewVersionError("SaveVersion", version.JourneyID, version.Version, persistence.ErrVersionAlreadyExists)
	}

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	return jr.store.write(path, version)
}

// Version returns one version or ErrVersionNotFound.
func (jr *JourneyRepository) Version(_ context.Context, journeyID string, version int) (*models.JourneyVersion, error) {
	if err := validateID("journey", journeyID); err != nil {
		return nil, err
	}

	jr.store.mu.RLock()
	defer jr.store.mu.RUnlock()

	var v models.JourneyVersion

	found, err := jr.store.read(jr.versionPath(journeyID, version), &v)
	if err != nil {
		return nil, persistence.NewVersionError("Version", journeyID, version, err)
	}

	if !found {
		return nil, persistence.NewVersionError("Version", journeyID, version, persistence.ErrVersionNotFound)
	}

	return &v, nil
}

// Versions returns every version of a journey ordered by version number.
func (jr *JourneyRepository) Versions(_ context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	if err := validateID("journey", journeyID); err != nil {
		return nil, err
	}

	jr.store.mu.RLock()
	defer jr.store.mu.RUnlock()

	files, err := jr.store.list(jr.store.path("versions", journeyID))
	if err != nil {
		return nil, err
	}

	versions := make([]*models.JourneyVersion, 0, len(files))

	for _, file := range files {
		var v models.JourneyVersion
		if _, err := jr.store.read(file, &v); err != nil {
			return nil, fmt.Errorf("failed to load version of journey %s: %w", journeyID, err)
		}

		versions = append(versions, &v)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})

	return versions, nil
}

func (jr *JourneyRepository) versionPath(journeyID string, version int) string {
	return jr.store.path("versions", journeyID, strconv.Itoa(version)+".json")
}
