package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/goccy/go-json"
)

// JourneyRepository handles journey and version database operations.
type JourneyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const journeyColumns = `
			id
		  , name
		  , workspace_id
		  , status
		  , published_version
		  , created_at
		  , updated_at`

const versionColumns = `
			journey_id
		  , version
		  , status
		  , schema
		  , created_at
		  , published_at`

// ListActive returns every active journey, oldest first.
func (r *JourneyRepository) ListActive(ctx context.Context) ([]*models.Journey, error) {
	query := `SELECT` + journeyColumns + `
		FROM journeys
		WHERE status = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, models.JourneyStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active journeys: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	journeys := make([]*models.Journey, 0)

	for rows.Next() {
		journey, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}

		journeys = append(journeys, journey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journeys: %w", err)
	}

	return journeys, nil
}

// PublishedVersion returns the version when it exists and is published, nil otherwise.
func (r *JourneyRepository) PublishedVersion(ctx context.Context, journeyID string, version int) (*models.JourneyVersion, error) {
	query := `SELECT` + versionColumns + `
		FROM journey_versions
		WHERE journey_id = $1 AND version = $2 AND status = $3
	`

	v, err := scanVersion(r.db.QueryRowContext(ctx, query, journeyID, version, models.VersionStatusPublished))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewVersionError("PublishedVersion", journeyID, version, err)
	}

	return v, nil
}

// Save inserts or updates a journey.
func (r *JourneyRepository) Save(ctx context.Context, journey *models.Journey) error {
	now := time.Now().UTC()
	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = now
	}

	journey.UpdatedAt = now

	query := `
		INSERT INTO journeys (id, name, workspace_id, status, published_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , workspace_id = EXCLUDED.workspace_id
		  , status = EXCLUDED.status
		  , published_version = EXCLUDED.published_version
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		journey.ID,
		journey.Name,
		journey.WorkspaceID,
		journey.Status,
		nullableInt(journey.PublishedVersion),
		journey.CreatedAt,
		journey.UpdatedAt,
	)
	if err != nil {
		return persistence.NewJourneyError("Save", journey.ID, err)
	}

	return nil
}

// ByID returns the journey or ErrJourneyNotFound.
func (r *JourneyRepository) ByID(ctx context.Context, id string) (*models.Journey, error) {
	query := `SELECT` + journeyColumns + `
		FROM journeys
		WHERE id = $1
	`

	journey, err := scanJourney(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJourneyError("ByID", id, persistence.ErrJourneyNotFound)
		}

		return nil, persistence.NewJourneyError("ByID", id, err)
	}

	return journey, nil
}

// SaveVersion inserts a version or replaces a draft one. Published versions are immutable.
func (r *JourneyRepository) SaveVersion(ctx context.Context, version *models.JourneyVersion) error {
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	schema, err := jsonb(version.Schema)
	if err != nil {
		return persistence.NewVersionError("SaveVersion", version.JourneyID, version.Version, err)
	}

	query := `
		INSERT INTO journey_versions (journey_id, version, status, schema, created_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (journey_id, version) DO UPDATE SET
			status = EXCLUDED.status
		  , schema = EXCLUDED.schema
		  , published_at = EXCLUDED.published_at
		WHERE journey_versions.status <> 'published'
	`

	result, err := r.db.ExecContext(ctx, query,
		version.JourneyID,
		version.Version,
		version.Status,
		schema,
		version.CreatedAt,
		version.PublishedAt,
	)
	if err != nil {
		return persistence.NewVersionError("SaveVersion", version.JourneyID, version.Version, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewVersionError("SaveVersion", version.JourneyID, version.Version, err)
	}

	if affected == 0 {
		return persistence.NewVersionError("SaveVersion", version.JourneyID, version.Version, persistence.ErrVersionAlreadyExists)
	}

	return nil
}

// Version returns one version or ErrVersionNotFound.
func (r *JourneyRepository) Version(ctx context.Context, journeyID string, version int) (*models.JourneyVersion, error) {
	query := `SELECT` + versionColumns + `
		FROM journey_versions
		WHERE journey_id = $1 AND version = $2
	`

	v, err := scanVersion(r.db.QueryRowContext(ctx, query, journeyID, version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewVersionError("Version", journeyID, version, persistence.ErrVersionNotFound)
		}

		return nil, persistence.NewVersionError("Version", journeyID, version, err)
	}

	return v, nil
}

// Versions returns every version of a journey ordered by version number.
func (r *JourneyRepository) Versions(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	query := `SELECT` + versionColumns + `
		FROM journey_versions
		WHERE journey_id = $1
		ORDER BY version ASC
	`

	rows, err := r.db.QueryContext(ctx, query, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions of journey %s: %w", journeyID, err)
	}
	defer closeRows(ctx, r.logger, rows)

	versions := make([]*models.JourneyVersion, 0)

	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

func scanJourney(row scanner) (*models.Journey, error) {
	var (
		journey   models.Journey
		published sql.NullInt64
	)

	err := row.Scan(
		&journey.ID,
		&journey.Name,
		&journey.WorkspaceID,
		&journey.Status,
		&published,
		&journey.CreatedAt,
		&journey.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if published.Valid {
		v := int(published.Int64)
		journey.PublishedVersion = &v
	}

	return &journey, nil
}

func scanVersion(row scanner) (*models.JourneyVersion, error) {
	var (
		v           models.JourneyVersion
		schema      []byte
		publishedAt sql.NullTime
	)

	err := row.Scan(
		&v.JourneyID,
		&v.Version,
		&v.Status,
		&schema,
		&v.CreatedAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(schema, &v.Schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema of journey %s version %d: %w", v.JourneyID, v.Version, err)
	}

	if publishedAt.Valid {
		v.PublishedAt = &publishedAt.Time
	}

	return &v, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
