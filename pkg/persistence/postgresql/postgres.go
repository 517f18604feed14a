// Package postgresql provides PostgreSQL persistence implementation for journeys, continuations and deliveries.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/persistence/sqlbase"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	journeyRepo  *JourneyRepository
	profileRepo  *ProfileRepository
	eventRepo    *EventRepository
	taskRepo     *TaskRepository
	deliveryRepo *DeliveryRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql")

	// Initialize components
	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:           database,
		logger:       logger,
		journeyRepo:  &JourneyRepository{db: database, logger: logger},
		profileRepo:  &ProfileRepository{db: database, logger: logger},
		eventRepo:    &EventRepository{db: database, logger: logger},
		taskRepo:     &TaskRepository{db: database, logger: logger},
		deliveryRepo: &DeliveryRepository{db: database, logger: logger},
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) JourneyRepository() persistence.JourneyRepository {
	return p.journeyRepo
}

func (p *Persistence) ProfileRepository() persistence.ProfileRepository {
	return p.profileRepo
}

func (p *Persistence) EventRepository() persistence.EventRepository {
	return p.eventRepo
}

func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.taskRepo
}

func (p *Persistence) DeliveryRepository() persistence.DeliveryRepository {
	return p.deliveryRepo
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// jsonb encodes v for a JSONB parameter. lib/pq sends []byte as bytea, so the
// document travels as text.
func jsonb(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSONB value: %w", err)
	}

	return string(data), nil
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
