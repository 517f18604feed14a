// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/persistence/file"
	"github.com/dukex/journeys/pkg/persistence/postgresql"
	redistasks "github.com/dukex/journeys/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence opens the store named by the scheme of databaseURL. URLs without
// a known scheme are treated as file paths.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}

// WithTaskStore moves continuations to the redis store at taskStoreURL. An empty
// URL keeps them in base.
func WithTaskStore(ctx context.Context, logger *slog.Logger, base persistence.Persistence, taskStoreURL string) persistence.Persistence {
	if taskStoreURL == "" {
		return base
	}

	tasks, err := redistasks.NewTaskRepository(ctx, logger, taskStoreURL)
	if err != nil {
		panic(fmt.Errorf("failed to initialize redis task store: %w", err))
	}

	return &splitPersistence{Persistence: base, tasks: tasks}
}

// splitPersistence serves tasks from redis and everything else from the base store.
type splitPersistence struct {
	persistence.Persistence

	tasks *redistasks.TaskRepository
}

func (s *splitPersistence) TaskRepository() persistence.TaskRepository {
	return s.tasks
}

func (s *splitPersistence) Close(ctx context.Context) error {
	if err := s.tasks.Close(); err != nil {
		return fmt.Errorf("failed to close task store: %w", err)
	}

	return s.Persistence.Close(ctx)
}
