// Package file provides file-based persistence implementation for journeys, continuations and deliveries.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/journeys/pkg/persistence"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Every record is one JSON document under root.
type Persistence struct {
	root string

	journeyRepo  *JourneyRepository
	profileRepo  *ProfileRepository
	eventRepo    *EventRepository
	taskRepo     *TaskRepository
	deliveryRepo *DeliveryRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	s := &store{root: cleanRoot, mu: &sync.RWMutex{}}

	return &Persistence{
		root:         cleanRoot,
		journeyRepo:  &JourneyRepository{store: s},
		profileRepo:  &ProfileRepository{store: s},
		eventRepo:    &EventRepository{store: s},
		taskRepo:     &TaskRepository{store: s},
		deliveryRepo: &DeliveryRepository{store: s},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) JourneyRepository() persistence.JourneyRepository {
	return fp.journeyRepo
}

func (fp *Persistence) ProfileRepository() persistence.ProfileRepository {
	return fp.profileRepo
}

func (fp *Persistence) EventRepository() persistence.EventRepository {
	return fp.eventRepo
}

func (fp *Persistence) TaskRepository() persistence.TaskRepository {
	return fp.taskRepo
}

func (fp *Persistence) DeliveryRepository() persistence.DeliveryRepository {
	return fp.deliveryRepo
}

// store holds the root directory and the lock shared by every repository of one
// Persistence. Writers take the write lock for their whole read-modify-write cycle.
type store struct {
	root string
	mu   *sync.RWMutex
}

func (s *store) path(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

// read decodes the document at path into v. It reports false when the file does not exist.
func (s *store) read(path string, v any) (bool, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}

func (s *store) write(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return os.Rename(tmp, path)
}

// list returns the JSON documents of dir in lexical order. A missing directory is empty.
func (s *store) list(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		files = append(files, filepath.Join(dir, entry.Name()))
	}

	return files, nil
}

// validateID rejects identifiers that would escape the store directory.
func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%s ID contains invalid characters", kind)
	}

	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
