package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// TaskRepository handles continuation file operations in tasks/<id>.json.
type TaskRepository struct {
	store *store
}

// Create writes a new task. An empty ID is generated.
func (tr *TaskRepository) Create(_ context.Context, task *models.JourneyTask) error {
	if task.ID == "" {
		task.ID = newID()
	}

	if err := validateID("task", task.ID); err != nil {
		return err
	}

	tr.store.mu.Lock()
	defer tr.store.mu.Unlock()

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}

	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	return tr.store.write(tr.path(task.ID), task)
}

// Update applies a patch to an existing task.
func (tr *TaskRepository) Update(_ context.Context, id string, patch models.TaskPatch) error {
	if err := validateID("task", id); err != nil {
		return err
	}

	tr.store.mu.Lock()
	defer tr.store.mu.Unlock()

	task, err := tr.load("Update", id)
	if err != nil {
		return err
	}

	patch.Apply(task, time.Now().UTC())

	return tr.store.write(tr.path(id), task)
}

// Claim moves a claimable task to running under the write lock.
func (tr *TaskRepository) Claim(_ context.Context, id string, now, staleBefore time.Time) (bool, error) {
	if err := validateID("task", id); err != nil {
		return false, err
	}

	tr.store.mu.Lock()
	defer tr.store.mu.Unlock()

	task, err := tr.load("Claim", id)
	if err != nil {
		return false, err
	}

	if !task.Claimable(staleBefore) {
		return false, nil
	}

	running := models.TaskStatusRunning
	models.TaskPatch{Status: &running}.Apply(task, now.UTC())

	if err := tr.store.write(tr.path(id), task); err != nil {
		return false, persistence.NewTaskError("Claim", id, err)
	}

	return true, nil
}

// DueBefore returns up to limit due tasks, pending or under an expired claim, ordered by run_at.
func (tr *TaskRepository) DueBefore(_ context.Context, now, staleBefore time.Time, limit int) ([]*models.JourneyTask, error) {
	tr.store.mu.RLock()
	defer tr.store.mu.RUnlock()

	files, err := tr.store.list(tr.store.path("tasks"))
	if err != nil {
		return nil, err
	}

	due := make([]*models.JourneyTask, 0)

	for _, file := range files {
		var task models.JourneyTask
		if _, err := tr.store.read(file, &task); err != nil {
			return nil, err
		}

		if task.IsDue(now, staleBefore) {
			due = append(due, &task)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].RunAt.Before(due[j].RunAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// ByID returns the task or ErrTaskNotFound.
func (tr *TaskRepository) ByID(_ context.Context, id string) (*models.JourneyTask, error) {
	if err := validateID("task", id); err != nil {
		return nil, err
	}

	tr.store.mu.RLock()
	defer tr.store.mu.RUnlock()

	return tr.load("ByID", id)
}

func (tr *TaskRepository) load(op, id string) (*models.JourneyTask, error) {
	var task models.JourneyTask

	found, err := tr.store.read(tr.path(id), &task)
	if err != nil {
		return nil, persistence.NewTaskError(op, id, err)
	}

	if !found {
		return nil, persistence.NewTaskError(op, id, persistence.ErrTaskNotFound)
	}

	return &task, nil
}

func (tr *TaskRepository) path(id string) string {
	return tr.store.path("tasks", id+".json")
}
