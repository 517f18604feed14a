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

// TaskRepository handles journey continuation database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const taskColumns = `
			id
		  , journey_id
		  , version
		  , user_id
		  , resume_node_id
		  , context
		  , run_at
		  , status
		  , last_error
		  , created_at
		  , updated_at`

// Create inserts a new task. An empty ID is generated.
func (r *TaskRepository) Create(ctx context.Context, task *models.JourneyTask) error {
	if task.ID == "" {
		task.ID = newID()
	}

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

	journeyContext, err := jsonb(task.Context)
	if err != nil {
		return persistence.NewTaskError("Create", task.ID, err)
	}

	query := `
		INSERT INTO journey_tasks (id, journey_id, version, user_id, resume_node_id, context, run_at, status, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.JourneyID,
		task.Version,
		task.UserID,
		task.ResumeNodeID,
		journeyContext,
		task.RunAt,
		task.Status,
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return persistence.NewTaskError("Create", task.ID, err)
	}

	return nil
}

// Update applies a patch to an existing task. Nil patch fields keep the stored value.
func (r *TaskRepository) Update(ctx context.Context, id string, patch models.TaskPatch) error {
	var status, lastError sql.NullString

	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}

	if patch.LastError != nil {
		lastError = sql.NullString{String: *patch.LastError, Valid: true}
	}

	query := `
		UPDATE journey_tasks
		SET status = COALESCE($2::text, status)
		  , last_error = COALESCE($3::text, last_error)
		  , updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, lastError, time.Now().UTC())
	if err != nil {
		return persistence.NewTaskError("Update", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewTaskError("Update", id, err)
	}

	if affected == 0 {
		return persistence.NewTaskError("Update", id, persistence.ErrTaskNotFound)
	}

	return nil
}

// Claim moves a claimable task to running with a conditional update. Renewing
// updated_at makes a concurrent takeover of the same expired claim match no row.
func (r *TaskRepository) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE journey_tasks
		SET status = $2
		  , updated_at = $3
		WHERE id = $1
		  AND (status = $4 OR (status = $2 AND updated_at <= $5))
	`

	result, err := r.db.ExecContext(ctx, query, id, models.TaskStatusRunning, now.UTC(), models.TaskStatusPending, staleBefore.UTC())
	if err != nil {
		return false, persistence.NewTaskError("Claim", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewTaskError("Claim", id, err)
	}

	if affected == 1 {
		return true, nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM journey_tasks WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, persistence.NewTaskError("Claim", id, err)
	}

	if !exists {
		return false, persistence.NewTaskError("Claim", id, persistence.ErrTaskNotFound)
	}

	return false, nil
}

// DueBefore returns up to limit due tasks, pending or under an expired claim, ordered by run_at.
func (r *TaskRepository) DueBefore(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.JourneyTask, error) {
	query := `SELECT` + taskColumns + `
		FROM journey_tasks
		WHERE run_at <= $2
		  AND (status = $1 OR (status = $3 AND updated_at <= $4))
		ORDER BY run_at ASC
		LIMIT $5
	`

	rows, err := r.db.QueryContext(ctx, query, models.TaskStatusPending, now, models.TaskStatusRunning, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	tasks := make([]*models.JourneyTask, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// ByID returns the task or ErrTaskNotFound.
func (r *TaskRepository) ByID(ctx context.Context, id string) (*models.JourneyTask, error) {
	query := `SELECT` + taskColumns + `
		FROM journey_tasks
		WHERE id = $1
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTaskError("ByID", id, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewTaskError("ByID", id, err)
	}

	return task, nil
}

func scanTask(row scanner) (*models.JourneyTask, error) {
	var (
		task           models.JourneyTask
		journeyContext []byte
	)

	err := row.Scan(
		&task.ID,
		&task.JourneyID,
		&task.Version,
		&task.UserID,
		&task.ResumeNodeID,
		&journeyContext,
		&task.RunAt,
		&task.Status,
		&task.LastError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(journeyContext, &task.Context); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context of task %s: %w", task.ID, err)
	}

	return &task, nil
}
