package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/journeys/pkg/graph"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// ErrVersionNotFound is recorded on tasks whose journey version no longer exists.
var ErrVersionNotFound = errors.New("version not found")

// TaskOutcome is the result of one swept task.
type TaskOutcome struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
	// Skipped is set when another runner claimed the task first.
	Skipped bool `json:"skipped,omitempty"`
}

// SweepResult summarizes one ProcessDueTasks run.
type SweepResult struct {
	Processed int           `json:"processed"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Tasks     []TaskOutcome `json:"tasks"`
}

func (r *SweepResult) add(outcome TaskOutcome) {
	r.Tasks = append(r.Tasks, outcome)

	switch {
	case outcome.Skipped:
		r.Skipped++
	case outcome.Status == models.TaskStatusCompleted:
		r.Processed++
		r.Completed++
	default:
		r.Processed++
		r.Failed++
	}
}

// Merge adds the counts and outcomes of other to r.
func (r *SweepResult) Merge(other *SweepResult) {
	if other == nil {
		return
	}

	r.Processed += other.Processed
	r.Completed += other.Completed
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	r.Tasks = append(r.Tasks, other.Tasks...)
}

// ProcessDueTasks resumes up to limit pending tasks whose run_at has passed, oldest
// first, together with running tasks whose claim has outlived the claim timeout.
// Each task settles as completed or failed on its own; the only error returned is
// a failure to list due tasks.
func (e *Engine) ProcessDueTasks(ctx context.Context, limit int) (*SweepResult, error) {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.process_due_tasks", attribute.Int("journeys.sweep.limit", limit))
	defer span.End()

	now := e.now()
	staleBefore := now.Add(-e.claimTimeout)

	tasks, err := e.tasks.DueBefore(ctx, now, staleBefore, limit)
	if err != nil {
		otelhelper.SetError(span, err)
		e.logger.ErrorContext(ctx, "Failed to list due tasks", "error", err)

		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}

	result := &SweepResult{Tasks: make([]TaskOutcome, 0, len(tasks))}

	for _, task := range tasks {
		result.add(e.processTask(ctx, task, now, staleBefore))
	}

	e.logger.InfoContext(ctx, "Sweep finished",
		"due", len(tasks),
		"completed", result.Completed,
		"failed", result.Failed,
		"skipped", result.Skipped)

	return result, nil
}

func (e *Engine) processTask(ctx context.Context, task *models.JourneyTask, now, staleBefore time.Time) TaskOutcome {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.resume_task",
		append(otelhelper.Attributes(task.Context), attribute.String(otelhelper.TaskIDKey, task.ID))...,
	)
	defer span.End()

	logger := e.logger.With("task_id", task.ID, "journey_id", task.JourneyID, "version", task.Version, "user_id", task.UserID)

	if task.Status == models.TaskStatusRunning {
		logger.WarnContext(ctx, "Taking over expired claim", "claimed_at", task.UpdatedAt)
	}

	if e.claiming {
		claimed, err := e.tasks.Claim(ctx, task.ID, now, staleBefore)
		if err != nil {
			otelhelper.SetError(span, err)
			logger.ErrorContext(ctx, "Failed to claim task", "error", err)

			return TaskOutcome{TaskID: task.ID, Status: task.Status, Error: err.Error(), Skipped: true}
		}

		if !claimed {
			logger.DebugContext(ctx, "Task claimed by another runner, skipping")

			return TaskOutcome{TaskID: task.ID, Status: task.Status, Skipped: true}
		}
	}

	runErr := e.resume(ctx, task)

	patch := models.CompletedPatch()
	outcome := TaskOutcome{TaskID: task.ID, Status: models.TaskStatusCompleted}

	if runErr != nil {
		otelhelper.SetError(span, runErr)
		logger.WarnContext(ctx, "Task failed", "error", runErr)

		patch = models.FailedPatch(runErr.Error())
		outcome = TaskOutcome{TaskID: task.ID, Status: models.TaskStatusFailed, Error: runErr.Error()}
	}

	if err := e.tasks.Update(ctx, task.ID, patch); err != nil {
		logger.ErrorContext(ctx, "Failed to settle task", "status", outcome.Status, "error", err)

		if outcome.Error == "" {
			outcome.Error = err.Error()
		}
	}

	return outcome
}

// resume loads the pinned journey version and continues at the saved node.
func (e *Engine) resume(ctx context.Context, task *models.JourneyTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("traversal panic: %v", r)
		}
	}()

	version, err := e.journeys.PublishedVersion(ctx, task.JourneyID, task.Version)
	if err != nil {
		return fmt.Errorf("failed to load journey version: %w", err)
	}

	if version == nil {
		return ErrVersionNotFound
	}

	return e.Traverse(ctx, graph.New(version.Schema), task.ResumeNodeID, task.Context)
}
