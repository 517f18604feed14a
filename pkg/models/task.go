package models

import "time"

// TaskStatus represents the state of a journey continuation.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running" // Claimed by a sweep, not yet settled; updated_at is the claim time
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// JourneyContext is threaded through a traversal and persisted with every continuation.
type JourneyContext struct {
	UserID      string `json:"user_id"`
	Event       Event  `json:"event"`
	JourneyID   string `json:"journey_id"`
	Version     int    `json:"version"`
	SessionID   string `json:"session_id,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// TemplateData exposes the context to message templates.
func (c JourneyContext) TemplateData() map[string]any {
	return map[string]any{
		"user_id":      c.UserID,
		"journey_id":   c.JourneyID,
		"version":      c.Version,
		"session_id":   c.SessionID,
		"workspace_id": c.WorkspaceID,
		"event": map[string]any{
			"id":         c.Event.ID,
			"event_type": c.Event.EventType,
			"properties": c.Event.Properties,
		},
	}
}

// JourneyTask is a durable continuation created when a traversal meets a wait node.
type JourneyTask struct {
	ID           string         `json:"id"`
	JourneyID    string         `json:"journey_id"`
	Version      int            `json:"version"`
	UserID       string         `json:"user_id"`
	ResumeNodeID string         `json:"resume_node_id"`
	Context      JourneyContext `json:"context"`
	RunAt        time.Time      `json:"run_at"`
	Status       TaskStatus     `json:"status"`
	LastError    string         `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Claimable reports whether a sweep may take the task: it is pending, or it is
// running under a claim last written at or before staleBefore.
func (t *JourneyTask) Claimable(staleBefore time.Time) bool {
	switch t.Status {
	case TaskStatusPending:
		return true
	case TaskStatusRunning:
		return !t.UpdatedAt.After(staleBefore)
	default:
		return false
	}
}

// IsDue reports whether the task should be picked up at now. Running tasks whose
// claim is older than staleBefore are due again.
func (t *JourneyTask) IsDue(now, staleBefore time.Time) bool {
	return !t.RunAt.After(now) && t.Claimable(staleBefore)
}

// TaskPatch is a partial update of a task. Nil fields are left untouched.
type TaskPatch struct {
	Status    *TaskStatus
	LastError *string
}

// Apply writes the patch onto the task.
func (p TaskPatch) Apply(task *JourneyTask, now time.Time) {
	if p.Status != nil {
		task.Status = *p.Status
	}

	if p.LastError != nil {
		task.LastError = *p.LastError
	}

	task.UpdatedAt = now
}

// CompletedPatch marks a task completed.
func CompletedPatch() TaskPatch {
	status := TaskStatusCompleted

	return TaskPatch{Status: &status}
}

// FailedPatch marks a task failed with the given error message.
func FailedPatch(message string) TaskPatch {
	status := TaskStatusFailed

	return TaskPatch{Status: &status, LastError: &message}
}
