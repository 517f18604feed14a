// Package conditions evaluates condition nodes against a user's profile and recent behavior.
package conditions

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
)

// ProfileSource returns the most recently analyzed profile of a user, or nil.
type ProfileSource interface {
	LatestProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// EventSource returns events of one type for a user since a point in time, newest first.
type EventSource interface {
	RecentEvents(ctx context.Context, userID, eventType string, since time.Time, limit int) ([]*models.Event, error)
}

// Evaluator answers whether a user currently satisfies a condition node.
// It holds no per-user state; every call reads the stores again.
type Evaluator struct {
	profiles ProfileSource
	events   EventSource
	now      func() time.Time
	logger   *slog.Logger
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(profiles ProfileSource, events EventSource, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		profiles: profiles,
		events:   events,
		now:      time.Now,
		logger:   logger.With("module", "condition_evaluator"),
	}
}

// WithClock replaces the clock used to compute behavior windows.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now

	return e
}

// Evaluate returns the boolean outcome of a condition node. Store errors and
// non-condition nodes evaluate to false.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, node *models.Node) bool {
	condition, ok := node.Condition()
	if !ok {
		return false
	}

	switch condition.Type {
	case models.ConditionKindProfile, "":
		return e.evaluateProfile(ctx, userID, node.ID, condition)
	case models.ConditionKindBehavior:
		return e.evaluateBehavior(ctx, userID, node.ID, condition)
	default:
		e.logger.DebugContext(ctx, "Unknown condition type", "node_id", node.ID, "type", condition.Type)

		return false
	}
}

func (e *Evaluator) evaluateProfile(ctx context.Context, userID, nodeID string, condition models.ConditionData) bool {
	profile, err := e.profiles.LatestProfile(ctx, userID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load profile", "user_id", userID, "node_id", nodeID, "error", err)

		return false
	}

	// A missing profile resolves every field to nil.
	actual := profile.Lookup(condition.Field)

	return Compare(condition.Operator, actual, condition.Value)
}

func (e *Evaluator) evaluateBehavior(ctx context.Context, userID, nodeID string, condition models.ConditionData) bool {
	since := e.now().Add(-condition.Window())

	events, err := e.events.RecentEvents(ctx, userID, condition.EventType, since, 1)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load recent events",
			"user_id", userID,
			"node_id", nodeID,
			"event_type", condition.EventType,
			"error", err)

		return false
	}

	return len(events) > 0
}
