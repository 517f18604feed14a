// Package engine walks journey graphs for users: it matches inbound events against
// trigger nodes, traverses from the matched trigger, persists continuations at wait
// nodes and resumes them when they fall due.
//
// The engine starts no goroutines. Every entry point runs to completion in the
// calling request or job.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultSweepLimit is the batch size used when ProcessDueTasks gets a non-positive limit.
	DefaultSweepLimit = 50
	// DefaultClaimTimeout is how long a claimed task may stay running before
	// another sweep may take it over.
	DefaultClaimTimeout = 15 * time.Minute
)

// JourneySource is the read side of the journey store used by the engine.
type JourneySource interface {
	ListActive(ctx context.Context) ([]*models.Journey, error)
	PublishedVersion(ctx context.Context, journeyID string, version int) (*models.JourneyVersion, error)
}

// ProfileSource returns the latest profile of a user, or nil.
type ProfileSource interface {
	LatestProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// TaskStore persists continuations.
type TaskStore interface {
	Create(ctx context.Context, task *models.JourneyTask) error
	Update(ctx context.Context, id string, patch models.TaskPatch) error
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
	DueBefore(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.JourneyTask, error)
}

// ConditionEvaluator decides the outcome of condition nodes.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, userID string, node *models.Node) bool
}

// ActionExecutor dispatches action nodes.
type ActionExecutor interface {
	Execute(ctx context.Context, jc models.JourneyContext, node *models.Node)
}

// Engine orchestrates journeys. It keeps no per-user state between calls.
type Engine struct {
	journeys   JourneySource
	profiles   ProfileSource
	tasks      TaskStore
	evaluator  ConditionEvaluator
	dispatcher ActionExecutor

	claiming     bool
	claimTimeout time.Duration
	now          func() time.Time
	newID        func() string
	tracer       trace.Tracer
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTaskClaiming toggles the pending to running claim made before a swept task
// executes. Claiming is on by default; without it two concurrent sweeps may both
// run the same task.
func WithTaskClaiming(enabled bool) Option {
	return func(e *Engine) {
		e.claiming = enabled
	}
}

// WithClaimTimeout sets how long a claim holds. A task still running after that,
// because its sweeper died or could not settle it, is swept again. Non-positive
// values keep the default.
func WithClaimTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.claimTimeout = timeout
		}
	}
}

// WithClock replaces the clock used for run_at computation and due-task lookups.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTracer replaces the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithIDGenerator replaces the generator of task ids.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// New creates an engine.
func New(
	journeys JourneySource,
	profiles ProfileSource,
	tasks TaskStore,
	evaluator ConditionEvaluator,
	dispatcher ActionExecutor,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		journeys:     journeys,
		profiles:     profiles,
		tasks:        tasks,
		evaluator:    evaluator,
		dispatcher:   dispatcher,
		claiming:     true,
		claimTimeout: DefaultClaimTimeout,
		now:          time.Now,
		newID:        newTaskID,
		tracer:       otel.Tracer("github.com/dukex/journeys/pkg/engine"),
		logger:       logger.With("module", "journey_engine"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// nolint:spancheck
func (e *Engine) startSpan(ctx context.Context, name string, jc models.JourneyContext) (context.Context, trace.Span) {
	return otelhelper.StartSpan(ctx, e.tracer, name,
		otelhelper.Attributes(jc)...,
	)
}
