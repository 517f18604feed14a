package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/journeys/pkg/graph"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// Labels chosen on the edges leaving a condition node.
const (
	LabelTrue  = "true"
	LabelFalse = "false"
)

// Traverse walks g from startID for the user in jc until the path ends, a goal
// is reached, a node is revisited or a wait node suspends the path.
//
// A missing node halts silently. The only error returned is a failure to persist
// the continuation of a wait node.
func (e *Engine) Traverse(ctx context.Context, g *graph.Graph, startID string, jc models.JourneyContext) error {
	ctx, span := e.startSpan(ctx, "engine.traverse", jc)
	defer span.End()

	logger := e.logger.With(
		"journey_id", jc.JourneyID,
		"version", jc.Version,
		"user_id", jc.UserID,
	)

	visited := make(map[string]struct{}, g.Len())
	cursor := startID

	for cursor != "" {
		if _, seen := visited[cursor]; seen {
			logger.DebugContext(ctx, "Node already visited in this traversal, halting", "node_id", cursor)

			return nil
		}

		visited[cursor] = struct{}{}

		node, ok := g.Node(cursor)
		if !ok {
			logger.DebugContext(ctx, "Node not found, halting", "node_id", cursor)

			return nil
		}

		span.AddEvent("node_visited", trace.WithAttributes(otelhelper.NodeAttributes(node)...))

		next, err := e.step(ctx, logger, g, node, jc)
		if err != nil {
			otelhelper.SetError(span, err, otelhelper.NodeAttributes(node)...)

			return err
		}

		cursor = next
	}

	return nil
}

// step executes one node and returns the id of the next node, or "" when the path stops.
func (e *Engine) step(ctx context.Context, logger *slog.Logger, g *graph.Graph, node *models.Node, jc models.JourneyContext) (string, error) {
	switch data := node.Data.(type) {
	case models.TriggerData:
		next, _ := g.PickNext(node.ID, "")

		return next, nil

	case models.ConditionData:
		label := LabelFalse
		if e.evaluator.Evaluate(ctx, jc.UserID, node) {
			label = LabelTrue
		}

		logger.DebugContext(ctx, "Condition evaluated", "node_id", node.ID, "outcome", label)

		next, _ := g.PickNext(node.ID, label)

		return next, nil

	case models.ActionData:
		e.dispatcher.Execute(ctx, jc, node)

		next, _ := g.PickNext(node.ID, "")

		return next, nil

	case models.WaitData:
		next, _ := g.PickNext(node.ID, "")

		if data.Delay() <= 0 {
			return next, nil
		}

		return "", e.suspend(ctx, logger, node, next, data, jc)

	case models.GoalData:
		logger.InfoContext(ctx, "Goal reached", "node_id", node.ID, "goal", data.Name)

		return "", nil

	default:
		logger.DebugContext(ctx, "Unsupported node type, halting", "node_id", node.ID, "type", node.Type)

		return "", nil
	}
}

// suspend persists the continuation of a wait node. A wait without a successor
// still gets a task, with an empty resume node, which completes when swept.
func (e *Engine) suspend(
	ctx context.Context,
	logger *slog.Logger,
	node *models.Node,
	resumeNodeID string,
	wait models.WaitData,
	jc models.JourneyContext,
) error {
	now := e.now()

	task := &models.JourneyTask{
		ID:           e.newID(),
		JourneyID:    jc.JourneyID,
		Version:      jc.Version,
		UserID:       jc.UserID,
		ResumeNodeID: resumeNodeID,
		Context:      jc,
		RunAt:        now.Add(wait.Delay()),
		Status:       models.TaskStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.tasks.Create(ctx, task); err != nil {
		logger.ErrorContext(ctx, "Failed to persist continuation", "node_id", node.ID, "error", err)

		return fmt.Errorf("failed to persist continuation at node %s: %w", node.ID, err)
	}

	logger.InfoContext(ctx, "Journey suspended",
		"node_id", node.ID,
		"task_id", task.ID,
		"resume_node_id", resumeNodeID,
		"run_at", task.RunAt)

	return nil
}
