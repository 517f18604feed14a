package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/journeys/pkg/conditions"
	"github.com/dukex/journeys/pkg/graph"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// Match is one trigger node that fired for an event.
type Match struct {
	JourneyID     string `json:"journey_id"`
	Version       int    `json:"version"`
	TriggerNodeID string `json:"trigger_node_id"`
	Error         string `json:"error,omitempty"`
}

// EventResult reports what OnEvent did with one event.
type EventResult struct {
	JourneysEvaluated int     `json:"journeys_evaluated"`
	Matches           []Match `json:"matches"`
	// Errors lists journeys that could not be evaluated at all.
	Errors []string `json:"errors,omitempty"`
}

// Failed returns the matches whose traversal ended in error.
func (r *EventResult) Failed() []Match {
	var failed []Match

	for _, m := range r.Matches {
		if m.Error != "" {
			failed = append(failed, m)
		}
	}

	return failed
}

// OnEvent matches the event against the trigger nodes of every active journey and
// traverses each match. A failing journey or match never affects the others; the
// only error returned is a failure to list active journeys.
func (e *Engine) OnEvent(ctx context.Context, userID string, event models.Event, workspaceID string) (*EventResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.on_event",
		attribute.String(otelhelper.UserIDKey, userID),
		attribute.String(otelhelper.EventTypeKey, event.EventType),
	)
	defer span.End()

	logger := e.logger.With("user_id", userID, "event_type", event.EventType)

	journeys, err := e.journeys.ListActive(ctx)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to list active journeys", "error", err)

		return nil, fmt.Errorf("failed to list active journeys: %w", err)
	}

	result := &EventResult{Matches: []Match{}}
	profile := &lazyProfile{load: e.profiles.LatestProfile, userID: userID}

	for _, journey := range journeys {
		if !journey.IsActive() {
			continue
		}

		result.JourneysEvaluated++

		version, err := e.journeys.PublishedVersion(ctx, journey.ID, *journey.PublishedVersion)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to load published version", "journey_id", journey.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("journey %s: %v", journey.ID, err))

			continue
		}

		if version == nil {
			logger.WarnContext(ctx, "Active journey has no published version", "journey_id", journey.ID,
				"version", *journey.PublishedVersion)

			continue
		}

		g := graph.New(version.Schema)

		for _, trigger := range g.Triggers() {
			if !e.triggerMatches(ctx, logger, trigger, userID, event, profile) {
				continue
			}

			jc := models.JourneyContext{
				UserID:      userID,
				Event:       event,
				JourneyID:   journey.ID,
				Version:     version.Version,
				SessionID:   event.SessionID,
				WorkspaceID: workspaceID,
			}
			if jc.WorkspaceID == "" {
				jc.WorkspaceID = journey.WorkspaceID
			}

			match := Match{JourneyID: journey.ID, Version: version.Version, TriggerNodeID: trigger.ID}

			logger.InfoContext(ctx, "Trigger matched", "journey_id", journey.ID, "version", version.Version, "node_id", trigger.ID)

			if err := e.safeTraverse(ctx, g, trigger.ID, jc); err != nil {
				logger.ErrorContext(ctx, "Journey traversal failed", "journey_id", journey.ID, "node_id", trigger.ID, "error", err)
				match.Error = err.Error()
			}

			result.Matches = append(result.Matches, match)
		}
	}

	span.SetAttributes(attribute.Int("journeys.matches", len(result.Matches)))

	return result, nil
}

func (e *Engine) triggerMatches(
	ctx context.Context,
	logger *slog.Logger,
	node *models.Node,
	userID string,
	event models.Event,
	profile *lazyProfile,
) bool {
	trigger, ok := node.Trigger()
	if !ok {
		return false
	}

	switch trigger.TriggerType {
	case models.TriggerTypeEvent:
		return trigger.EventType != "" && trigger.EventType == event.EventType

	case models.TriggerTypeMotive:
		if trigger.Motive == "" {
			return false
		}

		p := profile.get(ctx, logger)

		return p != nil && slices.Contains(p.MotivationStack(), trigger.Motive)

	case models.TriggerTypeTrait:
		if trigger.Field == "" {
			return false
		}

		p := profile.get(ctx, logger)

		return p != nil && conditions.StrictEqual(p.Lookup(trigger.Field), trigger.Value)

	default:
		logger.DebugContext(ctx, "Unknown trigger type", "node_id", node.ID, "trigger_type", trigger.TriggerType, "user_id", userID)

		return false
	}
}

// safeTraverse runs Traverse and turns a panic into an error.
func (e *Engine) safeTraverse(ctx context.Context, g *graph.Graph, startID string, jc models.JourneyContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("traversal panic: %v", r)
		}
	}()

	return e.Traverse(ctx, g, startID, jc)
}

// lazyProfile loads the user's profile at most once per event, and only when a
// motive or trait trigger needs it.
type lazyProfile struct {
	load    func(ctx context.Context, userID string) (*models.Profile, error)
	userID  string
	loaded  bool
	profile *models.Profile
}

func (l *lazyProfile) get(ctx context.Context, logger *slog.Logger) *models.Profile {
	if l.loaded {
		return l.profile
	}

	l.loaded = true

	profile, err := l.load(ctx, l.userID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load profile for trigger matching", "error", err)

		return nil
	}

	l.profile = profile

	return profile
}
