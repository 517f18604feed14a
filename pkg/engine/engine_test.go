package engine_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/graph"
	"github.com/dukex/journeys/pkg/mocks"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingExecutor struct {
	executed []string
	contexts []models.JourneyContext
	panicOn  string
}

func (r *recordingExecutor) Execute(_ context.Context, jc models.JourneyContext, node *models.Node) {
	if node.ID == r.panicOn {
		panic("provider exploded")
	}

	r.executed = append(r.executed, node.ID)
	r.contexts = append(r.contexts, jc)
}

type staticEvaluator map[string]bool

func (s staticEvaluator) Evaluate(_ context.Context, _ string, node *models.Node) bool {
	return s[node.ID]
}

type fixture struct {
	journeys  *mocks.MockJourneyRepository
	profiles  *mocks.MockProfileRepository
	tasks     *mocks.MockTaskRepository
	executor  *recordingExecutor
	evaluator staticEvaluator
}

func newFixture() *fixture {
	return &fixture{
		journeys:  &mocks.MockJourneyRepository{},
		profiles:  &mocks.MockProfileRepository{},
		tasks:     &mocks.MockTaskRepository{},
		executor:  &recordingExecutor{},
		evaluator: staticEvaluator{},
	}
}

func (f *fixture) engine(opts ...engine.Option) *engine.Engine {
	ids := 0
	defaults := []engine.Option{
		engine.WithClock(func() time.Time { return now }),
		engine.WithTracer(otelhelper.NoopTracer()),
		engine.WithIDGenerator(func() string {
			ids++

			return fmt.Sprintf("task-%d", ids)
		}),
	}

	return engine.New(f.journeys, f.profiles, f.tasks, f.evaluator, f.executor, slog.Default(), append(defaults, opts...)...)
}

func newNode(id string, data models.NodeData) *models.Node {
	return &models.Node{ID: id, Type: data.NodeType(), Data: data}
}

func newEdge(source, target, label string) *models.Edge {
	return &models.Edge{Source: source, Target: target, Label: label}
}

func action(id string) *models.Node {
	return newNode(id, models.ActionData{Type: models.ActionTypeEngagement, Title: id})
}

func eventTrigger(id, eventType string) *models.Node {
	return newNode(id, models.TriggerData{TriggerType: models.TriggerTypeEvent, EventType: eventType})
}

func journeyContext() models.JourneyContext {
	return models.JourneyContext{UserID: "u1", JourneyID: "j1", Version: 1, Event: models.Event{EventType: "signup"}}
}

func TestTraverse_StopsAtGoal(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{
			eventTrigger("t1", "signup"),
			action("a1"),
			newNode("g1", models.GoalData{Name: "converted"}),
			action("a2"),
		},
		Edges: []*models.Edge{newEdge("t1", "a1", ""), newEdge("a1", "g1", ""), newEdge("g1", "a2", "")},
	})

	err := f.engine().Traverse(context.Background(), g, "t1", journeyContext())

	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, f.executor.executed)
}

func TestTraverse_TerminatesAtPathEnd(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{eventTrigger("t1", "signup"), action("a1"), action("a2")},
		Edges: []*models.Edge{newEdge("t1", "a1", ""), newEdge("a1", "a2", "")},
	})

	require.NoError(t, f.engine().Traverse(context.Background(), g, "t1", journeyContext()))
	assert.Equal(t, []string{"a1", "a2"}, f.executor.executed)
}

func TestTraverse_CycleGuard(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{action("a1"), action("a2")},
		Edges: []*models.Edge{newEdge("a1", "a2", ""), newEdge("a2", "a1", "")},
	})

	done := make(chan error, 1)

	go func() {
		done <- f.engine().Traverse(context.Background(), g, "a1", journeyContext())
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("traversal did not terminate on a cycle")
	}

	assert.Equal(t, []string{"a1", "a2"}, f.executor.executed)
}

func TestTraverse_ConditionBranches(t *testing.T) {
	schema := models.Schema{
		Nodes: []*models.Node{
			newNode("c1", models.ConditionData{Type: models.ConditionKindProfile, Field: "risk_profile", Operator: "equals", Value: "aggressive"}),
			action("yes"),
			action("no"),
		},
		Edges: []*models.Edge{newEdge("c1", "no", "FALSE"), newEdge("c1", "yes", "True")},
	}

	for _, outcome := range []bool{true, false} {
		f := newFixture()
		f.evaluator["c1"] = outcome

		require.NoError(t, f.engine().Traverse(context.Background(), graph.New(schema), "c1", journeyContext()))

		want := "no"
		if outcome {
			want = "yes"
		}

		assert.Equal(t, []string{want}, f.executor.executed)
	}
}

func TestTraverse_MissingTargetHaltsSilently(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{eventTrigger("t1", "signup"), action("a1")},
		Edges: []*models.Edge{newEdge("t1", "a1", ""), newEdge("a1", "ghost", "")},
	})

	require.NoError(t, f.engine().Traverse(context.Background(), g, "t1", journeyContext()))
	require.NoError(t, f.engine().Traverse(context.Background(), g, "nowhere", journeyContext()))
	assert.Equal(t, []string{"a1"}, f.executor.executed)
}

func TestTraverse_UnknownNodeTypeIsTerminal(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{
			newNode("x1", models.UnknownData{Type: "split"}),
			action("a1"),
		},
		Edges: []*models.Edge{newEdge("x1", "a1", "")},
	})

	require.NoError(t, f.engine().Traverse(context.Background(), g, "x1", journeyContext()))
	assert.Empty(t, f.executor.executed)
}

func TestTraverse_WaitPersistsContinuationAndReturns(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{
			eventTrigger("t1", "signup"),
			action("a1"),
			newNode("w1", models.WaitData{DelaySeconds: 3600}),
			action("a2"),
		},
		Edges: []*models.Edge{newEdge("t1", "a1", ""), newEdge("a1", "w1", ""), newEdge("w1", "a2", "")},
	})

	jc := journeyContext()
	jc.WorkspaceID = "ws-1"

	f.tasks.On("Create", mock.Anything, mock.MatchedBy(func(task *models.JourneyTask) bool {
		return task.ID == "task-1" &&
			task.ResumeNodeID == "a2" &&
			task.RunAt.Equal(now.Add(time.Hour)) &&
			task.Status == models.TaskStatusPending &&
			task.JourneyID == "j1" &&
			task.Version == 1 &&
			task.UserID == "u1" &&
			assert.ObjectsAreEqual(jc, task.Context)
	})).Return(nil).Once()

	require.NoError(t, f.engine().Traverse(context.Background(), g, "t1", jc))

	f.tasks.AssertExpectations(t)
	assert.Equal(t, []string{"a1"}, f.executor.executed, "nodes after the wait run only on resume")
}

func TestTraverse_WaitWithoutSuccessorStillCreatesTask(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{action("a1"), newNode("w1", models.WaitData{DelaySeconds: 3600})},
		Edges: []*models.Edge{newEdge("a1", "w1", "")},
	})

	f.tasks.On("Create", mock.Anything, mock.MatchedBy(func(task *models.JourneyTask) bool {
		return task.ResumeNodeID == "" &&
			task.RunAt.Equal(now.Add(time.Hour)) &&
			task.Status == models.TaskStatusPending
	})).Return(nil).Once()

	require.NoError(t, f.engine().Traverse(context.Background(), g, "a1", journeyContext()))

	f.tasks.AssertExpectations(t)
	f.tasks.AssertNumberOfCalls(t, "Create", 1)
	assert.Equal(t, []string{"a1"}, f.executor.executed)
}

func TestTraverse_ZeroDelayWaitIsPassthrough(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{newNode("w1", models.WaitData{}), action("a1")},
		Edges: []*models.Edge{newEdge("w1", "a1", "")},
	})

	require.NoError(t, f.engine().Traverse(context.Background(), g, "w1", journeyContext()))

	f.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, []string{"a1"}, f.executor.executed)
}

func TestTraverse_WaitPersistFailureIsReturned(t *testing.T) {
	f := newFixture()
	g := graph.New(models.Schema{
		Nodes: []*models.Node{newNode("w1", models.WaitData{DelaySeconds: 60}), action("a1")},
		Edges: []*models.Edge{newEdge("w1", "a1", "")},
	})

	f.tasks.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	err := f.engine().Traverse(context.Background(), g, "w1", journeyContext())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, f.executor.executed)
}
