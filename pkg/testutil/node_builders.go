// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/journeys/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates an engagement action node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:   uuid.New().String(),
		Type: models.NodeTypeAction,
		Data: models.ActionData{
			Type:    models.ActionTypeEngagement,
			Title:   "Test",
			Message: "test",
		},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node ID.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithData replaces the node payload and sets the matching node type.
func WithData(data models.NodeData) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = data.NodeType()
		n.Data = data
	}
}

// WithEventTrigger configures the node as a trigger on eventType.
func WithEventTrigger(eventType string) func(*models.Node) {
	return WithData(models.TriggerData{TriggerType: models.TriggerTypeEvent, EventType: eventType})
}

// WithWait configures the node as a wait of delaySeconds.
func WithWait(delaySeconds int64) func(*models.Node) {
	return WithData(models.WaitData{DelaySeconds: delaySeconds})
}

// WithGoal configures the node as a goal.
func WithGoal(name string) func(*models.Node) {
	return WithData(models.GoalData{Name: name})
}

// CreateTestEdge creates an edge between two nodes. label is optional.
func CreateTestEdge(sourceNodeID, targetNodeID string, label ...string) *models.Edge {
	edge := &models.Edge{Source: sourceNodeID, Target: targetNodeID}
	if len(label) > 0 {
		edge.Label = label[0]
	}

	return edge
}

// CreateTestSchema creates the graph trigger(signup) -> action -> goal with
// node ids t1, a1 and g1.
func CreateTestSchema() models.Schema {
	return models.Schema{
		Nodes: []*models.Node{
			CreateTestNode(WithID("t1"), WithEventTrigger("signup")),
			CreateTestNode(WithID("a1")),
			CreateTestNode(WithID("g1"), WithGoal("done")),
		},
		Edges: []*models.Edge{
			CreateTestEdge("t1", "a1"),
			CreateTestEdge("a1", "g1"),
		},
	}
}
