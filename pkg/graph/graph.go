// Package graph provides the in-memory view of a journey version used during traversal.
package graph

import (
	"strings"

	"github.com/dukex/journeys/pkg/models"
)

// Graph indexes the nodes and outgoing edges of one journey version.
type Graph struct {
	nodes    map[string]*models.Node
	order    []string
	outgoing map[string][]*models.Edge
}

// New builds a graph from a version schema in one pass. Nodes and edges without
// ids are ignored; dangling edge targets are kept and surface as missing nodes.
func New(schema models.Schema) *Graph {
	g := &Graph{
		nodes:    make(map[string]*models.Node, len(schema.Nodes)),
		outgoing: make(map[string][]*models.Edge, len(schema.Nodes)),
	}

	for _, node := range schema.Nodes {
		if node == nil || node.ID == "" {
			continue
		}

		if _, seen := g.nodes[node.ID]; !seen {
			g.order = append(g.order, node.ID)
		}

		g.nodes[node.ID] = node
	}

	for _, edge := range schema.Edges {
		if edge == nil || edge.Source == "" || edge.Target == "" {
			continue
		}

		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
	}

	return g
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*models.Node, bool) {
	node, ok := g.nodes[id]

	return node, ok
}

// Len returns the number of indexed nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Triggers returns the trigger nodes of the graph in schema order.
func (g *Graph) Triggers() []*models.Node {
	var triggers []*models.Node

	for _, id := range g.order {
		if node := g.nodes[id]; node.Type == models.NodeTypeTrigger {
			triggers = append(triggers, node)
		}
	}

	return triggers
}

// Outgoing returns the outgoing edges of a node in declaration order.
func (g *Graph) Outgoing(id string) []*models.Edge {
	return g.outgoing[id]
}

// PickNext selects the target of the next edge leaving id. With a label, the first
// edge whose label matches case-insensitively wins; otherwise, or without a match,
// the first outgoing edge is used.
func (g *Graph) PickNext(id, label string) (string, bool) {
	edges := g.outgoing[id]
	if len(edges) == 0 {
		return "", false
	}

	if label != "" {
		for _, edge := range edges {
			if strings.EqualFold(edge.Label, label) {
				return edge.Target, true
			}
		}
	}

	return edges[0].Target, true
}
