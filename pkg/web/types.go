package web

import (
	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/models"
)

// CreateJourneyRequest represents the request body for creating a new journey.
type CreateJourneyRequest struct {
	Name        string `json:"name"         validate:"required,min=3"`
	WorkspaceID string `json:"workspace_id"`
}

// VersionRequest carries the graph of a draft version.
type VersionRequest struct {
	Nodes []*models.Node `json:"nodes" validate:"required"`
	Edges []*models.Edge `json:"edges"`
}

// Schema returns the graph carried by the request.
func (r VersionRequest) Schema() models.Schema {
	return models.Schema{Nodes: r.Nodes, Edges: r.Edges}
}

// IngestResponse is returned by the event endpoint.
type IngestResponse struct {
	Accepted bool                `json:"accepted"`
	Result   *engine.EventResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// DeliveriesResponse lists the engagement deliveries of a user.
type DeliveriesResponse struct {
	UserID     string                       `json:"user_id"`
	Deliveries []*models.EngagementDelivery `json:"deliveries"`
}
