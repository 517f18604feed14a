package otelhelper

import (
	"github.com/dukex/journeys/pkg/models"
	"go.opentelemetry.io/otel/attribute"
)

// Attributes returns the span attributes describing a journey context.
func Attributes(jc models.JourneyContext) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(JourneyIDKey, jc.JourneyID),
		attribute.Int(VersionKey, jc.Version),
		attribute.String(UserIDKey, jc.UserID),
	}

	if jc.Event.EventType != "" {
		attrs = append(attrs, attribute.String(EventTypeKey, jc.Event.EventType))
	}

	if jc.WorkspaceID != "" {
		attrs = append(attrs, attribute.String(WorkspaceIDKey, jc.WorkspaceID))
	}

	return attrs
}

// NodeAttributes returns the span attributes describing one visited node.
func NodeAttributes(node *models.Node) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(NodeIDKey, node.ID),
		attribute.String(NodeTypeKey, string(node.Type)),
	}
}
