package services

import (
	"context"
	"fmt"

	"github.com/dukex/journeys/pkg/models"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Definition is a journey described in a YAML file.
type Definition struct {
	Name        string `yaml:"name"`
	WorkspaceID string `yaml:"workspace_id"`
	Publish     bool   `yaml:"publish"`
	Schema      models.Schema
}

type rawDefinition struct {
	Name        string `yaml:"name"`
	WorkspaceID string `yaml:"workspace_id"`
	Publish     *bool  `yaml:"publish"`
	Nodes       []any  `yaml:"nodes"`
	Edges       []any  `yaml:"edges"`
}

// ParseDefinition decodes a YAML journey definition. Node payloads go through the
// JSON node decoder so YAML and API schemas share one set of rules. publish
// defaults to true.
func ParseDefinition(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	document, err := json.Marshal(map[string]any{"nodes": raw.Nodes, "edges": raw.Edges})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	definition := &Definition{
		Name:        raw.Name,
		WorkspaceID: raw.WorkspaceID,
		Publish:     raw.Publish == nil || *raw.Publish,
	}

	if err := json.Unmarshal(document, &definition.Schema); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	return definition, nil
}

// Importer creates a journey from a definition.
type Importer struct {
	journeys   *Journey
	publishing *Publishing
}

// NewImporter creates an importer on top of the authoring services.
func NewImporter(journeys *Journey, publishing *Publishing) *Importer {
	return &Importer{journeys: journeys, publishing: publishing}
}

// Import creates the journey, stores the schema as version 1 and publishes it
// when the definition asks for it.
func (i *Importer) Import(ctx context.Context, definition *Definition) (*models.Journey, error) {
	if definition.Publish {
		if err := ValidateSchema(definition.Schema); err != nil {
			return nil, NewValidationError("Import", "invalid_schema", err.Error(), err)
		}
	}

	journey, err := i.journeys.Create(ctx, CreateJourneyRequest{Name: definition.Name, WorkspaceID: definition.WorkspaceID})
	if err != nil {
		return nil, err
	}

	version, err := i.journeys.CreateVersion(ctx, journey.ID, definition.Schema)
	if err != nil {
		return nil, err
	}

	if !definition.Publish {
		return journey, nil
	}

	return i.publishing.Publish(ctx, journey.ID, version.Version)
}
