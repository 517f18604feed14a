package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dukex/journeys/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

// journeySchemaDocument describes the wire shape of a journey graph.
const journeySchemaDocument = `{
	"type": "object",
	"required": ["nodes"],
	"properties": {
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"enum": ["trigger", "condition", "action", "wait", "goal"]},
					"data": {"type": "object"}
				}
			}
		},
		"edges": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["source", "target"],
				"properties": {
					"source": {"type": "string", "minLength": 1},
					"target": {"type": "string", "minLength": 1},
					"label": {"type": "string"}
				}
			}
		}
	}
}`

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	journeySchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(journeySchemaDocument))
	})
)

// ValidateSchema checks that a journey graph can be published: the document
// matches the journey JSON schema, node data is well formed, node ids are
// unique, at least one trigger exists and every edge joins existing nodes.
func ValidateSchema(schema models.Schema) error {
	if len(schema.Nodes) == 0 {
		return ErrNodesRequired
	}

	document, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	compiled, err := journeySchema()
	if err != nil {
		return fmt.Errorf("failed to compile journey schema: %w", err)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidSchema, strings.Join(problems, "; "))
	}

	ids := make(map[string]struct{}, len(schema.Nodes))
	triggers := 0

	for _, node := range schema.Nodes {
		if _, exists := ids[node.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID)
		}

		ids[node.ID] = struct{}{}

		if err := validateNodeData(node); err != nil {
			return fmt.Errorf("%w: node %s: %w", ErrInvalidNodeData, node.ID, err)
		}

		if node.Type == models.NodeTypeTrigger {
			triggers++
		}
	}

	if triggers == 0 {
		return ErrTriggerNodeRequired
	}

	for _, edge := range schema.Edges {
		if _, ok := ids[edge.Source]; !ok {
			return fmt.Errorf("%w: source %s", ErrDanglingEdge, edge.Source)
		}

		if _, ok := ids[edge.Target]; !ok {
			return fmt.Errorf("%w: target %s", ErrDanglingEdge, edge.Target)
		}
	}

	return nil
}

func validateNodeData(node *models.Node) error {
	if node.Data == nil {
		return errors.New("missing data")
	}

	if err := validate.Struct(node.Data); err != nil {
		return err
	}

	switch data := node.Data.(type) {
	case models.TriggerData:
		switch data.TriggerType {
		case models.TriggerTypeEvent:
			if data.EventType == "" {
				return errors.New("event trigger requires event_type")
			}
		case models.TriggerTypeMotive:
			if data.Motive == "" {
				return errors.New("motive trigger requires motive")
			}
		case models.TriggerTypeTrait:
			if data.Field == "" {
				return errors.New("trait trigger requires field")
			}
		default:
			return fmt.Errorf("unknown trigger_type %q", data.TriggerType)
		}
	case models.ConditionData:
		if data.Type == models.ConditionKindBehavior && data.EventType == "" {
			return errors.New("behavior condition requires event_type")
		}

		if data.Type == models.ConditionKindProfile && data.Field == "" {
			return errors.New("profile condition requires field")
		}
	case models.WaitData:
		if data.DelaySeconds < 0 {
			return errors.New("delay_seconds must not be negative")
		}
	}

	return nil
}
