package models

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// NodeType tags a node and selects the shape of its data payload.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeWait      NodeType = "wait"
	NodeTypeGoal      NodeType = "goal"
)

// TriggerType selects how a trigger node matches an inbound event.
type TriggerType string

const (
	TriggerTypeEvent  TriggerType = "event"
	TriggerTypeMotive TriggerType = "motive"
	TriggerTypeTrait  TriggerType = "trait"
)

// ConditionKind selects the source a condition node is evaluated against.
type ConditionKind string

const (
	ConditionKindProfile  ConditionKind = "profile"
	ConditionKindBehavior ConditionKind = "behavior"
)

// ActionType selects the channel an action node dispatches through.
type ActionType string

const (
	ActionTypeEngagement ActionType = "engagement"
	ActionTypeEmail      ActionType = "email"
	ActionTypeSMS        ActionType = "sms"
	ActionTypePush       ActionType = "push"
)

// DefaultBehaviorWindow is used by behavior conditions without within_minutes.
const DefaultBehaviorWindow = 60 * time.Minute

// NodeData is the typed payload of a node. Exactly one implementation exists per NodeType.
type NodeData interface {
	NodeType() NodeType
}

// TriggerData is the payload of a trigger node.
type TriggerData struct {
	TriggerType TriggerType `json:"trigger_type"         validate:"required"`
	EventType   string      `json:"event_type,omitempty"`
	Motive      string      `json:"motive,omitempty"`
	Field       string      `json:"field,omitempty"`
	Value       any         `json:"value,omitempty"`
}

func (TriggerData) NodeType() NodeType { return NodeTypeTrigger }

// ConditionData is the payload of a condition node.
type ConditionData struct {
	Type          ConditionKind `json:"type,omitempty"`
	Field         string        `json:"field,omitempty"`
	Operator      string        `json:"operator,omitempty"`
	Value         any           `json:"value,omitempty"`
	EventType     string        `json:"event_type,omitempty"`
	WithinMinutes int           `json:"within_minutes,omitempty" validate:"gte=0"`
}

func (ConditionData) NodeType() NodeType { return NodeTypeCondition }

// Window returns the look-back window of a behavior condition.
func (c ConditionData) Window() time.Duration {
	if c.WithinMinutes <= 0 {
		return DefaultBehaviorWindow
	}

	return time.Duration(c.WithinMinutes) * time.Minute
}

// ActionData is the payload of an action node. Which fields are read depends on Type.
type ActionData struct {
	Type        ActionType     `json:"type"`
	Title       string         `json:"title,omitempty"`
	Message     string         `json:"message,omitempty"`
	Subject     string         `json:"subject,omitempty"`
	Content     string         `json:"content,omitempty"`
	TemplateID  string         `json:"template_id,omitempty"`
	To          string         `json:"to,omitempty"`
	From        string         `json:"from,omitempty"`
	TargetType  string         `json:"target_type,omitempty"`
	TargetValue string         `json:"target_value,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (ActionData) NodeType() NodeType { return NodeTypeAction }

// WaitData is the payload of a wait node.
type WaitData struct {
	DelaySeconds int64 `json:"delay_seconds"`
}

func (WaitData) NodeType() NodeType { return NodeTypeWait }

// Delay returns the wait duration; non-positive delays are passthroughs.
func (w WaitData) Delay() time.Duration {
	return time.Duration(w.DelaySeconds) * time.Second
}

// GoalData is the payload of a goal node.
type GoalData struct {
	Name string `json:"name,omitempty"`
}

func (GoalData) NodeType() NodeType { return NodeTypeGoal }

// UnknownData keeps the raw payload of a node whose type is not recognized.
type UnknownData struct {
	Type NodeType        `json:"-"`
	Raw  json.RawMessage `json:"-"`
}

func (u UnknownData) NodeType() NodeType { return u.Type }

// Node is one step of a journey graph.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Data NodeData `json:"data"`
}

type rawNode struct {
	ID   string          `json:"id"`
	Type NodeType        `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes the data payload into the variant selected by the node type.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw rawNode
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := DecodeNodeData(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Data = data

	return nil
}

// MarshalJSON encodes the node with its data payload.
func (n Node) MarshalJSON() ([]byte, error) {
	var data any = n.Data
	if unknown, ok := n.Data.(UnknownData); ok {
		data = unknown.Raw
	}

	return json.Marshal(struct {
		ID   string   `json:"id"`
		Type NodeType `json:"type"`
		Data any      `json:"data,omitempty"`
	}{ID: n.ID, Type: n.Type, Data: data})
}

// DecodeNodeData decodes a raw payload for the given node type.
func DecodeNodeData(nodeType NodeType, raw json.RawMessage) (NodeData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	switch nodeType {
	case NodeTypeTrigger:
		var d TriggerData

		err := decodeInto(raw, &d)

		return d, err
	case NodeTypeCondition:
		var d ConditionData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("invalid condition data: %w", err)
		}

		if d.Type == "" {
			d.Type = ConditionKindProfile
		}

		return d, nil
	case NodeTypeAction:
		var d ActionData

		err := decodeInto(raw, &d)

		return d, err
	case NodeTypeWait:
		var d WaitData

		err := decodeInto(raw, &d)

		return d, err
	case NodeTypeGoal:
		var d GoalData

		err := decodeInto(raw, &d)

		return d, err
	default:
		return UnknownData{Type: nodeType, Raw: raw}, nil
	}
}

func decodeInto(raw json.RawMessage, target any) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid node data: %w", err)
	}

	return nil
}

// Trigger returns the trigger payload when the node is a trigger.
func (n *Node) Trigger() (TriggerData, bool) {
	d, ok := n.Data.(TriggerData)

	return d, ok
}

// Condition returns the condition payload when the node is a condition.
func (n *Node) Condition() (ConditionData, bool) {
	d, ok := n.Data.(ConditionData)

	return d, ok
}

// Action returns the action payload when the node is an action.
func (n *Node) Action() (ActionData, bool) {
	d, ok := n.Data.(ActionData)

	return d, ok
}

// Wait returns the wait payload when the node is a wait.
func (n *Node) Wait() (WaitData, bool) {
	d, ok := n.Data.(WaitData)

	return d, ok
}

// Edge is a directed connection between two nodes. Label is only read by condition branches.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Schema is the graph of a journey version.
type Schema struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}
