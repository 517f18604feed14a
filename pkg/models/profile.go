package models

import (
	"strings"
	"time"
)

// MotivationStackKey is the profile attribute holding the ordered motivation stack.
const MotivationStackKey = "motivation_stack"

// Profile is a psychographic snapshot of a user produced by an external pipeline.
type Profile struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
	Attributes map[string]any `json:"attributes"`
}

// Lookup resolves a dot-separated path into the profile attributes.
// Missing keys and non-object intermediates resolve to nil.
func (p *Profile) Lookup(path string) any {
	if p == nil || path == "" {
		return nil
	}

	var current any = p.Attributes

	for _, key := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = object[key]
		if !ok {
			return nil
		}
	}

	return current
}

// MotivationStack returns the motives of the profile, strongest first. Entries may be
// plain strings or objects carrying a "motive" key.
func (p *Profile) MotivationStack() []string {
	raw, ok := p.Lookup(MotivationStackKey).([]any)
	if !ok {
		return nil
	}

	motives := make([]string, 0, len(raw))

	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			motives = append(motives, v)
		case map[string]any:
			if motive, ok := v["motive"].(string); ok {
				motives = append(motives, motive)
			}
		}
	}

	return motives
}

// Event is an inbound behavioral event for a user.
type Event struct {
	ID         string         `json:"id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	EventType  string         `json:"event_type"           validate:"required"`
	SessionID  string         `json:"session_id,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
