// Package models defines the core domain models for journey automation.
package models

import "time"

// JourneyStatus represents the lifecycle state of a journey.
type JourneyStatus string

const (
	JourneyStatusDraft  JourneyStatus = "draft"  // Editable, never matched
	JourneyStatusActive JourneyStatus = "active" // Matched against inbound events
	JourneyStatusPaused JourneyStatus = "paused" // Kept, not matched
)

// VersionStatus represents the state of a journey version.
type VersionStatus string

const (
	VersionStatusDraft     VersionStatus = "draft"
	VersionStatusPublished VersionStatus = "published"
)

// Journey is a named automation. PublishedVersion points at the live JourneyVersion.
type Journey struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"                        validate:"required,min=3"`
	WorkspaceID      string        `json:"workspace_id,omitempty"`
	Status           JourneyStatus `json:"status"                      validate:"required,oneof=draft active paused"`
	PublishedVersion *int          `json:"published_version,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IsActive reports whether the journey is eligible for trigger matching.
func (j *Journey) IsActive() bool {
	return j.Status == JourneyStatusActive && j.PublishedVersion != nil
}

// JourneyVersion is an immutable, versioned graph of a journey.
type JourneyVersion struct {
	JourneyID   string        `json:"journey_id"             validate:"required"`
	Version     int           `json:"version"                validate:"gte=1"`
	Status      VersionStatus `json:"status"                 validate:"required,oneof=draft published"`
	Schema      Schema        `json:"schema"`
	CreatedAt   time.Time     `json:"created_at"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
}

// IsPublished reports whether the version is live and therefore immutable.
func (v *JourneyVersion) IsPublished() bool {
	return v.Status == VersionStatusPublished
}
