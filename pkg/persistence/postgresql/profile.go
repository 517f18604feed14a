package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/goccy/go-json"
)

// ProfileRepository reads and stores psychographic profile snapshots.
type ProfileRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// LatestProfile returns the most recently analyzed profile, or nil.
func (r *ProfileRepository) LatestProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT id, user_id, analyzed_at, attributes
		FROM user_profiles
		WHERE user_id = $1
		ORDER BY analyzed_at DESC
		LIMIT 1
	`

	var (
		profile    models.Profile
		attributes []byte
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&profile.ID, &profile.UserID, &profile.AnalyzedAt, &attributes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query profile of user %s: %w", userID, err)
	}

	if err := json.Unmarshal(attributes, &profile.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile attributes: %w", err)
	}

	return &profile, nil
}

// SaveProfile stores a profile snapshot.
func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = newID()
	}

	if profile.AnalyzedAt.IsZero() {
		profile.AnalyzedAt = time.Now().UTC()
	}

	attributes, err := jsonb(profile.Attributes)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_profiles (id, user_id, analyzed_at, attributes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			analyzed_at = EXCLUDED.analyzed_at
		  , attributes = EXCLUDED.attributes
	`, profile.ID, profile.UserID, profile.AnalyzedAt, attributes)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", profile.ID, err)
	}

	return nil
}

// EventRepository reads and stores behavioral events.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// RecentEvents returns events of eventType at or after since, newest first.
func (r *EventRepository) RecentEvents(ctx context.Context, userID, eventType string, since time.Time, limit int) ([]*models.Event, error) {
	query := `
		SELECT id, user_id, event_type, session_id, properties, occurred_at
		FROM user_events
		WHERE user_id = $1 AND event_type = $2 AND occurred_at >= $3
		ORDER BY occurred_at DESC
	`

	args := []any{userID, eventType, since}
	if limit > 0 {
		query += " LIMIT $4"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events of user %s: %w", userID, err)
	}
	defer closeRows(ctx, r.logger, rows)

	events := make([]*models.Event, 0)

	for rows.Next() {
		var (
			event      models.Event
			properties []byte
		)

		err := rows.Scan(&event.ID, &event.UserID, &event.EventType, &event.SessionID, &properties, &event.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if err := json.Unmarshal(properties, &event.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event properties: %w", err)
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// SaveEvent stores a behavioral event. Events are append-only.
func (r *EventRepository) SaveEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = newID()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	properties, err := jsonb(event.Properties)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_events (id, user_id, event_type, session_id, properties, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, event.UserID, event.EventType, event.SessionID, properties, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", event.ID, err)
	}

	return nil
}
