package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/journeys/pkg/models"
)

// ProfileRepository stores profiles in profiles/<user id>/<profile id>.json.
type ProfileRepository struct {
	store *store
}

// LatestProfile returns the profile with the greatest analyzed_at, or nil.
func (pr *ProfileRepository) LatestProfile(_ context.Context, userID string) (*models.Profile, error) {
	if err := validateID("user", userID); err != nil {
		return nil, err
	}

	pr.store.mu.RLock()
	defer pr.store.mu.RUnlock()

	files, err := pr.store.list(pr.store.path("profiles", userID))
	if err != nil {
		return nil, err
	}

	var latest *models.Profile

	for _, file := range files {
		var profile models.Profile
		if _, err := pr.store.read(file, &profile); err != nil {
			return nil, err
		}

		if latest == nil || profile.AnalyzedAt.After(latest.AnalyzedAt) {
			latest = &profile
		}
	}

	return latest, nil
}

// SaveProfile stores a profile snapshot.
func (pr *ProfileRepository) SaveProfile(_ context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = newID()
	}

	if err := validateID("user", profile.UserID); err != nil {
		return err
	}

	if err := validateID("profile", profile.ID); err != nil {
		return err
	}

	if profile.AnalyzedAt.IsZero() {
		profile.AnalyzedAt = time.Now().UTC()
	}

	pr.store.mu.Lock()
	defer pr.store.mu.Unlock()

	return pr.store.write(pr.store.path("profiles", profile.UserID, profile.ID+".json"), profile)
}

// EventRepository stores events in events/<user id>/<event id>.json.
type EventRepository struct {
	store *store
}

// RecentEvents returns events of eventType that occurred at or after since, newest first.
func (er *EventRepository) RecentEvents(_ context.Context, userID, eventType string, since time.Time, limit int) ([]*models.Event, error) {
	if err := validateID("user", userID); err != nil {
		return nil, err
	}

	er.store.mu.RLock()
	defer er.store.mu.RUnlock()

	files, err := er.store.list(er.store.path("events", userID))
	if err != nil {
		return nil, err
	}

	events := make([]*models.Event, 0)

	for _, file := range files {
		var event models.Event
		if _, err := er.store.read(file, &event); err != nil {
			return nil, err
		}

		if event.EventType == eventType && !event.OccurredAt.Before(since) {
			events = append(events, &event)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.After(events[j].OccurredAt)
	})

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	return events, nil
}

// SaveEvent stores an event. Missing IDs and timestamps are filled in.
func (er *EventRepository) SaveEvent(_ context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = newID()
	}

	if err := validateID("user", event.UserID); err != nil {
		return err
	}

	if err := validateID("event", event.ID); err != nil {
		return err
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	return er.store.write(er.store.path("events", event.UserID, event.ID+".json"), event)
}
