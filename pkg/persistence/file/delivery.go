package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// DeliveryRepository handles engagement delivery file operations in deliveries/<id>.json.
type DeliveryRepository struct {
	store *store
}

// Create writes a new delivery and returns it with its generated ID.
func (dr *DeliveryRepository) Create(_ context.Context, delivery *models.EngagementDelivery) (*models.EngagementDelivery, error) {
	created := *delivery
	if created.ID == "" {
		created.ID = newID()
	}

	if err := validateID("delivery", created.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	if created.DeliveryContext == nil {
		created.DeliveryContext = map[string]any{}
	}

	if created.RenderedContent == nil {
		created.RenderedContent = map[string]any{}
	}

	dr.store.mu.Lock()
	defer dr.store.mu.Unlock()

	if err := dr.store.write(dr.path(created.ID), &created); err != nil {
		return nil, err
	}

	return &created, nil
}

// Update sets the status and merges the context patch into the delivery context.
func (dr *DeliveryRepository) Update(_ context.Context, id string, patch models.DeliveryPatch) error {
	if err := validateID("delivery", id); err != nil {
		return err
	}

	dr.store.mu.Lock()
	defer dr.store.mu.Unlock()

	delivery, err := dr.load("Update", id)
	if err != nil {
		return err
	}

	if err := patch.Apply(delivery, time.Now().UTC()); err != nil {
		return persistence.NewTaskError("Update", id, err)
	}

	return dr.store.write(dr.path(id), delivery)
}

// ByID returns the delivery or ErrDeliveryNotFound.
func (dr *DeliveryRepository) ByID(_ context.Context, id string) (*models.EngagementDelivery, error) {
	if err := validateID("delivery", id); err != nil {
		return nil, err
	}

	dr.store.mu.RLock()
	defer dr.store.mu.RUnlock()

	return dr.load("ByID", id)
}

// ByUser returns the deliveries of a user, newest first.
func (dr *DeliveryRepository) ByUser(_ context.Context, userID string) ([]*models.EngagementDelivery, error) {
	dr.store.mu.RLock()
	defer dr.store.mu.RUnlock()

	files, err := dr.store.list(dr.store.path("deliveries"))
	if err != nil {
		return nil, err
	}

	deliveries := make([]*models.EngagementDelivery, 0)

	for _, file := range files {
		var delivery models.EngagementDelivery
		if _, err := dr.store.read(file, &delivery); err != nil {
			return nil, err
		}

		if delivery.UserID == userID {
			deliveries = append(deliveries, &delivery)
		}
	}

	sort.SliceStable(deliveries, func(i, j int) bool {
		return deliveries[i].CreatedAt.After(deliveries[j].CreatedAt)
	})

	return deliveries, nil
}

func (dr *DeliveryRepository) load(op, id string) (*models.EngagementDelivery, error) {
	var delivery models.EngagementDelivery

	found, err := dr.store.read(dr.path(id), &delivery)
	if err != nil {
		return nil, persistence.NewTaskError(op, id, err)
	}

	if !found {
		return nil, persistence.NewTaskError(op, id, persistence.ErrDeliveryNotFound)
	}

	return &delivery, nil
}

func (dr *DeliveryRepository) path(id string) string {
	return dr.store.path("deliveries", id+".json")
}
