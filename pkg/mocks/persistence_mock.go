// Package mocks provides testify mocks for the repository and sender interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockJourneyRepository is a mock implementation of persistence.JourneyRepository interface.
type MockJourneyRepository struct {
	mock.Mock
}

func (m *MockJourneyRepository) ListActive(ctx context.Context) ([]*models.Journey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Journey), args.Error(1)
}

func (m *MockJourneyRepository) PublishedVersion(ctx context.Context, journeyID string, version int) (*models.JourneyVersion, error) {
	args := m.Called(ctx, journeyID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JourneyVersion), args.Error(1)
}

func (m *MockJourneyRepository) Save(ctx context.Context, journey *models.Journey) error {
	args := m.Called(ctx, journey)

	return args.Error(0)
}

func (m *MockJourneyRepository) ByID(ctx context.Context, id string) (*models.Journey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Journey), args.Error(1)
}

func (m *MockJourneyRepository) SaveVersion(ctx context.Context, version *models.JourneyVersion) error {
	args := m.Called(ctx, version)

	return args.Error(0)
}

func (m *MockJourneyRepository) Version(ctx context.Context, journeyID string, version int) (*models.JourneyVersion, error) {
	args := m.Called(ctx, journeyID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JourneyVersion), args.Error(1)
}

func (m *MockJourneyRepository) Versions(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	args := m.Called(ctx, journeyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.JourneyVersion), args.Error(1)
}

// MockProfileRepository is a mock implementation of persistence.ProfileRepository interface.
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) LatestProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) SaveProfile(ctx context.Context, profile *models.Profile) error {
	args := m.Called(ctx, profile)

	return args.Error(0)
}

// MockEventRepository is a mock implementation of persistence.EventRepository interface.
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) RecentEvents(ctx context.Context, userID, eventType string, since time.Time, limit int) ([]*models.Event, error) {
	args := m.Called(ctx, userID, eventType, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Event), args.Error(1)
}

func (m *MockEventRepository) SaveEvent(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

// MockTaskRepository is a mock implementation of persistence.TaskRepository interface.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *models.JourneyTask) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockTaskRepository) Update(ctx context.Context, id string, patch models.TaskPatch) error {
	args := m.Called(ctx, id, patch)

	return args.Error(0)
}

func (m *MockTaskRepository) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	args := m.Called(ctx, id, now, staleBefore)

	return args.Bool(0), args.Error(1)
}

func (m *MockTaskRepository) DueBefore(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.JourneyTask, error) {
	args := m.Called(ctx, now, staleBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.JourneyTask), args.Error(1)
}

func (m *MockTaskRepository) ByID(ctx context.Context, id string) (*models.JourneyTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JourneyTask), args.Error(1)
}

// MockDeliveryRepository is a mock implementation of persistence.DeliveryRepository interface.
type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) Create(ctx context.Context, delivery *models.EngagementDelivery) (*models.EngagementDelivery, error) {
	args := m.Called(ctx, delivery)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.EngagementDelivery), args.Error(1)
}

func (m *MockDeliveryRepository) Update(ctx context.Context, id string, patch models.DeliveryPatch) error {
	args := m.Called(ctx, id, patch)

	return args.Error(0)
}

func (m *MockDeliveryRepository) ByID(ctx context.Context, id string) (*models.EngagementDelivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.EngagementDelivery), args.Error(1)
}

func (m *MockDeliveryRepository) ByUser(ctx context.Context, userID string) ([]*models.EngagementDelivery, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.EngagementDelivery), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Journeys   *MockJourneyRepository
	Profiles   *MockProfileRepository
	Events     *MockEventRepository
	Tasks      *MockTaskRepository
	Deliveries *MockDeliveryRepository
}

// NewMockPersistence creates a new MockPersistence with all mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Journeys:   &MockJourneyRepository{},
		Profiles:   &MockProfileRepository{},
		Events:     &MockEventRepository{},
		Tasks:      &MockTaskRepository{},
		Deliveries: &MockDeliveryRepository{},
	}
}

func (m *MockPersistence) JourneyRepository() persistence.JourneyRepository {
	return m.Journeys
}

func (m *MockPersistence) ProfileRepository() persistence.ProfileRepository {
	return m.Profiles
}

func (m *MockPersistence) EventRepository() persistence.EventRepository {
	return m.Events
}

func (m *MockPersistence) TaskRepository() persistence.TaskRepository {
	return m.Tasks
}

func (m *MockPersistence) DeliveryRepository() persistence.DeliveryRepository {
	return m.Deliveries
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
