package conditions_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/conditions"
	"github.com/dukex/journeys/pkg/mocks"
	"github.com/dukex/journeys/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func conditionNode(data models.ConditionData) *models.Node {
	return &models.Node{ID: "c1", Type: models.NodeTypeCondition, Data: data}
}

func newEvaluator() (*conditions.Evaluator, *mocks.MockProfileRepository, *mocks.MockEventRepository) {
	profiles := &mocks.MockProfileRepository{}
	events := &mocks.MockEventRepository{}

	evaluator := conditions.NewEvaluator(profiles, events, slog.Default()).
		WithClock(func() time.Time { return fixedNow })

	return evaluator, profiles, events
}

func TestEvaluate_Profile(t *testing.T) {
	profile := &models.Profile{
		UserID: "u1",
		Attributes: map[string]any{
			"risk_profile": "aggressive",
			"tags":         []any{"a", "b"},
			"finance": map[string]any{
				"income": float64(85000),
			},
		},
	}

	tests := []struct {
		name string
		data models.ConditionData
		want bool
	}{
		{
			name: "risk profile equals",
			data: models.ConditionData{Type: models.ConditionKindProfile, Field: "risk_profile", Operator: "equals", Value: "aggressive"},
			want: true,
		},
		{
			name: "risk profile equals other value",
			data: models.ConditionData{Type: models.ConditionKindProfile, Field: "risk_profile", Operator: "equals", Value: "moderate"},
			want: false,
		},
		{
			name: "list contains",
			data: models.ConditionData{Type: models.ConditionKindProfile, Field: "tags", Operator: "contains", Value: "a"},
			want: true,
		},
		{
			name: "nested path",
			data: models.ConditionData{Type: models.ConditionKindProfile, Field: "finance.income", Operator: "greater_than", Value: float64(50000)},
			want: true,
		},
		{
			name: "missing field",
			data: models.ConditionData{Type: models.ConditionKindProfile, Field: "finance.debt", Operator: "exists"},
			want: false,
		},
		{
			name: "missing nested field compares as zero",
			data: models.ConditionData{Type: models.ConditionKindProfile, Field: "finance.debt", Operator: "less_than", Value: float64(10)},
			want: true,
		},
		{
			name: "unknown operator",
			data: models.ConditionData{Type: models.ConditionKindProfile, Field: "risk_profile", Operator: "like", Value: "aggressive"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, profiles, _ := newEvaluator()
			profiles.On("LatestProfile", mock.Anything, "u1").Return(profile, nil).Once()

			assert.Equal(t, tt.want, evaluator.Evaluate(context.Background(), "u1", conditionNode(tt.data)))
			profiles.AssertExpectations(t)
		})
	}
}

func TestEvaluate_MissingProfile(t *testing.T) {
	evaluator, profiles, _ := newEvaluator()
	profiles.On("LatestProfile", mock.Anything, "u1").Return(nil, nil).Twice()

	exists := models.ConditionData{Field: "risk_profile", Operator: "exists"}
	notExists := models.ConditionData{Field: "risk_profile", Operator: "not_exists"}

	assert.False(t, evaluator.Evaluate(context.Background(), "u1", conditionNode(exists)))
	assert.True(t, evaluator.Evaluate(context.Background(), "u1", conditionNode(notExists)))
}

func TestEvaluate_ProfileStoreError(t *testing.T) {
	evaluator, profiles, _ := newEvaluator()
	profiles.On("LatestProfile", mock.Anything, "u1").Return(nil, errors.New("timeout")).Once()

	data := models.ConditionData{Field: "risk_profile", Operator: "not_exists"}

	assert.False(t, evaluator.Evaluate(context.Background(), "u1", conditionNode(data)))
}

func TestEvaluate_Behavior(t *testing.T) {
	t.Run("event inside window", func(t *testing.T) {
		evaluator, _, events := newEvaluator()
		events.On("RecentEvents", mock.Anything, "u1", "deposit", fixedNow.Add(-15*time.Minute), 1).
			Return([]*models.Event{{EventType: "deposit"}}, nil).Once()

		data := models.ConditionData{Type: models.ConditionKindBehavior, EventType: "deposit", WithinMinutes: 15}

		assert.True(t, evaluator.Evaluate(context.Background(), "u1", conditionNode(data)))
		events.AssertExpectations(t)
	})

	t.Run("no event uses default window", func(t *testing.T) {
		evaluator, _, events := newEvaluator()
		events.On("RecentEvents", mock.Anything, "u1", "deposit", fixedNow.Add(-models.DefaultBehaviorWindow), 1).
			Return([]*models.Event{}, nil).Once()

		data := models.ConditionData{Type: models.ConditionKindBehavior, EventType: "deposit"}

		assert.False(t, evaluator.Evaluate(context.Background(), "u1", conditionNode(data)))
		events.AssertExpectations(t)
	})

	t.Run("store error", func(t *testing.T) {
		evaluator, _, events := newEvaluator()
		events.On("RecentEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("boom")).Once()

		data := models.ConditionData{Type: models.ConditionKindBehavior, EventType: "deposit"}

		assert.False(t, evaluator.Evaluate(context.Background(), "u1", conditionNode(data)))
	})
}

func TestEvaluate_UnknownKindAndNonCondition(t *testing.T) {
	evaluator, profiles, events := newEvaluator()

	assert.False(t, evaluator.Evaluate(context.Background(), "u1", conditionNode(models.ConditionData{Type: "segment"})))
	assert.False(t, evaluator.Evaluate(context.Background(), "u1", &models.Node{ID: "g", Type: models.NodeTypeGoal, Data: models.GoalData{}}))

	profiles.AssertNotCalled(t, "LatestProfile", mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "RecentEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
