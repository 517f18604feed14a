package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var staleBefore = now.Add(-engine.DefaultClaimTimeout)

func dueTask(id, journeyID string, version int, resumeNodeID string) *models.JourneyTask {
	jc := journeyContext()
	jc.JourneyID = journeyID
	jc.Version = version

	return &models.JourneyTask{
		ID:           id,
		JourneyID:    journeyID,
		Version:      version,
		UserID:       jc.UserID,
		ResumeNodeID: resumeNodeID,
		Context:      jc,
		RunAt:        now.Add(-time.Minute),
		Status:       models.TaskStatusPending,
	}
}

func failedWith(message string) any {
	return mock.MatchedBy(func(patch models.TaskPatch) bool {
		return patch.Status != nil && *patch.Status == models.TaskStatusFailed &&
			patch.LastError != nil && *patch.LastError == message
	})
}

func completed() any {
	return mock.MatchedBy(func(patch models.TaskPatch) bool {
		return patch.Status != nil && *patch.Status == models.TaskStatusCompleted
	})
}

func TestProcessDueTasks_IsolatesTasks(t *testing.T) {
	f := newFixture()

	tasks := []*models.JourneyTask{
		dueTask("task-1", "j1", 1, "a1"),
		dueTask("task-2", "j2", 7, "a1"),
		dueTask("task-3", "j1", 1, "a2"),
	}

	version := publishedVersion("j1", 1,
		[]*models.Node{action("a1"), action("a2")},
		[]*models.Edge{newEdge("a1", "a2", "")},
	)

	f.tasks.On("DueBefore", mock.Anything, now, staleBefore, engine.DefaultSweepLimit).Return(tasks, nil).Once()
	f.tasks.On("Claim", mock.Anything, mock.Anything, now, staleBefore).Return(true, nil).Times(3)
	f.journeys.On("PublishedVersion", mock.Anything, "j1", 1).Return(version, nil)
	f.journeys.On("PublishedVersion", mock.Anything, "j2", 7).Return(nil, nil)

	f.tasks.On("Update", mock.Anything, "task-1", completed()).Return(nil).Once()
	f.tasks.On("Update", mock.Anything, "task-2", failedWith("version not found")).Return(nil).Once()
	f.tasks.On("Update", mock.Anything, "task-3", completed()).Return(nil).Once()

	result, err := f.engine().ProcessDueTasks(context.Background(), 0)
	require.NoError(t, err)

	f.tasks.AssertExpectations(t)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, models.TaskStatusFailed, result.Tasks[1].Status)
	assert.Equal(t, "version not found", result.Tasks[1].Error)

	// task-1 resumes at a1 and runs a2 after it, task-3 resumes at a2.
	assert.Equal(t, []string{"a1", "a2", "a2"}, f.executor.executed)
}

func TestProcessDueTasks_TraversalErrorFailsTask(t *testing.T) {
	f := newFixture()

	task := dueTask("task-1", "j1", 1, "w1")
	version := publishedVersion("j1", 1,
		[]*models.Node{newNode("w1", models.WaitData{DelaySeconds: 30}), action("a1")},
		[]*models.Edge{newEdge("w1", "a1", "")},
	)

	f.tasks.On("DueBefore", mock.Anything, now, staleBefore, 10).Return([]*models.JourneyTask{task}, nil).Once()
	f.tasks.On("Claim", mock.Anything, "task-1", now, staleBefore).Return(true, nil).Once()
	f.journeys.On("PublishedVersion", mock.Anything, "j1", 1).Return(version, nil)
	f.tasks.On("Create", mock.Anything, mock.Anything).Return(errors.New("quota exceeded")).Once()
	f.tasks.On("Update", mock.Anything, "task-1", mock.MatchedBy(func(patch models.TaskPatch) bool {
		return *patch.Status == models.TaskStatusFailed && assert.Contains(t, *patch.LastError, "quota exceeded")
	})).Return(nil).Once()

	result, err := f.engine().ProcessDueTasks(context.Background(), 10)
	require.NoError(t, err)

	f.tasks.AssertExpectations(t)
	assert.Equal(t, 1, result.Failed)
}

func TestProcessDueTasks_PanicFailsOnlyThatTask(t *testing.T) {
	f := newFixture()
	f.executor.panicOn = "explode"

	version := publishedVersion("j1", 1, []*models.Node{action("explode"), action("fine")}, nil)

	f.tasks.On("DueBefore", mock.Anything, now, staleBefore, engine.DefaultSweepLimit).Return([]*models.JourneyTask{
		dueTask("task-1", "j1", 1, "explode"),
		dueTask("task-2", "j1", 1, "fine"),
	}, nil).Once()
	f.tasks.On("Claim", mock.Anything, mock.Anything, now, staleBefore).Return(true, nil)
	f.journeys.On("PublishedVersion", mock.Anything, "j1", 1).Return(version, nil)
	f.tasks.On("Update", mock.Anything, "task-1", failedWith("traversal panic: provider exploded")).Return(nil).Once()
	f.tasks.On("Update", mock.Anything, "task-2", completed()).Return(nil).Once()

	result, err := f.engine().ProcessDueTasks(context.Background(), -1)
	require.NoError(t, err)

	f.tasks.AssertExpectations(t)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 1, result.Failed)
}

func TestProcessDueTasks_LostClaimIsSkipped(t *testing.T) {
	f := newFixture()

	f.tasks.On("DueBefore", mock.Anything, now, staleBefore, engine.DefaultSweepLimit).Return([]*models.JourneyTask{
		dueTask("task-1", "j1", 1, "a1"),
	}, nil).Once()
	f.tasks.On("Claim", mock.Anything, "task-1", now, staleBefore).Return(false, nil).Once()

	result, err := f.engine().ProcessDueTasks(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Processed)
	f.journeys.AssertNotCalled(t, "PublishedVersion", mock.Anything, mock.Anything, mock.Anything)
	f.tasks.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.executor.executed)
}

func TestProcessDueTasks_WithoutClaiming(t *testing.T) {
	f := newFixture()

	f.tasks.On("DueBefore", mock.Anything, now, staleBefore, engine.DefaultSweepLimit).Return([]*models.JourneyTask{
		dueTask("task-1", "j1", 1, "a1"),
	}, nil).Once()
	f.journeys.On("PublishedVersion", mock.Anything, "j1", 1).Return(publishedVersion("j1", 1, []*models.Node{action("a1")}, nil), nil)
	f.tasks.On("Update", mock.Anything, "task-1", completed()).Return(nil).Once()

	result, err := f.engine(engine.WithTaskClaiming(false)).ProcessDueTasks(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Completed)
	f.tasks.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDueTasks_ListFailure(t *testing.T) {
	f := newFixture()
	f.tasks.On("DueBefore", mock.Anything, now, staleBefore, engine.DefaultSweepLimit).Return(nil, errors.New("timeout")).Once()

	result, err := f.engine().ProcessDueTasks(context.Background(), 0)

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestProcessDueTasks_TakesOverExpiredClaim(t *testing.T) {
	f := newFixture()

	abandoned := dueTask("task-1", "j1", 1, "a1")
	abandoned.Status = models.TaskStatusRunning
	abandoned.UpdatedAt = now.Add(-48 * time.Hour)

	f.tasks.On("DueBefore", mock.Anything, now, staleBefore, engine.DefaultSweepLimit).Return([]*models.JourneyTask{abandoned}, nil).Once()
	f.tasks.On("Claim", mock.Anything, "task-1", now, staleBefore).Return(true, nil).Once()
	f.journeys.On("PublishedVersion", mock.Anything, "j1", 1).Return(publishedVersion("j1", 1, []*models.Node{action("a1")}, nil), nil)
	f.tasks.On("Update", mock.Anything, "task-1", completed()).Return(nil).Once()

	result, err := f.engine().ProcessDueTasks(context.Background(), 0)
	require.NoError(t, err)

	f.tasks.AssertExpectations(t)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, []string{"a1"}, f.executor.executed)
}

func TestProcessDueTasks_ClaimTimeoutOption(t *testing.T) {
	f := newFixture()
	shortLease := now.Add(-time.Minute)

	f.tasks.On("DueBefore", mock.Anything, now, shortLease, engine.DefaultSweepLimit).Return([]*models.JourneyTask{}, nil).Once()

	result, err := f.engine(engine.WithClaimTimeout(time.Minute)).ProcessDueTasks(context.Background(), 0)
	require.NoError(t, err)

	f.tasks.AssertExpectations(t)
	assert.Equal(t, 0, result.Processed)
}

func TestProcessDueTasks_WaitWithoutSuccessorCompletes(t *testing.T) {
	f := newFixture()

	f.tasks.On("DueBefore", mock.Anything, now, staleBefore, engine.DefaultSweepLimit).Return([]*models.JourneyTask{
		dueTask("task-1", "j1", 1, ""),
	}, nil).Once()
	f.tasks.On("Claim", mock.Anything, "task-1", now, staleBefore).Return(true, nil).Once()
	f.journeys.On("PublishedVersion", mock.Anything, "j1", 1).Return(publishedVersion("j1", 1, []*models.Node{action("a1")}, nil), nil)
	f.tasks.On("Update", mock.Anything, "task-1", completed()).Return(nil).Once()

	result, err := f.engine().ProcessDueTasks(context.Background(), 0)
	require.NoError(t, err)

	f.tasks.AssertExpectations(t)
	assert.Equal(t, 1, result.Completed)
	assert.Empty(t, f.executor.executed)
}
