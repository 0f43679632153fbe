package activity

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/atoyama/workmate-api/internal/types"
)

type MockSuggestionWriter struct {
	mock.Mock
}

func (m *MockSuggestionWriter) Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error {
	args := m.Called(ctx, userID, category, title, content, priority)
	return args.Error(0)
}

func TestOnUserChanged(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	userAt := func(lastLogin time.Time, status types.UserSubscriptionStatus) *types.User {
		return &types.User{ID: userID, LastLoginAt: &lastLogin, SubscriptionStatus: status}
	}

	t.Run("week-long absence raises a priority-8 welcome back", func(t *testing.T) {
		sw := new(MockSuggestionWriter)
		p := NewProcessor(sw, slog.Default())

		now := time.Now()
		sw.On("Append", mock.Anything, userID, types.CategoryFeature, mock.Anything, mock.Anything, 8).Return(nil)

		err := p.OnUserChanged(ctx,
			userAt(now.Add(-8*24*time.Hour), types.UserSubscriptionNone),
			userAt(now, types.UserSubscriptionNone))
		require.NoError(t, err)
		sw.AssertExpectations(t)
	})

	t.Run("day-long absence raises a priority-6 check-in", func(t *testing.T) {
		sw := new(MockSuggestionWriter)
		p := NewProcessor(sw, slog.Default())

		now := time.Now()
		sw.On("Append", mock.Anything, userID, types.CategoryEfficiency, mock.Anything, mock.Anything, 6).Return(nil)

		err := p.OnUserChanged(ctx,
			userAt(now.Add(-36*time.Hour), types.UserSubscriptionNone),
			userAt(now, types.UserSubscriptionNone))
		require.NoError(t, err)
		sw.AssertExpectations(t)
	})

	t.Run("short gaps stay quiet", func(t *testing.T) {
		sw := new(MockSuggestionWriter)
		p := NewProcessor(sw, slog.Default())

		now := time.Now()
		err := p.OnUserChanged(ctx,
			userAt(now.Add(-2*time.Hour), types.UserSubscriptionNone),
			userAt(now, types.UserSubscriptionNone))
		require.NoError(t, err)
		sw.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("activation raises a priority-7 suggestion", func(t *testing.T) {
		sw := new(MockSuggestionWriter)
		p := NewProcessor(sw, slog.Default())

		now := time.Now()
		sw.On("Append", mock.Anything, userID, types.CategoryFeature, mock.Anything, mock.Anything, 7).Return(nil)

		err := p.OnUserChanged(ctx,
			userAt(now, types.UserSubscriptionNone),
			userAt(now, types.UserSubscriptionActive))
		require.NoError(t, err)
		sw.AssertExpectations(t)
	})

	t.Run("cancellation raises a priority-5 suggestion", func(t *testing.T) {
		sw := new(MockSuggestionWriter)
		p := NewProcessor(sw, slog.Default())

		now := time.Now()
		sw.On("Append", mock.Anything, userID, types.CategoryFeature, mock.Anything, mock.Anything, 5).Return(nil)

		err := p.OnUserChanged(ctx,
			userAt(now, types.UserSubscriptionActive),
			userAt(now, types.UserSubscriptionCanceled))
		require.NoError(t, err)
		sw.AssertExpectations(t)
	})

	t.Run("unchanged status stays quiet", func(t *testing.T) {
		sw := new(MockSuggestionWriter)
		p := NewProcessor(sw, slog.Default())

		now := time.Now()
		err := p.OnUserChanged(ctx,
			userAt(now, types.UserSubscriptionActive),
			userAt(now, types.UserSubscriptionActive))
		require.NoError(t, err)
		sw.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOnTaskCreated(t *testing.T) {
	ctx := context.Background()
	assignee := uuid.New()

	sw := new(MockSuggestionWriter)
	p := NewProcessor(sw, slog.Default())

	sw.On("Append", mock.Anything, assignee, types.CategoryEfficiency, mock.Anything, mock.Anything, 6).Return(nil)
	sw.On("Append", mock.Anything, assignee, types.CategoryFeature, mock.Anything, mock.Anything, 4).Return(nil)

	err := p.OnTaskCreated(ctx, &types.Task{
		ID:         uuid.New(),
		Title:      "Prepare demo",
		AssignedTo: assignee,
		CreatedBy:  uuid.New(),
	})
	require.NoError(t, err)
	sw.AssertExpectations(t)
	assert.Len(t, sw.Calls, 2)
}

func TestDispatcherDetachesFromCaller(t *testing.T) {
	sw := new(MockSuggestionWriter)
	p := NewProcessor(sw, slog.Default())
	d := NewDispatcher(p, slog.Default())

	assignee := uuid.New()
	sw.On("Append", mock.Anything, assignee, types.CategoryEfficiency, mock.Anything, mock.Anything, 6).Return(nil)
	sw.On("Append", mock.Anything, assignee, types.CategoryFeature, mock.Anything, mock.Anything, 4).Return(nil)

	d.TaskCreated(&types.Task{ID: uuid.New(), Title: "x", AssignedTo: assignee})
	d.Wait()

	sw.AssertExpectations(t)
}
