package subscriptions

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

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	localSub := func() *types.Subscription {
		return &types.Subscription{
			ID:                   uuid.New(),
			UserID:               userID,
			StripeSubscriptionID: "sub_123",
			Status:               types.SubscriptionStatusActive,
		}
	}

	newService := func(repo *MockSubscriptionRepo, users *MockUserAccounts, sw *MockSuggestionWriter, pub *MockPublisher) *WebhookServiceImpl {
		return NewWebhookServiceImpl(repo, users, sw, pub, slog.Default())
	}

	t.Run("payment succeeded activates and publishes the change", func(t *testing.T) {
		repo := new(MockSubscriptionRepo)
		users := new(MockUserAccounts)
		pub := new(MockPublisher)
		svc := newService(repo, users, new(MockSuggestionWriter), pub)

		repo.On("GetByProviderID", mock.Anything, "sub_123").Return(localSub(), nil)
		repo.On("MarkActive", mock.Anything, "sub_123", mock.AnythingOfType("time.Time")).Return(nil)
		users.On("GetUser", mock.Anything, userID).Return(&types.User{ID: userID, SubscriptionStatus: types.UserSubscriptionNone}, nil)
		users.On("SetSubscriptionStatus", mock.Anything, userID, types.UserSubscriptionActive).Return(nil)
		pub.On("UserChanged", mock.Anything, mock.MatchedBy(func(after *types.User) bool {
			return after.SubscriptionStatus == types.UserSubscriptionActive
		})).Return()

		err := svc.HandleEvent(ctx, types.BillingEvent{
			ID:             "evt_1",
			Type:           types.BillingEventPaymentSucceeded,
			SubscriptionID: "sub_123",
		})
		require.NoError(t, err)
		repo.AssertExpectations(t)
		users.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("re-delivery applies the same overwrite", func(t *testing.T) {
		repo := new(MockSubscriptionRepo)
		users := new(MockUserAccounts)
		pub := new(MockPublisher)
		svc := newService(repo, users, new(MockSuggestionWriter), pub)

		repo.On("GetByProviderID", mock.Anything, "sub_123").Return(localSub(), nil)
		repo.On("MarkActive", mock.Anything, "sub_123", mock.AnythingOfType("time.Time")).Return(nil)
		users.On("GetUser", mock.Anything, userID).Return(&types.User{ID: userID}, nil)
		users.On("SetSubscriptionStatus", mock.Anything, userID, types.UserSubscriptionActive).Return(nil)
		pub.On("UserChanged", mock.Anything, mock.Anything).Return()

		ev := types.BillingEvent{ID: "evt_1", Type: types.BillingEventPaymentSucceeded, SubscriptionID: "sub_123"}
		require.NoError(t, svc.HandleEvent(ctx, ev))
		require.NoError(t, svc.HandleEvent(ctx, ev))
		repo.AssertNumberOfCalls(t, "MarkActive", 2)
		users.AssertNumberOfCalls(t, "SetSubscriptionStatus", 2)
	})

	t.Run("events for unknown subscriptions are acknowledged without mutation", func(t *testing.T) {
		repo := new(MockSubscriptionRepo)
		users := new(MockUserAccounts)
		svc := newService(repo, users, new(MockSuggestionWriter), new(MockPublisher))

		repo.On("GetByProviderID", mock.Anything, "sub_missing").Return(nil, types.ErrNotFound)

		err := svc.HandleEvent(ctx, types.BillingEvent{
			ID:             "evt_2",
			Type:           types.BillingEventSubscriptionUpdated,
			SubscriptionID: "sub_missing",
			Status:         "active",
		})
		assert.NoError(t, err)
		repo.AssertNotCalled(t, "UpdateStatusAndPeriod", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		users.AssertNotCalled(t, "SetSubscriptionStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("payment failure raises advice without touching state", func(t *testing.T) {
		repo := new(MockSubscriptionRepo)
		users := new(MockUserAccounts)
		sw := new(MockSuggestionWriter)
		svc := newService(repo, users, sw, new(MockPublisher))

		repo.On("GetByProviderID", mock.Anything, "sub_123").Return(localSub(), nil)
		sw.On("Append", mock.Anything, userID, types.CategoryEfficiency, mock.Anything, mock.Anything, 9).Return(nil)

		err := svc.HandleEvent(ctx, types.BillingEvent{
			ID:             "evt_3",
			Type:           types.BillingEventPaymentFailed,
			SubscriptionID: "sub_123",
		})
		require.NoError(t, err)
		sw.AssertExpectations(t)
		users.AssertNotCalled(t, "SetSubscriptionStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("subscription update overwrites only the projection row", func(t *testing.T) {
		repo := new(MockSubscriptionRepo)
		users := new(MockUserAccounts)
		pub := new(MockPublisher)
		svc := newService(repo, users, new(MockSuggestionWriter), pub)

		start := time.Now()
		end := start.Add(30 * 24 * time.Hour)
		repo.On("GetByProviderID", mock.Anything, "sub_123").Return(localSub(), nil)
		repo.On("UpdateStatusAndPeriod", mock.Anything, "sub_123", "past_due", start, end, mock.AnythingOfType("time.Time")).Return(nil)

		err := svc.HandleEvent(ctx, types.BillingEvent{
			ID:             "evt_4",
			Type:           types.BillingEventSubscriptionUpdated,
			SubscriptionID: "sub_123",
			Status:         "past_due",
			PeriodStart:    start,
			PeriodEnd:      end,
		})
		require.NoError(t, err)
		repo.AssertExpectations(t)
		users.AssertNotCalled(t, "SetSubscriptionStatus", mock.Anything, mock.Anything, mock.Anything)
		pub.AssertNotCalled(t, "UserChanged", mock.Anything, mock.Anything)
	})

	t.Run("subscription deletion cancels locally and publishes the change", func(t *testing.T) {
		repo := new(MockSubscriptionRepo)
		users := new(MockUserAccounts)
		pub := new(MockPublisher)
		svc := newService(repo, users, new(MockSuggestionWriter), pub)

		repo.On("GetByProviderID", mock.Anything, "sub_123").Return(localSub(), nil)
		repo.On("MarkCanceled", mock.Anything, "sub_123", mock.AnythingOfType("time.Time")).Return(nil)
		users.On("GetUser", mock.Anything, userID).Return(&types.User{ID: userID, SubscriptionStatus: types.UserSubscriptionActive}, nil)
		users.On("SetSubscriptionStatus", mock.Anything, userID, types.UserSubscriptionCanceled).Return(nil)
		pub.On("UserChanged", mock.Anything, mock.Anything).Return()

		err := svc.HandleEvent(ctx, types.BillingEvent{
			ID:             "evt_5",
			Type:           types.BillingEventSubscriptionDeleted,
			SubscriptionID: "sub_123",
		})
		require.NoError(t, err)
		pub.AssertExpectations(t)
	})

	t.Run("unhandled event types are acknowledged", func(t *testing.T) {
		repo := new(MockSubscriptionRepo)
		svc := newService(repo, new(MockUserAccounts), new(MockSuggestionWriter), new(MockPublisher))

		err := svc.HandleEvent(ctx, types.BillingEvent{
			ID:           "evt_6",
			Type:         types.BillingEventUnknown,
			ProviderType: "charge.refunded",
		})
		assert.NoError(t, err)
		repo.AssertNotCalled(t, "GetByProviderID", mock.Anything, mock.Anything)
	})
}
