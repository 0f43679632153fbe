package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/atoyama/workmate-api/internal/billing"
	"github.com/atoyama/workmate-api/internal/types"
)

type MockSubscriptionRepo struct {
	mock.Mock
}

func (m *MockSubscriptionRepo) CreateSubscription(ctx context.Context, sub types.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) GetByProviderID(ctx context.Context, providerSubID string) (*types.Subscription, error) {
	args := m.Called(ctx, providerSubID)
	sub, _ := args.Get(0).(*types.Subscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptionRepo) MarkActive(ctx context.Context, providerSubID string, paidAt time.Time) error {
	args := m.Called(ctx, providerSubID, paidAt)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) UpdateStatusAndPeriod(ctx context.Context, providerSubID, status string, periodStart, periodEnd, updatedAt time.Time) error {
	args := m.Called(ctx, providerSubID, status, periodStart, periodEnd, updatedAt)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) MarkCanceled(ctx context.Context, providerSubID string, canceledAt time.Time) error {
	args := m.Called(ctx, providerSubID, canceledAt)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) UpdatePlan(ctx context.Context, providerSubID, planID string, updatedAt time.Time) error {
	args := m.Called(ctx, providerSubID, planID, updatedAt)
	return args.Error(0)
}

func (m *MockSubscriptionRepo) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockUserAccounts struct {
	mock.Mock
}

func (m *MockUserAccounts) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockUserAccounts) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	args := m.Called(ctx, userID, customerID)
	return args.Error(0)
}

func (m *MockUserAccounts) SetSubscriptionStatus(ctx context.Context, userID uuid.UUID, status types.UserSubscriptionStatus) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

func (m *MockUserAccounts) SetSubscriptionPlan(ctx context.Context, userID uuid.UUID, plan string) error {
	args := m.Called(ctx, userID, plan)
	return args.Error(0)
}

type MockBillingClient struct {
	mock.Mock
}

func (m *MockBillingClient) CreateCustomer(ctx context.Context, email string, userID string) (string, error) {
	args := m.Called(ctx, email, userID)
	return args.String(0), args.Error(1)
}

func (m *MockBillingClient) CreateSubscription(ctx context.Context, customerID, priceID string) (*billing.CreatedSubscription, error) {
	args := m.Called(ctx, customerID, priceID)
	created, _ := args.Get(0).(*billing.CreatedSubscription)
	return created, args.Error(1)
}

func (m *MockBillingClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockBillingClient) ChangePlan(ctx context.Context, subscriptionID, newPriceID string) error {
	args := m.Called(ctx, subscriptionID, newPriceID)
	return args.Error(0)
}

type MockSuggestionWriter struct {
	mock.Mock
}

func (m *MockSuggestionWriter) Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error {
	args := m.Called(ctx, userID, category, title, content, priority)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) UserChanged(before, after *types.User) {
	m.Called(before, after)
}
