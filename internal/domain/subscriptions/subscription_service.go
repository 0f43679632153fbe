package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atoyama/workmate-api/internal/billing"
	"github.com/atoyama/workmate-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// UserAccounts is the slice of the user repository the subscription
// flows mutate. The user row and the subscription row are written
// separately; there is no cross-table transaction.
type UserAccounts interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	SetSubscriptionStatus(ctx context.Context, userID uuid.UUID, status types.UserSubscriptionStatus) error
	SetSubscriptionPlan(ctx context.Context, userID uuid.UUID, plan string) error
}

// ChangePublisher receives before/after snapshots of a mutated user
// document, mirroring a store-side change trigger.
type ChangePublisher interface {
	UserChanged(before, after *types.User)
}

// CheckoutResult carries what the client needs to confirm payment.
type CheckoutResult struct {
	SubscriptionID string `json:"subscription_id"`
	ClientSecret   string `json:"client_secret"`
	Status         string `json:"status"`
}

type Service interface {
	// Checkout creates a provider subscription for the user, stores the
	// local projection and returns the payment confirmation secret.
	Checkout(ctx context.Context, userID uuid.UUID, priceID string) (*CheckoutResult, error)
	// Cancel cancels the caller's subscription at the provider and
	// mirrors the cancellation locally.
	Cancel(ctx context.Context, userID uuid.UUID, providerSubID string) error
	// ChangePlan swaps the subscription's price at the provider.
	ChangePlan(ctx context.Context, userID uuid.UUID, providerSubID, newPriceID string) error
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	users       UserAccounts
	billing     billing.Client
	suggestions SuggestionWriter
	publisher   ChangePublisher
}

func NewServiceImpl(repo Repository, users UserAccounts, billingClient billing.Client, suggestions SuggestionWriter, publisher ChangePublisher, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		repo:        repo,
		users:       users,
		billing:     billingClient,
		suggestions: suggestions,
		publisher:   publisher,
	}
}

func (s *ServiceImpl) Checkout(ctx context.Context, userID uuid.UUID, priceID string) (*CheckoutResult, error) {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "Checkout", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("subscription.price_id", priceID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Checkout"), slog.String("userID", userID.String()))

	if priceID == "" {
		span.SetStatus(codes.Error, "Price id required")
		return nil, fmt.Errorf("price id is required: %w", types.ErrBadRequest)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	customerID := ""
	if user.StripeCustomerID != nil {
		customerID = *user.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = s.billing.CreateCustomer(ctx, user.Email, userID.String())
		if err != nil {
			l.ErrorContext(ctx, "Failed to create billing customer", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Customer creation failed")
			return nil, fmt.Errorf("failed to create billing customer: %w", err)
		}
		if err := s.users.SetStripeCustomerID(ctx, userID, customerID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to store customer id")
			return nil, fmt.Errorf("failed to store customer id: %w", err)
		}
	}

	created, err := s.billing.CreateSubscription(ctx, customerID, priceID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create billing subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Subscription creation failed")
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	now := time.Now()
	sub := types.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		PlanID:               priceID,
		Status:               created.Status,
		StripeSubscriptionID: created.ID,
		CurrentPeriodStart:   created.PeriodStart,
		CurrentPeriodEnd:     created.PeriodEnd,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store subscription")
		return nil, fmt.Errorf("failed to store subscription: %w", err)
	}

	// The user stays on their current status until the provider confirms
	// payment; activation arrives through the payment_succeeded webhook.
	if err := s.suggestions.Append(ctx, userID, types.CategoryFeature,
		"Your subscription is set up!",
		"Checkout is ready to go. Once your payment is confirmed, premium reports and advanced task views unlock automatically.",
		7,
	); err != nil {
		l.WarnContext(ctx, "Failed to append checkout suggestion", slog.Any("error", err))
	}

	l.InfoContext(ctx, "Subscription created", slog.String("subscriptionID", created.ID))
	span.SetStatus(codes.Ok, "Subscription created")
	return &CheckoutResult{
		SubscriptionID: created.ID,
		ClientSecret:   created.ClientSecret,
		Status:         created.Status,
	}, nil
}

func (s *ServiceImpl) Cancel(ctx context.Context, userID uuid.UUID, providerSubID string) error {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "Cancel", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("subscription.provider_id", providerSubID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Cancel"), slog.String("userID", userID.String()))

	if providerSubID == "" {
		span.SetStatus(codes.Error, "Subscription id required")
		return fmt.Errorf("subscription id is required: %w", types.ErrBadRequest)
	}

	sub, err := s.repo.GetByProviderID(ctx, providerSubID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Subscription lookup failed")
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub.UserID != userID {
		span.SetStatus(codes.Error, "Caller does not own subscription")
		return fmt.Errorf("subscription %s belongs to another user: %w", providerSubID, types.ErrForbidden)
	}

	if err := s.billing.CancelSubscription(ctx, providerSubID); err != nil {
		l.ErrorContext(ctx, "Failed to cancel billing subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Provider cancel failed")
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	now := time.Now()
	if err := s.repo.MarkCanceled(ctx, providerSubID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store cancellation")
		return fmt.Errorf("failed to store cancellation: %w", err)
	}

	before, err := s.users.GetUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return fmt.Errorf("failed to load user: %w", err)
	}
	if err := s.users.SetSubscriptionStatus(ctx, userID, types.UserSubscriptionCanceled); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update user status")
		return fmt.Errorf("failed to update user subscription status: %w", err)
	}

	after := *before
	after.SubscriptionStatus = types.UserSubscriptionCanceled
	s.publisher.UserChanged(before, &after)

	l.InfoContext(ctx, "Subscription canceled", slog.String("subscriptionID", providerSubID))
	span.SetStatus(codes.Ok, "Subscription canceled")
	return nil
}

func (s *ServiceImpl) ChangePlan(ctx context.Context, userID uuid.UUID, providerSubID, newPriceID string) error {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "ChangePlan", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("subscription.provider_id", providerSubID),
		attribute.String("subscription.price_id", newPriceID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ChangePlan"), slog.String("userID", userID.String()))

	if providerSubID == "" || newPriceID == "" {
		span.SetStatus(codes.Error, "Subscription and price ids required")
		return fmt.Errorf("subscription id and price id are required: %w", types.ErrBadRequest)
	}

	sub, err := s.repo.GetByProviderID(ctx, providerSubID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Subscription lookup failed")
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub.UserID != userID {
		span.SetStatus(codes.Error, "Caller does not own subscription")
		return fmt.Errorf("subscription %s belongs to another user: %w", providerSubID, types.ErrForbidden)
	}

	if err := s.billing.ChangePlan(ctx, providerSubID, newPriceID); err != nil {
		l.ErrorContext(ctx, "Failed to change billing plan", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Provider plan change failed")
		return fmt.Errorf("failed to change plan: %w", err)
	}

	now := time.Now()
	if err := s.repo.UpdatePlan(ctx, providerSubID, newPriceID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store plan change")
		return fmt.Errorf("failed to store plan change: %w", err)
	}
	if err := s.users.SetSubscriptionPlan(ctx, userID, newPriceID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update user plan")
		return fmt.Errorf("failed to update user subscription plan: %w", err)
	}

	l.InfoContext(ctx, "Subscription plan changed", slog.String("subscriptionID", providerSubID))
	span.SetStatus(codes.Ok, "Plan changed")
	return nil
}
