package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atoyama/workmate-api/internal/types"
)

var _ WebhookService = (*WebhookServiceImpl)(nil)

// SuggestionWriter appends an advisory record; append failures never
// fail event processing.
type SuggestionWriter interface {
	Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error
}

// WebhookService applies verified provider events to the local
// projection. Delivery is at-least-once and possibly out of order, so
// every handler is an unconditional overwrite: re-delivery converges to
// the same state. Events for unknown subscriptions are acknowledged
// without mutation.
type WebhookService interface {
	HandleEvent(ctx context.Context, ev types.BillingEvent) error
}

type WebhookServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	users       UserAccounts
	suggestions SuggestionWriter
	publisher   ChangePublisher
}

func NewWebhookServiceImpl(repo Repository, users UserAccounts, suggestions SuggestionWriter, publisher ChangePublisher, logger *slog.Logger) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		logger:      logger,
		repo:        repo,
		users:       users,
		suggestions: suggestions,
		publisher:   publisher,
	}
}

func (s *WebhookServiceImpl) HandleEvent(ctx context.Context, ev types.BillingEvent) error {
	ctx, span := otel.Tracer("WebhookService").Start(ctx, "HandleEvent", trace.WithAttributes(
		attribute.String("billing.event_id", ev.ID),
		attribute.String("billing.event_type", string(ev.Type)),
		attribute.String("subscription.provider_id", ev.SubscriptionID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "HandleEvent"), slog.String("eventType", ev.ProviderType), slog.String("eventID", ev.ID))

	switch ev.Type {
	case types.BillingEventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, l, span, ev)
	case types.BillingEventPaymentFailed:
		return s.handlePaymentFailed(ctx, l, span, ev)
	case types.BillingEventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, l, span, ev)
	case types.BillingEventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, l, span, ev)
	default:
		// Acknowledge so the provider stops retrying.
		l.InfoContext(ctx, "Ignoring unhandled billing event")
		span.SetStatus(codes.Ok, "Event ignored")
		return nil
	}
}

// lookup resolves the provider subscription id to a local row. A miss
// is not an error: the event may concern a subscription created outside
// this system, and acknowledging it keeps the provider from retrying.
func (s *WebhookServiceImpl) lookup(ctx context.Context, l *slog.Logger, ev types.BillingEvent) (*types.Subscription, error) {
	sub, err := s.repo.GetByProviderID(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.WarnContext(ctx, "No local subscription for billing event", slog.String("subscriptionID", ev.SubscriptionID))
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (s *WebhookServiceImpl) handlePaymentSucceeded(ctx context.Context, l *slog.Logger, span trace.Span, ev types.BillingEvent) error {
	sub, err := s.lookup(ctx, l, ev)
	if err != nil || sub == nil {
		return err
	}

	now := time.Now()
	if err := s.repo.MarkActive(ctx, ev.SubscriptionID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to mark subscription active")
		return fmt.Errorf("failed to apply payment success: %w", err)
	}

	before, err := s.users.GetUser(ctx, sub.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return fmt.Errorf("failed to load user: %w", err)
	}
	if err := s.users.SetSubscriptionStatus(ctx, sub.UserID, types.UserSubscriptionActive); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update user status")
		return fmt.Errorf("failed to update user subscription status: %w", err)
	}

	after := *before
	after.SubscriptionStatus = types.UserSubscriptionActive
	s.publisher.UserChanged(before, &after)

	l.InfoContext(ctx, "Payment success applied", slog.String("userID", sub.UserID.String()))
	span.SetStatus(codes.Ok, "Payment success applied")
	return nil
}

// handlePaymentFailed leaves the projection untouched. The provider
// keeps retrying the charge and a later payment_succeeded or
// subscription_updated event settles the state; the only local effect
// is an advisory nudge to the owner.
func (s *WebhookServiceImpl) handlePaymentFailed(ctx context.Context, l *slog.Logger, span trace.Span, ev types.BillingEvent) error {
	sub, err := s.lookup(ctx, l, ev)
	if err != nil || sub == nil {
		return err
	}

	if err := s.suggestions.Append(ctx, sub.UserID, types.CategoryEfficiency,
		"Payment issue detected",
		"Your latest subscription payment did not go through. Please update your payment method to keep your plan active.",
		9,
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to append payment-failure suggestion")
		return fmt.Errorf("failed to append payment-failure suggestion: %w", err)
	}

	l.InfoContext(ctx, "Payment failure applied", slog.String("userID", sub.UserID.String()))
	span.SetStatus(codes.Ok, "Payment failure applied")
	return nil
}

func (s *WebhookServiceImpl) handleSubscriptionUpdated(ctx context.Context, l *slog.Logger, span trace.Span, ev types.BillingEvent) error {
	sub, err := s.lookup(ctx, l, ev)
	if err != nil || sub == nil {
		return err
	}

	// Only the projection row changes here. The user's own status moves
	// on payment and cancellation events, never on period rollovers.
	now := time.Now()
	if err := s.repo.UpdateStatusAndPeriod(ctx, ev.SubscriptionID, ev.Status, ev.PeriodStart, ev.PeriodEnd, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update subscription")
		return fmt.Errorf("failed to apply subscription update: %w", err)
	}

	l.InfoContext(ctx, "Subscription update applied", slog.String("status", ev.Status))
	span.SetStatus(codes.Ok, "Subscription update applied")
	return nil
}

func (s *WebhookServiceImpl) handleSubscriptionDeleted(ctx context.Context, l *slog.Logger, span trace.Span, ev types.BillingEvent) error {
	sub, err := s.lookup(ctx, l, ev)
	if err != nil || sub == nil {
		return err
	}

	now := time.Now()
	if err := s.repo.MarkCanceled(ctx, ev.SubscriptionID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to mark subscription canceled")
		return fmt.Errorf("failed to apply subscription deletion: %w", err)
	}

	before, err := s.users.GetUser(ctx, sub.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return fmt.Errorf("failed to load user: %w", err)
	}
	if err := s.users.SetSubscriptionStatus(ctx, sub.UserID, types.UserSubscriptionCanceled); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update user status")
		return fmt.Errorf("failed to update user subscription status: %w", err)
	}

	after := *before
	after.SubscriptionStatus = types.UserSubscriptionCanceled
	s.publisher.UserChanged(before, &after)

	l.InfoContext(ctx, "Subscription deletion applied", slog.String("userID", sub.UserID.String()))
	span.SetStatus(codes.Ok, "Subscription deletion applied")
	return nil
}
