package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/atoyama/workmate-api/internal/types"
	"github.com/atoyama/workmate-api/pkg/db"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository persists the local projection of provider subscriptions.
// Rows are addressed by the provider's subscription id because that is
// the only key webhook events carry.
type Repository interface {
	CreateSubscription(ctx context.Context, sub types.Subscription) error
	GetByProviderID(ctx context.Context, providerSubID string) (*types.Subscription, error)
	MarkActive(ctx context.Context, providerSubID string, paidAt time.Time) error
	UpdateStatusAndPeriod(ctx context.Context, providerSubID, status string, periodStart, periodEnd, updatedAt time.Time) error
	MarkCanceled(ctx context.Context, providerSubID string, canceledAt time.Time) error
	UpdatePlan(ctx context.Context, providerSubID, planID string, updatedAt time.Time) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pool   db.Querier
}

func NewRepositoryImpl(pool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pool: pool}
}

func (r *RepositoryImpl) CreateSubscription(ctx context.Context, sub types.Subscription) error {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "CreateSubscription", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("subscription.provider_id", sub.StripeSubscriptionID),
	))
	defer span.End()

	query := `
        INSERT INTO subscriptions (id, user_id, plan_id, status, stripe_subscription_id,
                                   current_period_start, current_period_end, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.UserID, sub.PlanID, sub.Status, sub.StripeSubscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error creating subscription: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription created")
	return nil
}

func (r *RepositoryImpl) GetByProviderID(ctx context.Context, providerSubID string) (*types.Subscription, error) {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "GetByProviderID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("subscription.provider_id", providerSubID),
	))
	defer span.End()

	query := `
        SELECT id, user_id, plan_id, status, stripe_subscription_id,
               current_period_start, current_period_end, last_payment_at, canceled_at, created_at, updated_at
        FROM subscriptions WHERE stripe_subscription_id = $1`

	var s types.Subscription
	err := r.pool.QueryRow(ctx, query, providerSubID).Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.StripeSubscriptionID,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.LastPaymentAt, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Subscription not found")
			return nil, fmt.Errorf("subscription %s: %w", providerSubID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching subscription: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription fetched")
	return &s, nil
}

// MarkActive is an unconditional overwrite so re-delivered payment
// events converge to the same row.
func (r *RepositoryImpl) MarkActive(ctx context.Context, providerSubID string, paidAt time.Time) error {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "MarkActive", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("subscription.provider_id", providerSubID),
	))
	defer span.End()

	query := `
        UPDATE subscriptions
        SET status = $2, last_payment_at = $3, updated_at = $3
        WHERE stripe_subscription_id = $1`

	if _, err := r.pool.Exec(ctx, query, providerSubID, types.SubscriptionStatusActive, paidAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error marking subscription active: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription marked active")
	return nil
}

func (r *RepositoryImpl) UpdateStatusAndPeriod(ctx context.Context, providerSubID, status string, periodStart, periodEnd, updatedAt time.Time) error {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "UpdateStatusAndPeriod", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("subscription.provider_id", providerSubID),
		attribute.String("subscription.status", status),
	))
	defer span.End()

	query := `
        UPDATE subscriptions
        SET status = $2, current_period_start = $3, current_period_end = $4, updated_at = $5
        WHERE stripe_subscription_id = $1`

	if _, err := r.pool.Exec(ctx, query, providerSubID, status, periodStart, periodEnd, updatedAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating subscription period: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription period updated")
	return nil
}

func (r *RepositoryImpl) MarkCanceled(ctx context.Context, providerSubID string, canceledAt time.Time) error {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "MarkCanceled", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("subscription.provider_id", providerSubID),
	))
	defer span.End()

	query := `
        UPDATE subscriptions
        SET status = $2, canceled_at = $3, updated_at = $3
        WHERE stripe_subscription_id = $1`

	if _, err := r.pool.Exec(ctx, query, providerSubID, types.SubscriptionStatusCanceled, canceledAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error canceling subscription: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription marked canceled")
	return nil
}

func (r *RepositoryImpl) UpdatePlan(ctx context.Context, providerSubID, planID string, updatedAt time.Time) error {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "UpdatePlan", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("subscription.provider_id", providerSubID),
		attribute.String("subscription.plan_id", planID),
	))
	defer span.End()

	query := `UPDATE subscriptions SET plan_id = $2, updated_at = $3 WHERE stripe_subscription_id = $1`

	if _, err := r.pool.Exec(ctx, query, providerSubID, planID, updatedAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating subscription plan: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription plan updated")
	return nil
}

func (r *RepositoryImpl) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "DeleteForUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	if _, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting user subscriptions: %w", err)
	}

	span.SetStatus(codes.Ok, "User subscriptions deleted")
	return nil
}
