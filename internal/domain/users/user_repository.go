package users

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

// Repository defines persistence for user documents.
type Repository interface {
	CreateUser(ctx context.Context, user types.User) error
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	SetSubscriptionStatus(ctx context.Context, userID uuid.UUID, status types.UserSubscriptionStatus) error
	SetSubscriptionPlan(ctx context.Context, userID uuid.UUID, plan string) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pool   db.Querier
}

func NewRepositoryImpl(pool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pool: pool}
}

func (r *RepositoryImpl) CreateUser(ctx context.Context, user types.User) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", user.ID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"), slog.String("userID", user.ID.String()))
	l.DebugContext(ctx, "Creating user document")

	query := `
        INSERT INTO users (id, email, display_name, role, subscription_status, email_notifications, created_at, last_login_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.DisplayName, user.Role, user.SubscriptionStatus,
		user.EmailNotifications, user.CreatedAt, user.LastLoginAt,
	)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error creating user: %w", err)
	}

	span.SetStatus(codes.Ok, "User created")
	return nil
}

func (r *RepositoryImpl) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
        SELECT id, email, display_name, role, subscription_status, subscription_plan,
               stripe_customer_id, fcm_token, email_notifications, created_at, last_login_at
        FROM users WHERE id = $1`

	var u types.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.SubscriptionStatus, &u.SubscriptionPlan,
		&u.StripeCustomerID, &u.FCMToken, &u.EmailNotifications, &u.CreatedAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	return &u, nil
}

func (r *RepositoryImpl) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateLastLogin", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Last login updated")
	return nil
}

func (r *RepositoryImpl) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "SetStripeCustomerID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	_, err := r.pool.Exec(ctx, `UPDATE users SET stripe_customer_id = $2 WHERE id = $1`, userID, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error storing stripe customer id: %w", err)
	}

	span.SetStatus(codes.Ok, "Stripe customer id stored")
	return nil
}

// SetSubscriptionStatus is an unconditional overwrite so webhook
// re-delivery converges to the same state.
func (r *RepositoryImpl) SetSubscriptionStatus(ctx context.Context, userID uuid.UUID, status types.UserSubscriptionStatus) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "SetSubscriptionStatus", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("user.subscription_status", string(status)),
	))
	defer span.End()

	_, err := r.pool.Exec(ctx, `UPDATE users SET subscription_status = $2 WHERE id = $1`, userID, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating subscription status: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription status updated")
	return nil
}

func (r *RepositoryImpl) SetSubscriptionPlan(ctx context.Context, userID uuid.UUID, plan string) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "SetSubscriptionPlan", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	_, err := r.pool.Exec(ctx, `UPDATE users SET subscription_plan = $2 WHERE id = $1`, userID, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating subscription plan: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription plan updated")
	return nil
}

func (r *RepositoryImpl) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "DeleteUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting user: %w", err)
	}

	span.SetStatus(codes.Ok, "User deleted")
	return nil
}
