package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/atoyama/workmate-api/internal/types"
	"github.com/atoyama/workmate-api/pkg/db"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository persists notification delivery records.
type Repository interface {
	CreateNotification(ctx context.Context, n types.Notification) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pool   db.Querier
}

func NewRepositoryImpl(pool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pool: pool}
}

func (r *RepositoryImpl) CreateNotification(ctx context.Context, n types.Notification) error {
	ctx, span := otel.Tracer("NotificationRepo").Start(ctx, "CreateNotification", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "notifications"),
		attribute.String("db.user.id", n.UserID.String()),
	))
	defer span.End()

	query := `
        INSERT INTO notifications (id, user_id, sender_id, title, message, type, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		n.ID, n.UserID, n.SenderID, n.Title, n.Message, n.Type, n.Read, n.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert notification", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error creating notification: %w", err)
	}

	span.SetStatus(codes.Ok, "Notification created")
	return nil
}
