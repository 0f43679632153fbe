package suggestions

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

// Repository persists advisory suggestion records.
type Repository interface {
	CreateSuggestion(ctx context.Context, s types.Suggestion) error
	GetSuggestion(ctx context.Context, suggestionID uuid.UUID) (*types.Suggestion, error)
	UpdateStatus(ctx context.Context, suggestionID uuid.UUID, status types.SuggestionStatus, updatedAt time.Time) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pool   db.Querier
}

func NewRepositoryImpl(pool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pool: pool}
}

func (r *RepositoryImpl) CreateSuggestion(ctx context.Context, s types.Suggestion) error {
	ctx, span := otel.Tracer("SuggestionRepo").Start(ctx, "CreateSuggestion", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "ai_suggestions"),
		attribute.String("db.user.id", s.UserID.String()),
	))
	defer span.End()

	query := `
        INSERT INTO ai_suggestions (id, user_id, category, title, content, status, priority, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.Category, s.Title, s.Content, s.Status, s.Priority, s.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert suggestion", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error creating suggestion: %w", err)
	}

	span.SetStatus(codes.Ok, "Suggestion created")
	return nil
}

func (r *RepositoryImpl) GetSuggestion(ctx context.Context, suggestionID uuid.UUID) (*types.Suggestion, error) {
	ctx, span := otel.Tracer("SuggestionRepo").Start(ctx, "GetSuggestion", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "ai_suggestions"),
		attribute.String("db.suggestion.id", suggestionID.String()),
	))
	defer span.End()

	query := `
        SELECT id, user_id, category, title, content, status, priority, created_at, updated_at
        FROM ai_suggestions WHERE id = $1`

	var s types.Suggestion
	err := r.pool.QueryRow(ctx, query, suggestionID).Scan(
		&s.ID, &s.UserID, &s.Category, &s.Title, &s.Content, &s.Status, &s.Priority, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Suggestion not found")
			return nil, fmt.Errorf("suggestion %s: %w", suggestionID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching suggestion: %w", err)
	}

	span.SetStatus(codes.Ok, "Suggestion fetched")
	return &s, nil
}

func (r *RepositoryImpl) UpdateStatus(ctx context.Context, suggestionID uuid.UUID, status types.SuggestionStatus, updatedAt time.Time) error {
	ctx, span := otel.Tracer("SuggestionRepo").Start(ctx, "UpdateStatus", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "ai_suggestions"),
		attribute.String("db.suggestion.id", suggestionID.String()),
		attribute.String("suggestion.status", string(status)),
	))
	defer span.End()

	query := `UPDATE ai_suggestions SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, suggestionID, status, updatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating suggestion status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Suggestion not found")
		return fmt.Errorf("suggestion %s: %w", suggestionID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Suggestion status updated")
	return nil
}

func (r *RepositoryImpl) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("SuggestionRepo").Start(ctx, "DeleteForUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "ai_suggestions"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	if _, err := r.pool.Exec(ctx, `DELETE FROM ai_suggestions WHERE user_id = $1`, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting user suggestions: %w", err)
	}

	span.SetStatus(codes.Ok, "User suggestions deleted")
	return nil
}
