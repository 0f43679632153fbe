package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/atoyama/workmate-api/internal/types"
	"github.com/atoyama/workmate-api/pkg/db"
)

// StatusCount is one row of a per-status aggregation.
type StatusCount struct {
	Status types.TaskStatus `json:"status"`
	Count  int              `json:"count"`
}

// MemberStats is one row of the per-member aggregation.
type MemberStats struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Completed   int       `json:"completed"`
	Open        int       `json:"open"`
}

var _ Repository = (*RepositoryImpl)(nil)

// Repository runs the aggregate queries behind reports.
type Repository interface {
	CountByStatus(ctx context.Context, userID uuid.UUID) ([]StatusCount, error)
	CompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	TeamStats(ctx context.Context) ([]MemberStats, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pool   db.Querier
	sb     sq.StatementBuilderType
}

func NewRepositoryImpl(pool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pool:   pool,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *RepositoryImpl) CountByStatus(ctx context.Context, userID uuid.UUID) ([]StatusCount, error) {
	ctx, span := otel.Tracer("ReportRepo").Start(ctx, "CountByStatus", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tasks"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query, args, err := r.sb.
		Select("status", "COUNT(*)").
		From("tasks").
		Where(sq.Eq{"assigned_to": userID}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build status count query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error counting tasks by status: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning status count: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading status counts: %w", err)
	}

	span.SetStatus(codes.Ok, "Status counts computed")
	return out, nil
}

func (r *RepositoryImpl) CompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	ctx, span := otel.Tracer("ReportRepo").Start(ctx, "CompletedSince", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tasks"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query, args, err := r.sb.
		Select("COUNT(*)").
		From("tasks").
		Where(sq.Eq{"assigned_to": userID, "status": types.TaskStatusCompleted}).
		Where(sq.GtOrEq{"completed_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build completed count query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting completed tasks: %w", err)
	}

	span.SetStatus(codes.Ok, "Completed count computed")
	return count, nil
}

func (r *RepositoryImpl) CreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	ctx, span := otel.Tracer("ReportRepo").Start(ctx, "CreatedSince", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tasks"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query, args, err := r.sb.
		Select("COUNT(*)").
		From("tasks").
		Where(sq.Eq{"created_by": userID}).
		Where(sq.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build created count query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting created tasks: %w", err)
	}

	span.SetStatus(codes.Ok, "Created count computed")
	return count, nil
}

func (r *RepositoryImpl) TeamStats(ctx context.Context) ([]MemberStats, error) {
	ctx, span := otel.Tracer("ReportRepo").Start(ctx, "TeamStats", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tasks"),
	))
	defer span.End()

	query, args, err := r.sb.
		Select(
			"u.id",
			"u.display_name",
			"COUNT(*) FILTER (WHERE t.status = 'completed') AS completed",
			"COUNT(*) FILTER (WHERE t.status <> 'completed') AS open",
		).
		From("users u").
		Join("tasks t ON t.assigned_to = u.id").
		GroupBy("u.id", "u.display_name").
		OrderBy("completed DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build team stats query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error computing team stats: %w", err)
	}
	defer rows.Close()

	var out []MemberStats
	for rows.Next() {
		var ms MemberStats
		if err := rows.Scan(&ms.UserID, &ms.DisplayName, &ms.Completed, &ms.Open); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning team stats: %w", err)
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading team stats: %w", err)
	}

	span.SetStatus(codes.Ok, "Team stats computed")
	return out, nil
}
