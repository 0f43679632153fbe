package tasks

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

// Repository defines persistence for task documents. Tasks are never
// hard-deleted.
type Repository interface {
	CreateTask(ctx context.Context, task types.Task) error
	GetTask(ctx context.Context, taskID uuid.UUID) (*types.Task, error)
	UpdateStatus(ctx context.Context, taskID uuid.UUID, status types.TaskStatus, updatedAt time.Time, completedAt *time.Time) error
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]*types.Task, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pool   db.Querier
}

func NewRepositoryImpl(pool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pool: pool}
}

func (r *RepositoryImpl) CreateTask(ctx context.Context, task types.Task) error {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "CreateTask", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "tasks"),
		attribute.String("db.task.id", task.ID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateTask"), slog.String("taskID", task.ID.String()))
	l.DebugContext(ctx, "Inserting task")

	query := `
        INSERT INTO tasks (id, title, description, assigned_to, created_by, status, priority, due_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		task.ID, task.Title, task.Description, task.AssignedTo, task.CreatedBy,
		task.Status, task.Priority, task.DueDate, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error creating task: %w", err)
	}

	span.SetStatus(codes.Ok, "Task created")
	return nil
}

func (r *RepositoryImpl) GetTask(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "GetTask", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tasks"),
		attribute.String("db.task.id", taskID.String()),
	))
	defer span.End()

	query := `
        SELECT id, title, description, assigned_to, created_by, status, priority, due_date, created_at, updated_at, completed_at
        FROM tasks WHERE id = $1`

	var t types.Task
	err := r.pool.QueryRow(ctx, query, taskID).Scan(
		&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy,
		&t.Status, &t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Task not found")
			return nil, fmt.Errorf("task %s: %w", taskID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching task: %w", err)
	}

	span.SetStatus(codes.Ok, "Task fetched")
	return &t, nil
}

func (r *RepositoryImpl) UpdateStatus(ctx context.Context, taskID uuid.UUID, status types.TaskStatus, updatedAt time.Time, completedAt *time.Time) error {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "UpdateStatus", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "tasks"),
		attribute.String("db.task.id", taskID.String()),
		attribute.String("task.status", string(status)),
	))
	defer span.End()

	query := `
        UPDATE tasks
        SET status = $2, updated_at = $3, completed_at = COALESCE($4, completed_at)
        WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, taskID, status, updatedAt, completedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Task not found")
		return fmt.Errorf("task %s: %w", taskID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Task status updated")
	return nil
}

// ListDueBefore returns unfinished tasks with a due date at or before
// the cutoff. Used by the daily reminder sweep.
func (r *RepositoryImpl) ListDueBefore(ctx context.Context, cutoff time.Time) ([]*types.Task, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "ListDueBefore", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tasks"),
	))
	defer span.End()

	query := `
        SELECT id, title, description, assigned_to, created_by, status, priority, due_date, created_at, updated_at, completed_at
        FROM tasks
        WHERE due_date IS NOT NULL AND due_date <= $1 AND status <> $2`

	rows, err := r.pool.Query(ctx, query, cutoff, types.TaskStatusCompleted)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing due tasks: %w", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy,
			&t.Status, &t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning task: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading tasks: %w", err)
	}

	span.SetStatus(codes.Ok, "Due tasks listed")
	return out, nil
}
