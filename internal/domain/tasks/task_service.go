package tasks

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

	"github.com/atoyama/workmate-api/internal/domain/notifications"
	"github.com/atoyama/workmate-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Notifier delivers task lifecycle notifications. Delivery failures are
// logged and never fail the task write.
type Notifier interface {
	NotifyTaskEvent(ctx context.Context, userID uuid.UUID, kind notifications.TaskEventKind, taskID uuid.UUID, taskTitle string) error
}

// SuggestionWriter appends an advisory record for a user.
type SuggestionWriter interface {
	Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error
}

// ChangePublisher receives the snapshot of a freshly created task,
// mirroring a store-side create trigger.
type ChangePublisher interface {
	TaskCreated(task *types.Task)
}

type CreateTaskParams struct {
	Title       string
	Description string
	AssignedTo  *uuid.UUID
	Priority    types.TaskPriority
	DueDate     *time.Time
}

type Service interface {
	CreateTask(ctx context.Context, creatorID uuid.UUID, params CreateTaskParams) (*types.Task, error)
	UpdateStatus(ctx context.Context, callerID, taskID uuid.UUID, status types.TaskStatus) (*types.Task, error)
	Get(ctx context.Context, taskID uuid.UUID) (*types.Task, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	notifier    Notifier
	suggestions SuggestionWriter
	publisher   ChangePublisher
}

func NewServiceImpl(repo Repository, notifier Notifier, suggestions SuggestionWriter, publisher ChangePublisher, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		repo:        repo,
		notifier:    notifier,
		suggestions: suggestions,
		publisher:   publisher,
	}
}

// CreateTask stores a new task. The assignee defaults to the creator
// and the priority to medium. The assignee is notified when they are
// not the creator, and the create is published for follow-up advice.
func (s *ServiceImpl) CreateTask(ctx context.Context, creatorID uuid.UUID, params CreateTaskParams) (*types.Task, error) {
	ctx, span := otel.Tracer("TaskService").Start(ctx, "CreateTask", trace.WithAttributes(
		attribute.String("task.creator_id", creatorID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateTask"), slog.String("creatorID", creatorID.String()))

	if params.Title == "" {
		span.SetStatus(codes.Error, "Title required")
		return nil, fmt.Errorf("task title is required: %w", types.ErrBadRequest)
	}

	assignee := creatorID
	if params.AssignedTo != nil {
		assignee = *params.AssignedTo
	}
	priority := params.Priority
	if priority == "" {
		priority = types.TaskPriorityMedium
	}
	switch priority {
	case types.TaskPriorityLow, types.TaskPriorityMedium, types.TaskPriorityHigh:
	default:
		span.SetStatus(codes.Error, "Invalid priority")
		return nil, fmt.Errorf("invalid task priority %q: %w", priority, types.ErrBadRequest)
	}

	now := time.Now()
	task := types.Task{
		ID:          uuid.New(),
		Title:       params.Title,
		Description: params.Description,
		AssignedTo:  assignee,
		CreatedBy:   creatorID,
		Status:      types.TaskStatusTodo,
		Priority:    priority,
		DueDate:     params.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		l.ErrorContext(ctx, "Failed to create task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create task")
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if assignee != creatorID {
		if err := s.notifier.NotifyTaskEvent(ctx, assignee, notifications.TaskAssigned, task.ID, task.Title); err != nil {
			l.WarnContext(ctx, "Failed to notify assignee", slog.Any("error", err))
		}
	}

	if err := s.suggestions.Append(ctx, creatorID, types.CategoryEfficiency,
		"Task management tip",
		fmt.Sprintf("You created the task %q. Breaking work into tasks with clear due dates makes it easier to keep your team on track.", task.Title),
		4,
	); err != nil {
		l.WarnContext(ctx, "Failed to append task tip", slog.Any("error", err))
	}

	s.publisher.TaskCreated(&task)

	l.InfoContext(ctx, "Task created", slog.String("taskID", task.ID.String()))
	span.SetStatus(codes.Ok, "Task created")
	return &task, nil
}

// UpdateStatus moves a task through its lifecycle. Only the assignee or
// the creator may change the status. Completing a task stamps
// completed_at, notifies the creator and congratulates the caller.
func (s *ServiceImpl) UpdateStatus(ctx context.Context, callerID, taskID uuid.UUID, status types.TaskStatus) (*types.Task, error) {
	ctx, span := otel.Tracer("TaskService").Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("task.id", taskID.String()),
		attribute.String("task.status", string(status)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateStatus"), slog.String("taskID", taskID.String()))

	if !types.ValidTaskStatus(status) {
		span.SetStatus(codes.Error, "Invalid status")
		return nil, fmt.Errorf("invalid task status %q: %w", status, types.ErrBadRequest)
	}

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task lookup failed")
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	if callerID != task.AssignedTo && callerID != task.CreatedBy {
		span.SetStatus(codes.Error, "Caller not allowed")
		return nil, fmt.Errorf("only the assignee or creator may update task %s: %w", taskID, types.ErrForbidden)
	}

	now := time.Now()
	var completedAt *time.Time
	if status == types.TaskStatusCompleted {
		completedAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, taskID, status, now, completedAt); err != nil {
		l.ErrorContext(ctx, "Failed to update task status", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update task status")
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	task.Status = status
	task.UpdatedAt = now
	if completedAt != nil {
		task.CompletedAt = completedAt
	}

	if status == types.TaskStatusCompleted {
		if task.CreatedBy != callerID {
			if err := s.notifier.NotifyTaskEvent(ctx, task.CreatedBy, notifications.TaskCompleted, task.ID, task.Title); err != nil {
				l.WarnContext(ctx, "Failed to notify creator", slog.Any("error", err))
			}
		}
		if err := s.suggestions.Append(ctx, callerID, types.CategoryFeature,
			"Great job!",
			fmt.Sprintf("You completed %q. Keep the momentum going by picking up your next task while you're in the flow.", task.Title),
			3,
		); err != nil {
			l.WarnContext(ctx, "Failed to append completion suggestion", slog.Any("error", err))
		}
	}

	l.InfoContext(ctx, "Task status updated", slog.String("status", string(status)))
	span.SetStatus(codes.Ok, "Task status updated")
	return task, nil
}

func (s *ServiceImpl) Get(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	return s.repo.GetTask(ctx, taskID)
}
