package notifications

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

	"github.com/atoyama/workmate-api/internal/messaging"
	"github.com/atoyama/workmate-api/internal/types"
)

// TaskEventKind names the task lifecycle events that produce a
// notification.
type TaskEventKind string

const (
	TaskAssigned  TaskEventKind = "task_assigned"
	TaskCompleted TaskEventKind = "task_completed"
	TaskReminder  TaskEventKind = "task_reminder"
)

// UserGetter is the slice of the user repository this service needs to
// resolve delivery targets.
type UserGetter interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Send stores a notification record and pushes it to the target's
	// device when a token is registered.
	Send(ctx context.Context, senderID, userID uuid.UUID, title, message, notifType string) error
	// NotifyTaskEvent stores a task notification and emails the target
	// unless they opted out. Failures here never fail the triggering
	// operation; callers log and move on.
	NotifyTaskEvent(ctx context.Context, userID uuid.UUID, kind TaskEventKind, taskID uuid.UUID, taskTitle string) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	users  UserGetter
	push   messaging.PushSender
	email  messaging.EmailSender
}

func NewServiceImpl(repo Repository, users UserGetter, push messaging.PushSender, email messaging.EmailSender, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		users:  users,
		push:   push,
		email:  email,
	}
}

func (s *ServiceImpl) Send(ctx context.Context, senderID, userID uuid.UUID, title, message, notifType string) error {
	ctx, span := otel.Tracer("NotificationService").Start(ctx, "Send", trace.WithAttributes(
		attribute.String("notification.user_id", userID.String()),
		attribute.String("notification.type", notifType),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Send"), slog.String("userID", userID.String()))

	if notifType == "" {
		notifType = "general"
	}

	record := types.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		SenderID:  &senderID,
		Title:     title,
		Message:   message,
		Type:      notifType,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateNotification(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store notification")
		return fmt.Errorf("failed to store notification: %w", err)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Target user lookup failed")
		return fmt.Errorf("failed to load notification target: %w", err)
	}

	if user.FCMToken != nil && *user.FCMToken != "" && s.push != nil {
		data := map[string]string{
			"type":      notifType,
			"sender_id": senderID.String(),
		}
		if err := s.push.SendPush(ctx, *user.FCMToken, title, message, data); err != nil {
			l.ErrorContext(ctx, "Failed to push notification", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Push delivery failed")
			return fmt.Errorf("failed to push notification: %w", err)
		}
	}

	l.InfoContext(ctx, "Notification sent", slog.String("type", notifType))
	span.SetStatus(codes.Ok, "Notification sent")
	return nil
}

func (s *ServiceImpl) NotifyTaskEvent(ctx context.Context, userID uuid.UUID, kind TaskEventKind, taskID uuid.UUID, taskTitle string) error {
	ctx, span := otel.Tracer("NotificationService").Start(ctx, "NotifyTaskEvent", trace.WithAttributes(
		attribute.String("notification.user_id", userID.String()),
		attribute.String("notification.kind", string(kind)),
		attribute.String("task.id", taskID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "NotifyTaskEvent"), slog.String("userID", userID.String()), slog.String("kind", string(kind)))

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Target user lookup failed")
		return fmt.Errorf("failed to load notification target: %w", err)
	}

	var title, message string
	switch kind {
	case TaskAssigned:
		title = "New task assigned"
		message = fmt.Sprintf("%q has been assigned to you", taskTitle)
	case TaskCompleted:
		title = "Task completed"
		message = fmt.Sprintf("%q has been completed", taskTitle)
	case TaskReminder:
		title = "Task deadline approaching"
		message = fmt.Sprintf("%q is due soon", taskTitle)
	default:
		span.SetStatus(codes.Error, "Unknown task event kind")
		return fmt.Errorf("unknown task event kind %q: %w", kind, types.ErrBadRequest)
	}

	record := types.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      string(kind),
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateNotification(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store notification")
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if user.EmailNotifications && s.email != nil {
		body := fmt.Sprintf("<h2>Workmate</h2><p>%s</p><p>Open the app for details.</p>", message)
		if err := s.email.SendEmail(ctx, user.Email, title, body); err != nil {
			// The record is stored; delivery is best-effort.
			l.WarnContext(ctx, "Failed to email notification", slog.Any("error", err))
			span.RecordError(err)
		}
	}

	l.DebugContext(ctx, "Task notification delivered")
	span.SetStatus(codes.Ok, "Task notification delivered")
	return nil
}
