package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/atoyama/workmate-api/internal/domain/notifications"
	"github.com/atoyama/workmate-api/internal/types"
)

// TaskLister is the slice of the task repository the sweep reads.
type TaskLister interface {
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]*types.Task, error)
}

// Notifier delivers the reminder notification.
type Notifier interface {
	NotifyTaskEvent(ctx context.Context, userID uuid.UUID, kind notifications.TaskEventKind, taskID uuid.UUID, taskTitle string) error
}

// SuggestionWriter appends the reminder's advisory record.
type SuggestionWriter interface {
	Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error
}

// Service runs the daily deadline sweep. It is triggered by the
// scheduler, not by requests.
type Service struct {
	logger      *slog.Logger
	tasks       TaskLister
	notifier    Notifier
	suggestions SuggestionWriter
	loc         *time.Location
}

func NewService(tasks TaskLister, notifier Notifier, suggestions SuggestionWriter, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		logger:      logger,
		tasks:       tasks,
		notifier:    notifier,
		suggestions: suggestions,
		loc:         loc,
	}
}

// RunDailySweep reminds assignees of every unfinished task due by the
// end of tomorrow. Per-task delivery failures are logged; one broken
// task never stops the rest of the sweep.
func (s *Service) RunDailySweep(ctx context.Context) error {
	ctx, span := otel.Tracer("ReminderService").Start(ctx, "RunDailySweep")
	defer span.End()

	l := s.logger.With(slog.String("method", "RunDailySweep"))

	cutoff := endOfTomorrow(time.Now().In(s.loc))
	span.SetAttributes(attribute.String("reminder.cutoff", cutoff.Format(time.RFC3339)))

	due, err := s.tasks.ListDueBefore(ctx, cutoff)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list due tasks", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list due tasks")
		return fmt.Errorf("failed to list due tasks: %w", err)
	}
	if len(due) == 0 {
		l.InfoContext(ctx, "No tasks due, sweep done")
		span.SetStatus(codes.Ok, "Nothing due")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, task := range due {
		g.Go(func() error {
			s.remind(gctx, l, task)
			return nil
		})
	}
	_ = g.Wait()

	l.InfoContext(ctx, "Reminder sweep finished", slog.Int("tasks", len(due)))
	span.SetAttributes(attribute.Int("reminder.tasks", len(due)))
	span.SetStatus(codes.Ok, "Sweep finished")
	return nil
}

func (s *Service) remind(ctx context.Context, l *slog.Logger, task *types.Task) {
	if err := s.notifier.NotifyTaskEvent(ctx, task.AssignedTo, notifications.TaskReminder, task.ID, task.Title); err != nil {
		l.ErrorContext(ctx, "Failed to deliver reminder",
			slog.String("taskID", task.ID.String()), slog.Any("error", err))
	}
	if err := s.suggestions.Append(ctx, task.AssignedTo, types.CategoryEfficiency,
		"Deadline coming up",
		fmt.Sprintf("%q is due soon. Tackling it first thing keeps it from slipping.", task.Title),
		8,
	); err != nil {
		l.WarnContext(ctx, "Failed to append reminder suggestion",
			slog.String("taskID", task.ID.String()), slog.Any("error", err))
	}
}

// endOfTomorrow is 23:59:59 of the next calendar day in the service's
// location, so "due tomorrow" means the whole of tomorrow.
func endOfTomorrow(now time.Time) time.Time {
	y, m, d := now.AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, now.Location())
}
