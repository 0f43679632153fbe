package activity

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

	"github.com/atoyama/workmate-api/internal/types"
)

// SuggestionWriter appends an advisory record derived from a document
// change.
type SuggestionWriter interface {
	Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error
}

// Processor turns document change snapshots into advisory suggestions.
// It only reads the snapshots it is handed, so replaying a change is
// harmless apart from a duplicate suggestion.
type Processor struct {
	logger      *slog.Logger
	suggestions SuggestionWriter
}

func NewProcessor(suggestions SuggestionWriter, logger *slog.Logger) *Processor {
	return &Processor{logger: logger, suggestions: suggestions}
}

// OnUserChanged reacts to login recency and subscription status
// transitions on the user document.
func (p *Processor) OnUserChanged(ctx context.Context, before, after *types.User) error {
	ctx, span := otel.Tracer("ActivityProcessor").Start(ctx, "OnUserChanged", trace.WithAttributes(
		attribute.String("user.id", after.ID.String()),
	))
	defer span.End()

	l := p.logger.With(slog.String("method", "OnUserChanged"), slog.String("userID", after.ID.String()))

	if loginChanged(before, after) && before.LastLoginAt != nil {
		gap := after.LastLoginAt.Sub(*before.LastLoginAt)
		switch {
		case gap >= 7*24*time.Hour:
			if err := p.suggestions.Append(ctx, after.ID, types.CategoryFeature,
				"Welcome back!",
				"It's been over a week since your last visit. A quick review of your open tasks will get you back up to speed.",
				8,
			); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to append welcome-back suggestion: %w", err)
			}
		case gap >= 24*time.Hour:
			if err := p.suggestions.Append(ctx, after.ID, types.CategoryEfficiency,
				"Good to see you again",
				"You were away for a day or more. Check whether any of your tasks came due while you were gone.",
				6,
			); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to append check-in suggestion: %w", err)
			}
		}
	}

	if before.SubscriptionStatus != after.SubscriptionStatus {
		switch after.SubscriptionStatus {
		case types.UserSubscriptionActive:
			if err := p.suggestions.Append(ctx, after.ID, types.CategoryFeature,
				"Your subscription is active",
				"Thanks for subscribing! Premium reports and advanced task views are now unlocked for you.",
				7,
			); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to append subscription-active suggestion: %w", err)
			}
		case types.UserSubscriptionCanceled:
			if err := p.suggestions.Append(ctx, after.ID, types.CategoryFeature,
				"Sorry to see you go",
				"Your subscription was canceled. Your tasks stay right where they are, and you can resubscribe any time.",
				5,
			); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to append subscription-canceled suggestion: %w", err)
			}
		}
	}

	l.DebugContext(ctx, "User change processed")
	span.SetStatus(codes.Ok, "User change processed")
	return nil
}

// OnTaskCreated greets a freshly created task with a pair of advisory
// records for the assignee.
func (p *Processor) OnTaskCreated(ctx context.Context, task *types.Task) error {
	ctx, span := otel.Tracer("ActivityProcessor").Start(ctx, "OnTaskCreated", trace.WithAttributes(
		attribute.String("task.id", task.ID.String()),
	))
	defer span.End()

	if err := p.suggestions.Append(ctx, task.AssignedTo, types.CategoryEfficiency,
		"Plan your new task",
		fmt.Sprintf("%q just landed on your list. Slotting it into your calendar now keeps it from piling up.", task.Title),
		6,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append planning suggestion: %w", err)
	}
	if err := p.suggestions.Append(ctx, task.AssignedTo, types.CategoryFeature,
		"Break it down",
		"Larger tasks go faster when you split them into smaller ones with their own due dates.",
		4,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append breakdown suggestion: %w", err)
	}

	span.SetStatus(codes.Ok, "Task creation processed")
	return nil
}

func loginChanged(before, after *types.User) bool {
	if after.LastLoginAt == nil {
		return false
	}
	if before.LastLoginAt == nil {
		return true
	}
	return !after.LastLoginAt.Equal(*before.LastLoginAt)
}
