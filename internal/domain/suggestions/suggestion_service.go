package suggestions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/atoyama/workmate-api/internal/llm"
	"github.com/atoyama/workmate-api/internal/types"
)

// saraPromptTemplate frames the assistant persona and pins the response
// to a single JSON object so it can be decoded directly. The user record
// is serialized in so the advice can reference recent activity.
const saraPromptTemplate = `You are Sara, a friendly productivity assistant inside a team task manager.
Produce one concrete, actionable suggestion for the user described below.

Suggestion category: %s
User record: %s
Extra context: %s

Respond with a single JSON object and nothing else:
{
  "title": "short suggestion title",
  "content": "2-3 sentences of friendly, specific advice",
  "priority": 1-10
}`

var _ Service = (*ServiceImpl)(nil)

// UserGetter loads the user record that gets serialized into the
// generation prompt.
type UserGetter interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
}

type Service interface {
	// Append stores a templated suggestion.
	Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error
	// Generate asks the model for a suggestion in the given category,
	// built from the user's record plus optional free-form context. Both
	// inputs are optional: an unknown category falls back to feature and
	// missing context is fine. It always returns a persisted suggestion:
	// lookup, model or parse failures degrade to a fallback instead of
	// erroring.
	Generate(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, userContext string) (*types.Suggestion, error)
	// UpdateStatus accepts or dismisses a suggestion on behalf of its
	// owner.
	UpdateStatus(ctx context.Context, callerID, suggestionID uuid.UUID, status types.SuggestionStatus) (*types.Suggestion, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	users  UserGetter
	chat   llm.ChatClient
}

func NewServiceImpl(repo Repository, users UserGetter, chat llm.ChatClient, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, repo: repo, users: users, chat: chat}
}

func (s *ServiceImpl) Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error {
	ctx, span := otel.Tracer("SuggestionService").Start(ctx, "Append", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("suggestion.category", string(category)),
	))
	defer span.End()

	if !types.ValidSuggestionCategory(category) {
		span.SetStatus(codes.Error, "Invalid category")
		return fmt.Errorf("invalid suggestion category %q: %w", category, types.ErrBadRequest)
	}

	suggestion := types.Suggestion{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  category,
		Title:     title,
		Content:   content,
		Status:    types.SuggestionPending,
		Priority:  clampPriority(priority),
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateSuggestion(ctx, suggestion); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store suggestion")
		return fmt.Errorf("failed to store suggestion: %w", err)
	}

	span.SetStatus(codes.Ok, "Suggestion appended")
	return nil
}

// generatedSuggestion is the shape the model is asked to emit.
type generatedSuggestion struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
}

func (s *ServiceImpl) Generate(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, userContext string) (*types.Suggestion, error) {
	ctx, span := otel.Tracer("SuggestionService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("suggestion.category", string(category)),
		attribute.String("llm.model", s.chat.Model()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Generate"), slog.String("userID", userID.String()))

	if !types.ValidSuggestionCategory(category) {
		category = types.CategoryFeature
	}
	if userContext == "" {
		userContext = "none"
	}

	suggestion := types.Suggestion{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  category,
		Status:    types.SuggestionPending,
		CreatedAt: time.Now(),
	}

	var raw string
	user, err := s.users.GetUser(ctx, userID)
	if err == nil {
		profile, _ := json.Marshal(user)
		prompt := fmt.Sprintf(saraPromptTemplate, category, profile, userContext)
		config := &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0.7),
		}
		raw, err = s.chat.GenerateContent(ctx, prompt, config)
	}

	switch {
	case err != nil:
		// The advisory pipeline degrades instead of failing.
		l.ErrorContext(ctx, "Generation failed, using fallback suggestion", slog.Any("error", err))
		span.RecordError(err)
		suggestion.Title = "Stay on top of your tasks"
		suggestion.Content = "Sara couldn't analyze your activity right now. Reviewing your open tasks and picking the most urgent one is always a good next step."
		suggestion.Priority = 3
	default:
		var gen generatedSuggestion
		if jsonErr := json.Unmarshal([]byte(cleanJSONResponse(raw)), &gen); jsonErr != nil || gen.Title == "" || gen.Content == "" {
			l.WarnContext(ctx, "Unparseable model response, wrapping raw text", slog.Any("error", jsonErr))
			suggestion.Title = "A tip from Sara"
			suggestion.Content = strings.TrimSpace(raw)
			suggestion.Priority = 5
			if suggestion.Content == "" {
				suggestion.Content = "Keep your task list short and focused: close out stale tasks and set due dates on the rest."
			}
		} else {
			suggestion.Title = gen.Title
			suggestion.Content = gen.Content
			suggestion.Priority = clampPriority(gen.Priority)
		}
	}

	if err := s.repo.CreateSuggestion(ctx, suggestion); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store suggestion")
		return nil, fmt.Errorf("failed to store generated suggestion: %w", err)
	}

	l.InfoContext(ctx, "Suggestion generated", slog.String("suggestionID", suggestion.ID.String()), slog.Int("priority", suggestion.Priority))
	span.SetStatus(codes.Ok, "Suggestion generated")
	return &suggestion, nil
}

func (s *ServiceImpl) UpdateStatus(ctx context.Context, callerID, suggestionID uuid.UUID, status types.SuggestionStatus) (*types.Suggestion, error) {
	ctx, span := otel.Tracer("SuggestionService").Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("suggestion.id", suggestionID.String()),
		attribute.String("suggestion.status", string(status)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateStatus"), slog.String("suggestionID", suggestionID.String()))

	if status != types.SuggestionAccepted && status != types.SuggestionDismissed {
		span.SetStatus(codes.Error, "Invalid status")
		return nil, fmt.Errorf("invalid suggestion status %q: %w", status, types.ErrBadRequest)
	}

	suggestion, err := s.repo.GetSuggestion(ctx, suggestionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Suggestion lookup failed")
		return nil, fmt.Errorf("failed to load suggestion: %w", err)
	}
	if suggestion.UserID != callerID {
		span.SetStatus(codes.Error, "Caller does not own suggestion")
		return nil, fmt.Errorf("suggestion %s belongs to another user: %w", suggestionID, types.ErrForbidden)
	}

	now := time.Now()
	if err := s.repo.UpdateStatus(ctx, suggestionID, status, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update status")
		return nil, fmt.Errorf("failed to update suggestion status: %w", err)
	}
	suggestion.Status = status
	suggestion.UpdatedAt = &now

	if status == types.SuggestionAccepted {
		if err := s.Append(ctx, callerID, types.CategoryFeature,
			"Thanks for the feedback!",
			"Glad that suggestion helped. Sara will keep an eye out for more ways to make your day easier.",
			2,
		); err != nil {
			l.WarnContext(ctx, "Failed to append thank-you suggestion", slog.Any("error", err))
		}
	}

	l.InfoContext(ctx, "Suggestion status updated", slog.String("status", string(status)))
	span.SetStatus(codes.Ok, "Suggestion status updated")
	return suggestion, nil
}

// cleanJSONResponse strips markdown code fences the model sometimes
// wraps around its JSON.
func cleanJSONResponse(raw string) string {
	out := strings.TrimSpace(raw)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}
