package users

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
	"golang.org/x/sync/errgroup"

	"github.com/atoyama/workmate-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// SuggestionWriter appends an advisory record; append failures never
// fail the primary operation.
type SuggestionWriter interface {
	Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error
}

// DependentDeleter removes all records of one collection belonging to a
// user. Implemented by the subscription and suggestion repositories.
type DependentDeleter interface {
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// ChangePublisher receives before/after snapshots of a mutated user
// document, mirroring a store-side change trigger.
type ChangePublisher interface {
	UserChanged(before, after *types.User)
}

type Service interface {
	Register(ctx context.Context, email, displayName string) (*types.User, error)
	RecordLogin(ctx context.Context, userID uuid.UUID) error
	Get(ctx context.Context, userID uuid.UUID) (*types.User, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	suggestions SuggestionWriter
	publisher   ChangePublisher
	dependents  []DependentDeleter
}

func NewServiceImpl(repo Repository, suggestions SuggestionWriter, publisher ChangePublisher, dependents []DependentDeleter, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		repo:        repo,
		suggestions: suggestions,
		publisher:   publisher,
		dependents:  dependents,
	}
}

// Register creates the user document for a new account and greets the
// user with a welcome suggestion.
func (s *ServiceImpl) Register(ctx context.Context, email, displayName string) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("user.email", email),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("email", email))

	if email == "" {
		span.SetStatus(codes.Error, "Email required")
		return nil, fmt.Errorf("email is required: %w", types.ErrBadRequest)
	}

	now := time.Now()
	user := types.User{
		ID:                 uuid.New(),
		Email:              email,
		DisplayName:        displayName,
		Role:               types.RoleUser,
		SubscriptionStatus: types.UserSubscriptionNone,
		EmailNotifications: true,
		CreatedAt:          now,
		LastLoginAt:        &now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.suggestions.Append(ctx, user.ID, types.CategoryFeature,
		"Welcome aboard!",
		"Congratulations on creating your account! Start by setting up your profile and taking a look at the subscription plans. Sara is here to help you get going.",
		8,
	); err != nil {
		l.WarnContext(ctx, "Failed to append welcome suggestion", slog.Any("error", err))
	}

	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "User registered")
	return &user, nil
}

// RecordLogin overwrites the last-login timestamp and publishes the
// document change so recency-based suggestions can fire.
func (s *ServiceImpl) RecordLogin(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("UserService").Start(ctx, "RecordLogin", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "RecordLogin"), slog.String("userID", userID.String()))

	before, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return fmt.Errorf("failed to load user: %w", err)
	}

	now := time.Now()
	if err := s.repo.UpdateLastLogin(ctx, userID, now); err != nil {
		l.ErrorContext(ctx, "Failed to update last login", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update last login")
		return fmt.Errorf("failed to record login: %w", err)
	}

	after := *before
	after.LastLoginAt = &now
	s.publisher.UserChanged(before, &after)

	l.DebugContext(ctx, "Login recorded")
	span.SetStatus(codes.Ok, "Login recorded")
	return nil
}

func (s *ServiceImpl) Get(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return s.repo.GetUser(ctx, userID)
}

// Delete removes the user document and all dependent records. The
// sub-deletes are independent, so they run concurrently; there is no
// cross-collection atomicity, matching the store's semantics.
func (s *ServiceImpl) Delete(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Delete"), slog.String("userID", userID.String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.repo.DeleteUser(gctx, userID)
	})
	for _, dep := range s.dependents {
		g.Go(func() error {
			return dep.DeleteForUser(gctx, userID)
		})
	}
	if err := g.Wait(); err != nil {
		l.ErrorContext(ctx, "Failed to delete user data", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete user data")
		return fmt.Errorf("failed to delete user data: %w", err)
	}

	l.InfoContext(ctx, "User and dependent records deleted")
	span.SetStatus(codes.Ok, "User deleted")
	return nil
}
