package suggestions

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/atoyama/workmate-api/internal/types"
)

type MockSuggestionRepo struct {
	mock.Mock
}

func (m *MockSuggestionRepo) CreateSuggestion(ctx context.Context, s types.Suggestion) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSuggestionRepo) GetSuggestion(ctx context.Context, suggestionID uuid.UUID) (*types.Suggestion, error) {
	args := m.Called(ctx, suggestionID)
	s, _ := args.Get(0).(*types.Suggestion)
	return s, args.Error(1)
}

func (m *MockSuggestionRepo) UpdateStatus(ctx context.Context, suggestionID uuid.UUID, status types.SuggestionStatus, updatedAt time.Time) error {
	args := m.Called(ctx, suggestionID, status, updatedAt)
	return args.Error(0)
}

func (m *MockSuggestionRepo) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockUserGetter struct {
	mock.Mock
}

func (m *MockUserGetter) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) GenerateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	args := m.Called(ctx, prompt, config)
	return args.String(0), args.Error(1)
}

func (m *MockChatClient) Model() string {
	return "gemini-test"
}

func capturedSuggestion(repo *MockSuggestionRepo) types.Suggestion {
	for _, call := range repo.Calls {
		if call.Method == "CreateSuggestion" {
			return call.Arguments.Get(1).(types.Suggestion)
		}
	}
	return types.Suggestion{}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	knownUser := func() *types.User {
		return &types.User{ID: userID, Email: "ann@example.com", DisplayName: "Ann"}
	}

	t.Run("parses a clean JSON response", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		users := new(MockUserGetter)
		chat := new(MockChatClient)
		svc := NewServiceImpl(repo, users, chat, slog.Default())

		users.On("GetUser", mock.Anything, userID).Return(knownUser(), nil)
		chat.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"title":"Batch your reviews","content":"Set aside one block for code reviews.","priority":7}`, nil)
		repo.On("CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion")).Return(nil)

		got, err := svc.Generate(ctx, userID, types.CategoryEfficiency, "user reviews PRs all day")
		require.NoError(t, err)
		assert.Equal(t, "Batch your reviews", got.Title)
		assert.Equal(t, types.CategoryEfficiency, got.Category)
		assert.Equal(t, 7, got.Priority)
		assert.Equal(t, types.SuggestionPending, got.Status)
	})

	t.Run("prompt carries the category, user record and context", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		users := new(MockUserGetter)
		chat := new(MockChatClient)
		svc := NewServiceImpl(repo, users, chat, slog.Default())

		users.On("GetUser", mock.Anything, userID).Return(knownUser(), nil)
		chat.On("GenerateContent", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "performance") &&
				strings.Contains(prompt, "ann@example.com") &&
				strings.Contains(prompt, "deep work mornings")
		}), mock.Anything).Return(`{"title":"T","content":"C","priority":4}`, nil)
		repo.On("CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion")).Return(nil)

		_, err := svc.Generate(ctx, userID, types.CategoryPerformance, "deep work mornings")
		require.NoError(t, err)
		chat.AssertExpectations(t)
	})

	t.Run("strips markdown fences", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		users := new(MockUserGetter)
		chat := new(MockChatClient)
		svc := NewServiceImpl(repo, users, chat, slog.Default())

		fenced := "```json\n{\"title\":\"T\",\"content\":\"C\",\"priority\":4}\n```"
		users.On("GetUser", mock.Anything, userID).Return(knownUser(), nil)
		chat.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return(fenced, nil)
		repo.On("CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion")).Return(nil)

		got, err := svc.Generate(ctx, userID, types.CategoryFeature, "ctx")
		require.NoError(t, err)
		assert.Equal(t, "T", got.Title)
		assert.Equal(t, types.CategoryFeature, got.Category)
	})

	t.Run("unparseable response becomes a priority-5 wrapper", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		users := new(MockUserGetter)
		chat := new(MockChatClient)
		svc := NewServiceImpl(repo, users, chat, slog.Default())

		users.On("GetUser", mock.Anything, userID).Return(knownUser(), nil)
		chat.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).
			Return("Here is my advice: take more breaks.", nil)
		repo.On("CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion")).Return(nil)

		got, err := svc.Generate(ctx, userID, types.CategoryEfficiency, "ctx")
		require.NoError(t, err)
		assert.Equal(t, 5, got.Priority)
		assert.NotEmpty(t, got.Title)
		assert.NotEmpty(t, got.Content)
		stored := capturedSuggestion(repo)
		assert.Equal(t, got.ID, stored.ID)
	})

	t.Run("model failure degrades to a persisted priority-3 fallback", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		users := new(MockUserGetter)
		chat := new(MockChatClient)
		svc := NewServiceImpl(repo, users, chat, slog.Default())

		users.On("GetUser", mock.Anything, userID).Return(knownUser(), nil)
		chat.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))
		repo.On("CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion")).Return(nil)

		got, err := svc.Generate(ctx, userID, types.CategoryEfficiency, "ctx")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Priority)
		assert.NotEmpty(t, got.Title)
		assert.NotEmpty(t, got.Content)
		repo.AssertCalled(t, "CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion"))
	})

	t.Run("user lookup failure degrades the same way", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		users := new(MockUserGetter)
		chat := new(MockChatClient)
		svc := NewServiceImpl(repo, users, chat, slog.Default())

		users.On("GetUser", mock.Anything, userID).Return(nil, errors.New("db down"))
		repo.On("CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion")).Return(nil)

		got, err := svc.Generate(ctx, userID, types.CategoryEfficiency, "ctx")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Priority)
		chat.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("out-of-range priority is clamped", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		users := new(MockUserGetter)
		chat := new(MockChatClient)
		svc := NewServiceImpl(repo, users, chat, slog.Default())

		users.On("GetUser", mock.Anything, userID).Return(knownUser(), nil)
		chat.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"title":"T","content":"C","priority":42}`, nil)
		repo.On("CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion")).Return(nil)

		got, err := svc.Generate(ctx, userID, types.CategoryPerformance, "ctx")
		require.NoError(t, err)
		assert.Equal(t, 10, got.Priority)
	})

	t.Run("unknown category and empty context default instead of failing", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		users := new(MockUserGetter)
		chat := new(MockChatClient)
		svc := NewServiceImpl(repo, users, chat, slog.Default())

		users.On("GetUser", mock.Anything, userID).Return(knownUser(), nil)
		chat.On("GenerateContent", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "Extra context: none")
		}), mock.Anything).Return(`{"title":"T","content":"C","priority":4}`, nil)
		repo.On("CreateSuggestion", mock.Anything, mock.AnythingOfType("types.Suggestion")).Return(nil)

		got, err := svc.Generate(ctx, userID, types.SuggestionCategory("bogus"), "")
		require.NoError(t, err)
		assert.Equal(t, types.CategoryFeature, got.Category)
	})
}

func TestSuggestionUpdateStatus(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	suggestionID := uuid.New()

	pending := func() *types.Suggestion {
		return &types.Suggestion{
			ID:       suggestionID,
			UserID:   userID,
			Category: types.CategoryEfficiency,
			Title:    "Batch your reviews",
			Status:   types.SuggestionPending,
			Priority: 7,
		}
	}

	newService := func(repo *MockSuggestionRepo) *ServiceImpl {
		return NewServiceImpl(repo, new(MockUserGetter), new(MockChatClient), slog.Default())
	}

	t.Run("accepting appends a thank-you", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		svc := newService(repo)

		repo.On("GetSuggestion", mock.Anything, suggestionID).Return(pending(), nil)
		repo.On("UpdateStatus", mock.Anything, suggestionID, types.SuggestionAccepted, mock.AnythingOfType("time.Time")).Return(nil)
		repo.On("CreateSuggestion", mock.Anything, mock.MatchedBy(func(s types.Suggestion) bool {
			return s.Category == types.CategoryFeature && s.Priority == 2
		})).Return(nil)

		got, err := svc.UpdateStatus(ctx, userID, suggestionID, types.SuggestionAccepted)
		require.NoError(t, err)
		assert.Equal(t, types.SuggestionAccepted, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("dismissing does not", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		svc := newService(repo)

		repo.On("GetSuggestion", mock.Anything, suggestionID).Return(pending(), nil)
		repo.On("UpdateStatus", mock.Anything, suggestionID, types.SuggestionDismissed, mock.AnythingOfType("time.Time")).Return(nil)

		_, err := svc.UpdateStatus(ctx, userID, suggestionID, types.SuggestionDismissed)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "CreateSuggestion", mock.Anything, mock.Anything)
	})

	t.Run("forbids other users", func(t *testing.T) {
		repo := new(MockSuggestionRepo)
		svc := newService(repo)

		repo.On("GetSuggestion", mock.Anything, suggestionID).Return(pending(), nil)

		_, err := svc.UpdateStatus(ctx, uuid.New(), suggestionID, types.SuggestionAccepted)
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("rejects pending as a target status", func(t *testing.T) {
		svc := newService(new(MockSuggestionRepo))

		_, err := svc.UpdateStatus(ctx, userID, suggestionID, types.SuggestionPending)
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})
}
