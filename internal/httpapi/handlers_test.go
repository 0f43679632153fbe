package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/atoyama/workmate-api/internal/domain/tasks"
	"github.com/atoyama/workmate-api/internal/types"
	"github.com/atoyama/workmate-api/pkg/middleware"
)

type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) CreateTask(ctx context.Context, creatorID uuid.UUID, params tasks.CreateTaskParams) (*types.Task, error) {
	args := m.Called(ctx, creatorID, params)
	task, _ := args.Get(0).(*types.Task)
	return task, args.Error(1)
}

func (m *MockTaskService) UpdateStatus(ctx context.Context, callerID, taskID uuid.UUID, status types.TaskStatus) (*types.Task, error) {
	args := m.Called(ctx, callerID, taskID, status)
	task, _ := args.Get(0).(*types.Task)
	return task, args.Error(1)
}

func (m *MockTaskService) Get(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	args := m.Called(ctx, taskID)
	task, _ := args.Get(0).(*types.Task)
	return task, args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, email, displayName string) (*types.User, error) {
	args := m.Called(ctx, email, displayName)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockUserService) RecordLogin(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserService) Get(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestHandleCreateTask(t *testing.T) {
	callerID := uuid.New()

	t.Run("creates and returns 201", func(t *testing.T) {
		tasksSvc := new(MockTaskService)
		srv := NewServer(nil, tasksSvc, nil, nil, nil, nil, nil, nil, slog.Default())

		tasksSvc.On("CreateTask", mock.Anything, callerID, mock.AnythingOfType("tasks.CreateTaskParams")).
			Return(&types.Task{ID: uuid.New(), Title: "Write docs", Status: types.TaskStatusTodo}, nil)

		rec := httptest.NewRecorder()
		srv.HandleCreateTask(rec, authedRequest(http.MethodPost, "/v1/tasks", `{"title":"Write docs"}`, callerID))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), "Write docs")
	})

	t.Run("unauthenticated requests get 401", func(t *testing.T) {
		srv := NewServer(nil, new(MockTaskService), nil, nil, nil, nil, nil, nil, slog.Default())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(`{"title":"x"}`))
		srv.HandleCreateTask(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed JSON gets 400", func(t *testing.T) {
		srv := NewServer(nil, new(MockTaskService), nil, nil, nil, nil, nil, nil, slog.Default())

		rec := httptest.NewRecorder()
		srv.HandleCreateTask(rec, authedRequest(http.MethodPost, "/v1/tasks", `{"title":`, callerID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleUpdateTaskStatus(t *testing.T) {
	callerID := uuid.New()
	taskID := uuid.New()

	t.Run("forbidden callers get 403", func(t *testing.T) {
		tasksSvc := new(MockTaskService)
		srv := NewServer(nil, tasksSvc, nil, nil, nil, nil, nil, nil, slog.Default())

		tasksSvc.On("UpdateStatus", mock.Anything, callerID, taskID, types.TaskStatusCompleted).
			Return(nil, types.ErrForbidden)

		body := `{"task_id":"` + taskID.String() + `","status":"completed"}`
		rec := httptest.NewRecorder()
		srv.HandleUpdateTaskStatus(rec, authedRequest(http.MethodPost, "/v1/tasks/status", body, callerID))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing tasks get 404", func(t *testing.T) {
		tasksSvc := new(MockTaskService)
		srv := NewServer(nil, tasksSvc, nil, nil, nil, nil, nil, nil, slog.Default())

		tasksSvc.On("UpdateStatus", mock.Anything, callerID, taskID, types.TaskStatusTodo).
			Return(nil, types.ErrNotFound)

		body := `{"task_id":"` + taskID.String() + `","status":"todo"}`
		rec := httptest.NewRecorder()
		srv.HandleUpdateTaskStatus(rec, authedRequest(http.MethodPost, "/v1/tasks/status", body, callerID))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleDeleteUser(t *testing.T) {
	callerID := uuid.New()

	t.Run("self deletion is allowed", func(t *testing.T) {
		usersSvc := new(MockUserService)
		srv := NewServer(usersSvc, nil, nil, nil, nil, nil, nil, nil, slog.Default())

		usersSvc.On("Delete", mock.Anything, callerID).Return(nil)

		req := authedRequest(http.MethodDelete, "/v1/users/"+callerID.String(), "", callerID)
		req.SetPathValue("id", callerID.String())
		rec := httptest.NewRecorder()
		srv.HandleDeleteUser(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("non-admins cannot delete others", func(t *testing.T) {
		usersSvc := new(MockUserService)
		srv := NewServer(usersSvc, nil, nil, nil, nil, nil, nil, nil, slog.Default())

		otherID := uuid.New()
		usersSvc.On("Get", mock.Anything, callerID).Return(&types.User{ID: callerID, Role: types.RoleUser}, nil)

		req := authedRequest(http.MethodDelete, "/v1/users/"+otherID.String(), "", callerID)
		req.SetPathValue("id", otherID.String())
		rec := httptest.NewRecorder()
		srv.HandleDeleteUser(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		usersSvc.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("admins can delete others", func(t *testing.T) {
		usersSvc := new(MockUserService)
		srv := NewServer(usersSvc, nil, nil, nil, nil, nil, nil, nil, slog.Default())

		otherID := uuid.New()
		usersSvc.On("Get", mock.Anything, callerID).Return(&types.User{ID: callerID, Role: types.RoleAdmin}, nil)
		usersSvc.On("Delete", mock.Anything, otherID).Return(nil)

		req := authedRequest(http.MethodDelete, "/v1/users/"+otherID.String(), "", callerID)
		req.SetPathValue("id", otherID.String())
		rec := httptest.NewRecorder()
		srv.HandleDeleteUser(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
