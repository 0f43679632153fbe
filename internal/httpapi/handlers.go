package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atoyama/workmate-api/internal/domain/reports"
	"github.com/atoyama/workmate-api/internal/domain/tasks"
	"github.com/atoyama/workmate-api/internal/types"
	"github.com/atoyama/workmate-api/pkg/middleware"
)

// caller extracts the authenticated user id or writes a 401.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		s.writeError(w, r, fmt.Errorf("authentication required: %w", types.ErrUnauthenticated))
		return uuid.Nil, false
	}
	return id, true
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (s *Server) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.users.RecordLogin(r.Context(), callerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	targetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("invalid user id: %w", types.ErrBadRequest))
		return
	}

	if targetID != callerID {
		caller, err := s.users.Get(r.Context(), callerID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if caller.Role != types.RoleAdmin {
			s.writeError(w, r, fmt.Errorf("cannot delete another user's account: %w", types.ErrForbidden))
			return
		}
	}

	if err := s.users.Delete(r.Context(), targetID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (s *Server) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.tasks.CreateTask(r.Context(), callerID, tasks.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Priority:    types.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

type updateTaskStatusRequest struct {
	TaskID uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

func (s *Server) HandleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req updateTaskStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.tasks.UpdateStatus(r.Context(), callerID, req.TaskID, types.TaskStatus(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type checkoutRequest struct {
	PriceID string `json:"price_id"`
}

func (s *Server) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.subscriptions.Checkout(r.Context(), callerID, req.PriceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type cancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

func (s *Server) HandleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req cancelSubscriptionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.subscriptions.Cancel(r.Context(), callerID, req.SubscriptionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePlanRequest struct {
	SubscriptionID string `json:"subscription_id"`
	PriceID        string `json:"price_id"`
}

func (s *Server) HandleChangePlan(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req changePlanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.subscriptions.ChangePlan(r.Context(), callerID, req.SubscriptionID, req.PriceID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateReportRequest struct {
	Type string `json:"type"`
}

func (s *Server) HandleGenerateReport(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req generateReportRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.reports.Generate(r.Context(), callerID, reports.ReportType(req.Type))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type sendNotificationRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Type    string    `json:"type,omitempty"`
}

func (s *Server) HandleSendNotification(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req sendNotificationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.UserID == uuid.Nil || req.Title == "" || req.Message == "" {
		s.writeError(w, r, fmt.Errorf("user_id, title and message are required: %w", types.ErrBadRequest))
		return
	}

	if err := s.notifications.Send(r.Context(), callerID, req.UserID, req.Title, req.Message, req.Type); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateSuggestionRequest struct {
	Category string `json:"category,omitempty"`
	Context  string `json:"context,omitempty"`
}

func (s *Server) HandleGenerateSuggestion(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req generateSuggestionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	suggestion, err := s.suggestions.Generate(r.Context(), callerID, types.SuggestionCategory(req.Category), req.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

type updateSuggestionStatusRequest struct {
	SuggestionID uuid.UUID `json:"suggestion_id"`
	Status       string    `json:"status"`
}

func (s *Server) HandleUpdateSuggestionStatus(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req updateSuggestionStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	suggestion, err := s.suggestions.UpdateStatus(r.Context(), callerID, req.SuggestionID, types.SuggestionStatus(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}
