package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/atoyama/workmate-api/internal/billing"
	"github.com/atoyama/workmate-api/internal/domain/notifications"
	"github.com/atoyama/workmate-api/internal/domain/reports"
	"github.com/atoyama/workmate-api/internal/domain/subscriptions"
	"github.com/atoyama/workmate-api/internal/domain/suggestions"
	"github.com/atoyama/workmate-api/internal/domain/tasks"
	"github.com/atoyama/workmate-api/internal/domain/users"
	"github.com/atoyama/workmate-api/internal/types"
)

// Server carries the domain services the HTTP handlers delegate to.
type Server struct {
	logger        *slog.Logger
	users         users.Service
	tasks         tasks.Service
	subscriptions subscriptions.Service
	webhooks      subscriptions.WebhookService
	verifier      billing.WebhookVerifier
	suggestions   suggestions.Service
	reports       reports.Service
	notifications notifications.Service
}

func NewServer(
	usersSvc users.Service,
	tasksSvc tasks.Service,
	subsSvc subscriptions.Service,
	webhookSvc subscriptions.WebhookService,
	verifier billing.WebhookVerifier,
	suggestionsSvc suggestions.Service,
	reportsSvc reports.Service,
	notificationsSvc notifications.Service,
	logger *slog.Logger,
) *Server {
	return &Server{
		logger:        logger,
		users:         usersSvc,
		tasks:         tasksSvc,
		subscriptions: subsSvc,
		webhooks:      webhookSvc,
		verifier:      verifier,
		suggestions:   suggestionsSvc,
		reports:       reportsSvc,
		notifications: notificationsSvc,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is an internal error with a generic message so internals
// never leak to clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, types.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, types.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrConflict):
		status = http.StatusConflict
	default:
		s.logger.ErrorContext(r.Context(), "Request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return types.ErrBadRequest
	}
	return nil
}
