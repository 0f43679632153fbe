package httpapi

import (
	"io"
	"log/slog"
	"net/http"
)

// maxWebhookBody caps inbound webhook payloads at 64 KiB.
const maxWebhookBody = 64 << 10

// HandleStripeWebhook receives provider events. The body must be read
// raw: signature verification covers the exact bytes sent. A bad
// signature is the provider's problem (400); a processing failure is
// ours (500, so the provider retries); everything else is acknowledged.
func (s *Server) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to read webhook body", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable payload"})
		return
	}

	event, err := s.verifier.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.logger.WarnContext(r.Context(), "Webhook verification failed", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid signature"})
		return
	}

	if err := s.webhooks.HandleEvent(r.Context(), event); err != nil {
		s.logger.ErrorContext(r.Context(), "Webhook processing failed",
			slog.String("eventID", event.ID), slog.String("eventType", event.ProviderType), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "event processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
