package types

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a delivery record; the out-of-band push/email send is
// best-effort and not reflected here.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	SenderID  *uuid.UUID `json:"sender_id,omitempty"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
}
