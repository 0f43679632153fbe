package types

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is the local projection of a billing-provider
// subscription, keyed by the provider's subscription id for webhook
// updates. Status values mirror the provider's event stream verbatim
// ("active", "past_due", "canceled", ...).
type Subscription struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	PlanID               string     `json:"plan_id"`
	Status               string     `json:"status"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	CurrentPeriodStart   time.Time  `json:"current_period_start"`
	CurrentPeriodEnd     time.Time  `json:"current_period_end"`
	LastPaymentAt        *time.Time `json:"last_payment_at,omitempty"`
	CanceledAt           *time.Time `json:"canceled_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)
