package types

import "time"

// BillingEventType is the closed set of provider webhook events this
// system reacts to. Anything else maps to BillingEventUnknown and is
// acknowledged without mutation so the provider does not retry.
type BillingEventType string

const (
	BillingEventPaymentSucceeded    BillingEventType = "payment_succeeded"
	BillingEventPaymentFailed       BillingEventType = "payment_failed"
	BillingEventSubscriptionUpdated BillingEventType = "subscription_updated"
	BillingEventSubscriptionDeleted BillingEventType = "subscription_deleted"
	BillingEventUnknown             BillingEventType = "unknown"
)

// BillingEvent is the verified, decoded form of a provider webhook
// envelope. SubscriptionID is the provider's id, not a local key.
// Delivery is at-least-once and possibly out of order; consumers must
// apply events as unconditional overwrites.
type BillingEvent struct {
	ID             string
	Type           BillingEventType
	ProviderType   string // raw provider event tag, kept for logging
	SubscriptionID string
	Status         string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}
