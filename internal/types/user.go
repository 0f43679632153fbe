package types

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes regular members from admins.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserSubscriptionStatus is the projection of the billing provider's
// subscription lifecycle onto the user document. Only the webhook
// projector and the explicit cancel/change operations write it.
type UserSubscriptionStatus string

const (
	UserSubscriptionNone     UserSubscriptionStatus = "none"
	UserSubscriptionActive   UserSubscriptionStatus = "active"
	UserSubscriptionCanceled UserSubscriptionStatus = "canceled"
	UserSubscriptionExpired  UserSubscriptionStatus = "expired"
)

// User is the account document created on signup.
type User struct {
	ID                 uuid.UUID              `json:"id"`
	Email              string                 `json:"email"`
	DisplayName        string                 `json:"display_name"`
	Role               Role                   `json:"role"`
	SubscriptionStatus UserSubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan   *string                `json:"subscription_plan,omitempty"` // "basic", "premium", "enterprise"
	StripeCustomerID   *string                `json:"stripe_customer_id,omitempty"`
	FCMToken           *string                `json:"fcm_token,omitempty"`
	EmailNotifications bool                   `json:"email_notifications"`
	CreatedAt          time.Time              `json:"created_at"`
	LastLoginAt        *time.Time             `json:"last_login_at,omitempty"`
}
