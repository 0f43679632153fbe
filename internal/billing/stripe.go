package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/atoyama/workmate-api/internal/types"
)

// CreatedSubscription is the slice of the provider response the
// checkout flow needs.
type CreatedSubscription struct {
	ID           string
	Status       string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	ClientSecret string
}

// Client is the billing-provider surface consumed by the subscription
// service. The provider remains the source of truth; everything local
// is a projection.
type Client interface {
	CreateCustomer(ctx context.Context, email string, userID string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*CreatedSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ChangePlan(ctx context.Context, subscriptionID, newPriceID string) error
}

// WebhookVerifier authenticates and decodes inbound provider events.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (types.BillingEvent, error)
}

var _ Client = (*StripeClient)(nil)
var _ WebhookVerifier = (*StripeClient)(nil)

// StripeClient implements Client and WebhookVerifier against the Stripe
// API.
type StripeClient struct {
	api           *client.API
	webhookSecret string
}

// NewStripeClient builds a client bound to the given secret key.
func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api, webhookSecret: webhookSecret}
}

func (s *StripeClient) CreateCustomer(ctx context.Context, email string, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	customer, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return customer.ID, nil
}

func (s *StripeClient) CreateSubscription(ctx context.Context, customerID, priceID string) (*CreatedSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.confirmation_secret")

	sub, err := s.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe subscription: %w", err)
	}

	created := &CreatedSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if len(sub.Items.Data) > 0 {
		created.PeriodStart = time.Unix(sub.Items.Data[0].CurrentPeriodStart, 0)
		created.PeriodEnd = time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0)
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		created.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	return created, nil
}

func (s *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := s.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("failed to cancel stripe subscription: %w", err)
	}
	return nil
}

func (s *StripeClient) ChangePlan(ctx context.Context, subscriptionID, newPriceID string) error {
	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := s.api.Subscriptions.Get(subscriptionID, getParams)
	if err != nil {
		return fmt.Errorf("failed to retrieve stripe subscription: %w", err)
	}
	if len(sub.Items.Data) == 0 {
		return fmt.Errorf("stripe subscription %s has no items", subscriptionID)
	}

	updateParams := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(newPriceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	updateParams.Context = ctx
	if _, err := s.api.Subscriptions.Update(subscriptionID, updateParams); err != nil {
		return fmt.Errorf("failed to update stripe subscription: %w", err)
	}
	return nil
}

// invoicePayload and subscriptionPayload decode only the fields the
// projector consumes, out of event.Data.Raw. Decoding the raw JSON keeps
// the handler stable across provider API versions.
type invoicePayload struct {
	Subscription string `json:"subscription"`
}

type subscriptionPayload struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}

// VerifyEvent checks the Stripe-Signature header against the shared
// webhook secret and maps the event onto the closed BillingEventType
// set. Unrecognized provider types map to BillingEventUnknown with no
// error: the caller acknowledges them so the provider does not retry.
func (s *StripeClient) VerifyEvent(payload []byte, signatureHeader string) (types.BillingEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return types.BillingEvent{}, fmt.Errorf("webhook signature verification failed: %w", types.ErrUnauthenticated)
	}

	out := types.BillingEvent{
		ID:           event.ID,
		ProviderType: string(event.Type),
	}

	switch event.Type {
	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return types.BillingEvent{}, fmt.Errorf("failed to decode invoice payload: %w", err)
		}
		out.SubscriptionID = inv.Subscription
		if event.Type == "invoice.payment_succeeded" {
			out.Type = types.BillingEventPaymentSucceeded
		} else {
			out.Type = types.BillingEventPaymentFailed
		}
	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return types.BillingEvent{}, fmt.Errorf("failed to decode subscription payload: %w", err)
		}
		out.SubscriptionID = sub.ID
		out.Status = sub.Status
		out.PeriodStart = time.Unix(sub.CurrentPeriodStart, 0)
		out.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0)
		if event.Type == "customer.subscription.updated" {
			out.Type = types.BillingEventSubscriptionUpdated
		} else {
			out.Type = types.BillingEventSubscriptionDeleted
		}
	default:
		out.Type = types.BillingEventUnknown
	}

	return out, nil
}
