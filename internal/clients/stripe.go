package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"guia_service/internal/payments"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
	// APIURL overrides the Stripe endpoint; empty means production.
	APIURL string
}

type StripeClient struct {
	api *client.API
	cfg StripeConfig
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(cfg.APIURL),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeClient{api: api, cfg: cfg}
}

// CreateCheckout opens a hosted Checkout Session for one package.
func (s *StripeClient) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s (%d Pontos Cósmicos)", req.Package.Name, req.Package.Points)),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(strings.ReplaceAll(s.cfg.SuccessURL, "{ORDER_ID}", req.OrderID)),
		CancelURL:         stripe.String(s.cfg.CancelURL),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata("orderId", req.OrderID)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &payments.Checkout{URL: sess.URL, ExternalID: sess.ID}, nil
}

// ParseWebhook verifies the Stripe-Signature header. It returns a nil
// confirmation for events that do not mean a paid checkout.
func (s *StripeClient) ParseWebhook(payload []byte, signature string) (*payments.Confirmation, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrInvalidSignature, err)
	}
	if string(event.Type) != "checkout.session.completed" {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, nil
	}

	orderID := sess.ClientReferenceID
	if orderID == "" {
		orderID = sess.Metadata["orderId"]
	}
	return &payments.Confirmation{
		OrderID:     orderID,
		Provider:    "stripe",
		ExternalID:  sess.ID,
		AmountCents: sess.AmountTotal,
	}, nil
}
