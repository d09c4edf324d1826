package clients

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"guia_service/internal/payments"
)

const (
	pixChargePath        = "/api/v1/charge"
	pixChargeCompleted   = "OPENPIX:CHARGE_COMPLETED"
	PixWebhookHeaderName = "x-webhook-secret"
)

// PixClient creates PIX charges on an OpenPix-compatible API.
type PixClient struct {
	baseURL       string
	appID         string
	webhookSecret string
	httpClient    *http.Client
}

func NewPixClient(baseURL, appID, webhookSecret string) *PixClient {
	return &PixClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		appID:         appID,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

type pixChargeRequest struct {
	CorrelationID string `json:"correlationID"`
	Value         int64  `json:"value"`
	Comment       string `json:"comment,omitempty"`
}

type pixCharge struct {
	CorrelationID string    `json:"correlationID"`
	TransactionID string    `json:"transactionID"`
	GlobalID      string    `json:"globalID"`
	Value         int64     `json:"value"`
	Status        string    `json:"status"`
	BrCode        string    `json:"brCode"`
	QRCodeImage   string    `json:"qrCodeImage"`
	ExpiresDate   time.Time `json:"expiresDate"`
}

type pixChargeResponse struct {
	Charge pixCharge `json:"charge"`
}

func (p *PixClient) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.Checkout, error) {
	body, err := json.Marshal(pixChargeRequest{
		CorrelationID: req.OrderID,
		Value:         req.AmountCents,
		Comment:       fmt.Sprintf("Guia do Coração - %s", req.Package.Name),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+pixChargePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", p.appID)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pix charge: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("pix charge: server returned non-OK status: %d", resp.StatusCode)
	}

	var out pixChargeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode pix charge: %w", err)
	}
	if out.Charge.BrCode == "" {
		return nil, fmt.Errorf("pix charge: response has no brCode")
	}
	return &payments.Checkout{
		PixCode:     out.Charge.BrCode,
		QRCodeImage: out.Charge.QRCodeImage,
		ExpiresAt:   out.Charge.ExpiresDate,
		ExternalID:  out.Charge.GlobalID,
	}, nil
}

type pixWebhookEvent struct {
	Event  string    `json:"event"`
	Charge pixCharge `json:"charge"`
}

// ParseWebhook checks the shared secret and returns a confirmation for
// completed charges. Other events return nil.
func (p *PixClient) ParseWebhook(payload []byte, secret string) (*payments.Confirmation, error) {
	if p.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(p.webhookSecret)) != 1 {
		return nil, payments.ErrInvalidSignature
	}

	var event pixWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode pix webhook: %w", err)
	}
	if event.Event != pixChargeCompleted || event.Charge.CorrelationID == "" {
		return nil, nil
	}

	externalID := event.Charge.TransactionID
	if externalID == "" {
		externalID = event.Charge.GlobalID
	}
	return &payments.Confirmation{
		OrderID:     event.Charge.CorrelationID,
		Provider:    "pix",
		ExternalID:  externalID,
		AmountCents: event.Charge.Value,
	}, nil
}
