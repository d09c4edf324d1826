package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guia_service/internal/clients"
	"guia_service/internal/payments"
)

const maxWebhookBody = 64 << 10

// WebhookParser verifies a provider callback. A nil confirmation means the
// event is valid but not a completed payment.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payments.Confirmation, error)
}

type PaymentHandler struct {
	payments   *payments.Service
	dispatcher payments.Dispatcher
	stripe     WebhookParser
	pix        WebhookParser
	log        *zap.Logger
}

// NewPaymentHandler wires the webhook endpoints. A nil parser disables that
// provider's endpoint.
func NewPaymentHandler(p *payments.Service, d payments.Dispatcher, stripe, pix WebhookParser, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: p, dispatcher: d, stripe: stripe, pix: pix, log: log}
}

func (h *PaymentHandler) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": h.payments.Packages()})
}

func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PackageID == "" {
		respondError(c, fmt.Errorf("%w: packageId is required", errInvalidRequest))
		return
	}
	if req.Method == "" {
		req.Method = payments.MethodCard
	}

	checkout, err := h.payments.CreateCheckout(c.Request.Context(), c.GetString(ctxUID), c.GetString(ctxEmail), req.PackageID, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	h.handleWebhook(c, "stripe", h.stripe, c.GetHeader("Stripe-Signature"))
}

func (h *PaymentHandler) PixWebhook(c *gin.Context) {
	h.handleWebhook(c, "pix", h.pix, c.GetHeader(clients.PixWebhookHeaderName))
}

func (h *PaymentHandler) handleWebhook(c *gin.Context, provider string, parser WebhookParser, signature string) {
	if parser == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": provider + " payments are not enabled"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Warn("webhook body too large", zap.String("provider", provider), zap.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		respondError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	conf, err := parser.ParseWebhook(payload, signature)
	if err != nil {
		h.log.Warn("webhook rejected", zap.String("provider", provider), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if conf == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	err = h.dispatcher.Dispatch(c.Request.Context(), *conf)
	switch {
	case err == nil:
	case payments.IsPermanent(err):
		// retries from the provider cannot fix this one
		h.log.Error("unfulfillable payment confirmation",
			zap.String("provider", provider),
			zap.String("orderId", conf.OrderID),
			zap.Error(err))
	default:
		h.log.Error("payment dispatch failed",
			zap.String("provider", provider),
			zap.String("orderId", conf.OrderID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

type CheckoutRequest struct {
	PackageID string `json:"packageId"`
	Method    string `json:"method"`
}
