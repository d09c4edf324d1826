package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"guia_service/internal/ledger"
	"guia_service/internal/payments"
	"guia_service/internal/readings"
	"guia_service/internal/store"
)

var errInvalidRequest = errors.New("invalid request")

// statusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientPoints):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrAlreadyOnboarded),
		errors.Is(err, ledger.ErrDailyBonusClaimed):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, readings.ErrInvalidInput),
		errors.Is(err, readings.ErrUnknownTool),
		errors.Is(err, payments.ErrUnknownPackage),
		errors.Is(err, payments.ErrMethodUnavailable),
		errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, readings.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": msg}. Internal errors are recorded on the gin
// context for the request logger and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Something went wrong. Please try again!"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
