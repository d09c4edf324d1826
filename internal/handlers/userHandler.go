package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"guia_service/internal/ledger"
	"guia_service/internal/readings"
	"guia_service/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type UserHandler struct {
	store  store.Store
	ledger *ledger.Service
}

func NewUserHandler(s store.Store, l *ledger.Service) *UserHandler {
	return &UserHandler{store: s, ledger: l}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	u, err := h.store.GetUser(c.Request.Context(), c.GetString(ctxUID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// CompleteOnboarding stores the birth profile and grants the welcome bonus.
// The sign is derived from the birth date when the client does not send one.
func (h *UserHandler) CompleteOnboarding(c *gin.Context) {
	var req OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	profile := ledger.Profile{
		DisplayName: req.DisplayName,
		BirthDate:   req.BirthDate,
		BirthTime:   req.BirthTime,
		BirthPlace:  req.BirthPlace,
	}
	if req.BirthDate != "" {
		birth, err := readings.ParseBirthDate(req.BirthDate, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		profile.ZodiacSign = readings.SignFromDate(birth).Key
	}
	if req.ZodiacSign != "" {
		sign, ok := readings.ParseSign(req.ZodiacSign)
		if !ok {
			respondError(c, fmt.Errorf("%w: unknown sign %q", readings.ErrInvalidInput, req.ZodiacSign))
			return
		}
		profile.ZodiacSign = sign.Key
	}

	u, err := h.ledger.CompleteOnboarding(c.Request.Context(), c.GetString(ctxUID), profile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) ClaimDailyBonus(c *gin.Context) {
	res, err := h.ledger.ClaimDailyBonus(c.Request.Context(), c.GetString(ctxUID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *UserHandler) ListTransactions(c *gin.Context) {
	txs, err := h.ledger.History(c.Request.Context(), c.GetString(ctxUID), listLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// listLimit reads ?limit=, clamped to [1, maxListLimit].
func listLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

type OnboardingRequest struct {
	DisplayName string `json:"displayName"`
	BirthDate   string `json:"birthDate"`
	BirthTime   string `json:"birthTime"`
	BirthPlace  string `json:"birthPlace"`
	ZodiacSign  string `json:"zodiacSign"`
}
