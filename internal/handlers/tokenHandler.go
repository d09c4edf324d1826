package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guia_service/internal/clients"
	"guia_service/internal/store"
	"guia_service/internal/utils"
)

// IDTokenVerifier checks Firebase ID tokens.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*clients.VerifiedUser, error)
}

type TokenHandler struct {
	jwtKey   []byte
	ttl      time.Duration
	verifier IDTokenVerifier
	store    store.Store
	log      *zap.Logger
}

func NewTokenHandler(jwtKey []byte, ttl time.Duration, verifier IDTokenVerifier, s store.Store, log *zap.Logger) *TokenHandler {
	return &TokenHandler{
		jwtKey:   jwtKey,
		ttl:      ttl,
		verifier: verifier,
		store:    s,
		log:      log,
	}
}

// CreateToken exchanges a Firebase ID token for a service JWT and makes sure
// the user document exists.
func (h *TokenHandler) CreateToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Request"})
		return
	}

	verified, err := h.verifier.VerifyIDToken(c.Request.Context(), req.IDToken)
	if err != nil {
		h.log.Warn("firebase id token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Token"})
		return
	}

	_, created, err := h.store.EnsureUser(c.Request.Context(), verified.UID, verified.Email, verified.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	if created {
		h.log.Info("user created", zap.String("uid", verified.UID))
	}

	expiryTime := time.Now().Add(h.ttl)
	tokenString, err := utils.CreateTokenFromData(utils.TokenData{
		UID:   verified.UID,
		Email: verified.Email,
	}, expiryTime, h.jwtKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating a token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		JWTToken: tokenString,
		Expiry:   expiryTime.Unix(),
	})
}

type TokenRequest struct {
	IDToken string `json:"idToken"`
}

type TokenResponse struct {
	JWTToken string `json:"jwtToken"`
	Expiry   int64  `json:"expiry"`
}
