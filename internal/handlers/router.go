// Package handlers exposes the HTTP API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guia_service/internal/ledger"
	"guia_service/internal/logger"
	"guia_service/internal/payments"
	"guia_service/internal/readings"
	"guia_service/internal/store"
)

type Dependencies struct {
	JWTKey         []byte
	TokenTTL       time.Duration
	AllowedOrigins []string

	Verifier   IDTokenVerifier
	Store      store.Store
	Ledger     *ledger.Service
	Readings   *readings.Service
	Payments   *payments.Service
	Dispatcher payments.Dispatcher
	// nil disables the matching webhook
	StripeWebhook WebhookParser
	PixWebhook    WebhookParser

	Log *zap.Logger
}

func NewRouter(d Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(d.Log))
	router.Use(CORSMiddleware(d.AllowedOrigins))

	tokenHandler := NewTokenHandler(d.JWTKey, d.TokenTTL, d.Verifier, d.Store, d.Log)
	userHandler := NewUserHandler(d.Store, d.Ledger)
	readingHandler := NewReadingHandler(d.Readings)
	journalHandler := NewJournalHandler(d.Store)
	paymentHandler := NewPaymentHandler(d.Payments, d.Dispatcher, d.StripeWebhook, d.PixWebhook, d.Log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/token", tokenHandler.CreateToken)
	router.GET("/tools", readingHandler.ListTools)
	router.GET("/payments/packages", paymentHandler.ListPackages)
	router.POST("/webhooks/stripe", paymentHandler.StripeWebhook)
	router.POST("/webhooks/pix", paymentHandler.PixWebhook)

	auth := router.Group("/", AuthMiddleware(d.JWTKey))
	{
		auth.GET("/me", userHandler.GetMe)
		auth.POST("/me/onboarding", userHandler.CompleteOnboarding)
		auth.POST("/me/daily-bonus", userHandler.ClaimDailyBonus)
		auth.GET("/me/transactions", userHandler.ListTransactions)

		auth.POST("/readings", readingHandler.CreateReading)
		auth.GET("/readings", readingHandler.ListReadings)
		auth.GET("/readings/:id", readingHandler.GetReading)

		auth.GET("/journal", journalHandler.ListEntries)
		auth.POST("/journal", journalHandler.CreateEntry)
		auth.GET("/journal/:id", journalHandler.GetEntry)
		auth.PUT("/journal/:id", journalHandler.UpdateEntry)
		auth.DELETE("/journal/:id", journalHandler.DeleteEntry)

		auth.GET("/rituals", journalHandler.ListRituals)
		auth.POST("/rituals", journalHandler.CreateRitual)

		auth.POST("/payments/checkout", paymentHandler.CreateCheckout)
	}

	return router
}
