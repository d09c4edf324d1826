// Package app builds the pieces shared by the API server, the payment worker
// and the admin CLI.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"guia_service/internal/clients"
	"guia_service/internal/config"
	"guia_service/internal/ledger"
	"guia_service/internal/logger"
	"guia_service/internal/payments"
	"guia_service/internal/store"
)

type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Firebase *clients.Firebase
	Store    store.Store
	Ledger   *ledger.Service
	Payments *payments.Service
}

// New loads configuration for APP_ENV (default "default"), then connects to
// Firebase and builds the ledger and payment services on top of Firestore.
func New(ctx context.Context) (*App, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	cfg, err := config.Load(env)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	fb, err := clients.InitFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return nil, err
	}

	s := store.NewFirestoreStore(fb.Firestore, cfg.Storage.UserCollection, cfg.Storage.OrderCollection)
	l := ledger.NewService(s, LedgerRules(cfg), log)
	p := payments.NewService(s, l, Packages(cfg), log)

	return &App{
		Config:   cfg,
		Log:      log,
		Firebase: fb,
		Store:    s,
		Ledger:   l,
		Payments: p,
	}, nil
}

// RegisterProviders enables the payment methods whose secrets are configured
// and returns their clients. A disabled provider comes back nil.
func (a *App) RegisterProviders() (*clients.StripeClient, *clients.PixClient) {
	cfg := a.Config
	var (
		stripe *clients.StripeClient
		pix    *clients.PixClient
	)
	if cfg.Secrets.StripeKey != "" {
		stripe = clients.NewStripeClient(clients.StripeConfig{
			SecretKey:     cfg.Secrets.StripeKey,
			WebhookSecret: cfg.Secrets.StripeWebhookSecret,
			Currency:      cfg.Payments.Currency,
			SuccessURL:    cfg.Payments.SuccessURL,
			CancelURL:     cfg.Payments.CancelURL,
		})
		a.Payments.RegisterProvider(payments.MethodCard, stripe)
	}
	if cfg.Secrets.PixAppID != "" {
		pix = clients.NewPixClient(cfg.Payments.PixBaseURL, cfg.Secrets.PixAppID, cfg.Secrets.PixWebhookSecret)
		a.Payments.RegisterProvider(payments.MethodPix, pix)
	}
	a.Log.Info("payment providers",
		zap.Bool("card", stripe != nil),
		zap.Bool("pix", pix != nil))
	return stripe, pix
}

func (a *App) Close() {
	if err := a.Firebase.Close(); err != nil {
		a.Log.Warn("closing firestore", zap.Error(err))
	}
	_ = a.Log.Sync()
}

func LedgerRules(cfg *config.Config) ledger.Rules {
	return ledger.Rules{
		OnboardingBonus:    cfg.Points.OnboardingBonus,
		DailyBase:          cfg.Points.DailyBase,
		DailyStreakStep:    cfg.Points.DailyStreakStep,
		DailyStreakMaxDays: cfg.Points.DailyStreakMaxDays,
		Location:           cfg.Points.Location(),
	}
}

func Packages(cfg *config.Config) []payments.Package {
	out := make([]payments.Package, 0, len(cfg.Payments.Packages))
	for _, p := range cfg.Payments.Packages {
		out = append(out, payments.Package{ID: p.ID, Name: p.Name, Points: p.Points, PriceCents: p.PriceCents})
	}
	return out
}
