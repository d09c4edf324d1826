package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"guia_service/internal/app"
	"guia_service/internal/clients"
	"guia_service/internal/handlers"
	"guia_service/internal/payments"
	"guia_service/internal/queue"
	"guia_service/internal/readings"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	err = run(ctx, a)
	if err != nil {
		a.Log.Error("server stopped", zap.Error(err))
	}
	a.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App) error {
	cfg := a.Config
	gin.SetMode(cfg.Server.Mode)

	gemini, err := clients.NewGeminiClient(ctx, cfg.Secrets.GeminiKey, cfg.Gemini.Model, cfg.Gemini.Temperature)
	if err != nil {
		return err
	}
	readingService := readings.NewService(a.Store, a.Ledger, gemini, a.Log)

	deps := handlers.Dependencies{
		JWTKey:         []byte(cfg.Secrets.JWTKey),
		TokenTTL:       cfg.Token.TTL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Verifier:       a.Firebase,
		Store:          a.Store,
		Ledger:         a.Ledger,
		Readings:       readingService,
		Payments:       a.Payments,
		Dispatcher:     a.Payments,
		Log:            a.Log,
	}

	stripe, pix := a.RegisterProviders()
	if stripe != nil {
		deps.StripeWebhook = stripe
	}
	if pix != nil {
		deps.PixWebhook = pix
	}

	// confirmations go to the worker when a broker is configured
	if cfg.QueueEnabled() {
		q, err := queue.NewClient(cfg.Queue.URL, cfg.Queue.Exchange, cfg.Queue.Queue, a.Log)
		if err != nil {
			return err
		}
		defer q.Close()
		deps.Dispatcher = q
	}
	logDispatcher(a.Log, deps.Dispatcher)

	// App engine port support
	serverPort := os.Getenv("PORT")
	if serverPort == "" {
		serverPort = cfg.Server.Port
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverPort),
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.Log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func logDispatcher(log *zap.Logger, d payments.Dispatcher) {
	mode := "inline"
	if _, ok := d.(*queue.Client); ok {
		mode = "amqp"
	}
	log.Info("payment confirmations", zap.String("dispatch", mode))
}
