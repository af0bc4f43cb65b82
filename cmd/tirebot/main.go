// Package main запускает HTTP-сервер бота шиномонтажа.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/tirebot/internal/bot"
	"github.com/mmeshcher/tirebot/internal/checkout"
	"github.com/mmeshcher/tirebot/internal/config"
	"github.com/mmeshcher/tirebot/internal/handler"
	"github.com/mmeshcher/tirebot/internal/messaging"
	"github.com/mmeshcher/tirebot/internal/middleware"
	"github.com/mmeshcher/tirebot/internal/paramstore"
	"github.com/mmeshcher/tirebot/internal/payment"
	"github.com/mmeshcher/tirebot/internal/pickup"
	"github.com/mmeshcher/tirebot/internal/repository"
	"github.com/mmeshcher/tirebot/internal/service"
	"github.com/mmeshcher/tirebot/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var awsCfg aws.Config
	if cfg.ParamPrefix != "" || cfg.SessionTable != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			sugar.Fatalw("aws configuration error", "error", err.Error())
		}
	}

	if cfg.ParamPrefix != "" {
		params, err := paramstore.New(ssm.NewFromConfig(awsCfg))
		if err != nil {
			sugar.Fatalw("parameter store initialization error", "error", err.Error())
		}
		if err := cfg.LoadSecrets(ctx, params); err != nil {
			sugar.Fatalw("load secrets error", "error", err.Error())
		}
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI, time.Now)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var sessions session.Store = repo
	var purger service.SessionPurger = repo
	if cfg.SessionTable != "" {
		store, err := session.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.SessionTable, time.Now)
		if err != nil {
			sugar.Fatalw("session store initialization error", "error", err.Error())
		}
		// DynamoDB удаляет истёкшие записи сам по атрибуту TTL.
		sessions = store
		purger = nil
	}

	var sender messaging.Sender = messaging.LogSender{Logger: logger}
	if cfg.TwilioAccountSID != "" {
		client, err := messaging.NewClient(messaging.Config{
			BaseURL:    cfg.TwilioBaseURL,
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
		}, logger)
		if err != nil {
			sugar.Fatalw("twilio initialization error", "error", err.Error())
		}
		sender = client
	} else {
		sugar.Warn("twilio is not configured, outbound messages are only logged")
	}

	payments := payment.NewClient(cfg.StripeBaseURL, cfg.StripeSecretKey, cfg.PaymentTimeout, logger)
	var intents service.PaymentIntents
	if cfg.StripeSecretKey != "" {
		intents = payments
	} else {
		sugar.Warn("stripe secret key is not set, checkout will fail")
	}

	policy := checkout.Strict
	if cfg.SkipMissingProducts {
		policy = checkout.SkipMissing
	}
	co := checkout.NewService(repo, repo, payments, checkout.Config{
		AppURL:         cfg.AppURL,
		PaymentTimeout: cfg.PaymentTimeout,
		Policy:         policy,
	}, logger)

	codes := pickup.Codes{ServiceURL: cfg.QRServiceURL}

	svc := service.NewService(repo, intents, co, sender, codes, purger, service.Config{
		ReconcileInterval: cfg.ReconcileInterval,
		ReconcileWindow:   cfg.ReconcileWindow,
		CleanupInterval:   cfg.CleanupInterval,
	}, logger)

	b := bot.New(bot.Deps{
		Catalog:  repo,
		Sessions: sessions,
		Users:    repo,
		Orders:   repo,
		Checkout: co,
		Sender:   sender,
		Codes:    codes,
	}, bot.Config{
		SessionTTL:   cfg.SessionTTL,
		StoreTimeout: cfg.StoreTimeout,
		InStockOnly:  cfg.InStockOnly,
	}, logger)

	h := handler.NewHandler(handler.Deps{
		Bot:     b,
		Orders:  svc,
		Inbound: repo,
		Catalog: repo,
		Pinger:  repo,
	}, handler.Config{
		StripeWebhookSecret: cfg.StripeWebhookSecret,
	}, logger,
		middleware.NewTwilioSignature(cfg.TwilioAuthToken, cfg.AppURL),
		middleware.NewAdminAuth(cfg.AdminToken),
	)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Фоновые сверка оплат и очистка сессий
	g.Go(func() error {
		svc.StartPaymentReconciliation(ctx)
		svc.StartSessionCleanup(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting tirebot server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
