package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jhonier182/lista-mercado/internal/amqp"
	"github.com/jhonier182/lista-mercado/internal/auth"
	"github.com/jhonier182/lista-mercado/internal/cli"
	"github.com/jhonier182/lista-mercado/internal/core"
	apphttp "github.com/jhonier182/lista-mercado/internal/http"
	"github.com/jhonier182/lista-mercado/internal/log"
	"github.com/jhonier182/lista-mercado/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "timezone", cfg.Timezone, log.FieldError, err)
		os.Exit(1)
	}

	backends, err := cli.InitBackends(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backends", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()
	repo := backends.Store.Repository

	identity, err := auth.New(repo, auth.Config{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.SessionTTL,
		Issuer: "listamercado",
	})
	if err != nil {
		logger.Error("Failed to initialize auth", log.FieldError, err)
		os.Exit(1)
	}
	authLog := logger.WithComponent(log.ComponentAuth)
	identity.OnAuthStateChange(func(ev core.AuthEvent) {
		if ev.User != nil {
			authLog.Info("Auth state changed", "event", string(ev.Type), log.FieldOwnerID, ev.User.ID)
		}
	})

	// Price events are only published when a broker is configured.
	var publisher services.PriceEventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		logger.WithComponent(log.ComponentAMQP).Info("Publishing price events", "exchange", cfg.AMQPExchange)
	}

	opts := []services.Option{services.WithLocation(loc)}
	history := services.NewPriceHistoryRecorder(repo, repo, publisher, opts...)
	categories := services.NewCategoryService(repo, opts...)
	stores := services.NewStoreService(repo, opts...)
	products := services.NewProductService(repo, repo, repo, history, opts...)
	expenses := services.NewExpenseService(repo, backends.Exporter.Reports, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Auth:       identity,
		Categories: categories,
		Stores:     stores,
		Products:   products,
		History:    history,
		Expenses:   expenses,
		Comparison: services.NewComparisonService(repo, repo, opts...),
		Dashboard:  services.NewDashboardService(products, categories, stores, expenses, opts...),
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.CacheTTL,
		CacheSize:          cfg.CacheSize,
		Logger:             logger,
		Location:           loc,
		Ready:              repo.Ping,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting listamercado server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"export", cfg.ExportBackend,
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
