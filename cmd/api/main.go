package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/haggle-backend/api/routes"
	"github.com/angelmondragon/haggle-backend/internal/checkout"
	"github.com/angelmondragon/haggle-backend/internal/install"
	"github.com/angelmondragon/haggle-backend/internal/negotiation"
	"github.com/angelmondragon/haggle-backend/internal/pricing"
	"github.com/angelmondragon/haggle-backend/pkg/config"
	"github.com/angelmondragon/haggle-backend/pkg/logger"
	"github.com/angelmondragon/haggle-backend/pkg/metrics"
	"github.com/angelmondragon/haggle-backend/pkg/oracle"
	"github.com/angelmondragon/haggle-backend/pkg/redis"
	"github.com/angelmondragon/haggle-backend/pkg/shopify"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisClient = client
	} else if cfg.App.IsDev() {
		logg.Info(ctx, "redis not configured; running without shared state")
	} else {
		logg.Warn(ctx, "redis not configured; running without shared state")
	}

	maxDiscount, err := cfg.Pricing.MaxDiscountRatio()
	if err != nil {
		return err
	}
	defaultDiscount, err := cfg.Pricing.DefaultDiscountRatio()
	if err != nil {
		return err
	}
	policy, err := pricing.NewPolicy(maxDiscount, defaultDiscount)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	negotiationMetrics := metrics.NewNegotiationMetrics(registry)

	oracleClient := oracle.NewClient(
		cfg.Oracle.WebhookURL,
		cfg.Oracle.WebhookSecret,
		oracle.WithHTTPClient(&http.Client{Timeout: cfg.Oracle.Timeout}),
	)
	if !oracleClient.Configured() {
		msg := "oracle webhook secret missing; negotiation requests will fail as misconfigured"
		if cfg.App.IsProd() {
			logg.Error(ctx, msg, nil)
		} else {
			logg.Warn(ctx, msg)
		}
	}

	shopifyOpts := []shopify.Option{shopify.WithHTTPClient(&http.Client{Timeout: cfg.Shopify.Timeout})}
	installParams := install.ServiceParams{Logger: logg}
	if redisClient != nil {
		tokens, err := install.NewTokenStore(redisClient)
		if err != nil {
			return err
		}
		shopifyOpts = append(shopifyOpts, shopify.WithTokenSource(tokens))
		installParams.Tokens = tokens
	}
	shopifyClient := shopify.NewClient(cfg.Shopify, shopifyOpts...)
	installParams.Exchanger = shopifyClient

	committer, err := checkout.NewCommitter(shopifyClient, logg)
	if err != nil {
		return err
	}

	var guard *negotiation.CommitGuard
	if cfg.Negotiation.CommitGuardEnabled && redisClient != nil {
		guard, err = negotiation.NewCommitGuard(redisClient, cfg.Negotiation.CommitGuardWindow)
		if err != nil {
			return err
		}
	}

	negotiationService, err := negotiation.NewService(negotiation.ServiceParams{
		Oracle:             oracleClient,
		Committer:          committer,
		Policy:             policy,
		Guard:              guard,
		Metrics:            negotiationMetrics,
		Logger:             logg,
		CurrencySymbol:     cfg.Pricing.CurrencySymbol,
		OracleTimeout:      cfg.Oracle.Timeout,
		CommitTimeout:      cfg.Shopify.Timeout,
		InferLockFromPrice: cfg.Negotiation.InferLockFromPrice,
	})
	if err != nil {
		return err
	}

	installService, err := install.NewService(installParams)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, redisClient, negotiationService, installService, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(groupCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(shutdownCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
