package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	docs "marketbridge/docs"
	appcharts "marketbridge/internal/application/service/charts"
	"marketbridge/internal/config"
	"marketbridge/internal/infrastructure/archive"
	"marketbridge/internal/infrastructure/catalog"
	"marketbridge/internal/infrastructure/kvstore"
	"marketbridge/internal/infrastructure/relay"
	"marketbridge/internal/infrastructure/telemetry"
	"marketbridge/internal/infrastructure/tradingview"
	infrahttp "marketbridge/internal/interfaces/http"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	serviceName    = "marketbridge"
	serviceVersion = "1.0.0"

	archiveFlushSize    = 500
	archiveFlushTimeout = 2 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Host = cfg.HTTP.Addr()

	if err := telemetry.Init(telemetry.Config{
		Enabled:        cfg.Telemetry.TracingEnabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	}); err != nil {
		logger.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := telemetry.Shutdown(flushCtx); err != nil {
			logger.Errorf("tracing shutdown error: %v", err)
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var kv *kvstore.Store
	collab := appcharts.Collaborators{}
	if redisClient != nil {
		kv = kvstore.New(redisClient, logger)
		collab.Watchlists = kv
		collab.Indicators = kv
	}

	if cfg.Postgres.Enabled() {
		archiveRepo, err := archive.NewRepository(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatalf("failed to init chart archive: %v", err)
		}
		defer archiveRepo.Close()

		if err := archiveRepo.EnsureSchema(ctx); err != nil {
			logger.Fatalf("failed to migrate chart archive: %v", err)
		}

		writer := archive.NewWriter(archive.BatchConfig{
			Size:    archiveFlushSize,
			Timeout: archiveFlushTimeout,
		}, archiveRepo, logger)
		writer.Run(ctx)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := writer.Stop(stopCtx); err != nil {
				logger.Errorf("archive writer stop error: %v", err)
			}
		}()
		collab.Archive = writer

		symbolCatalog, err := catalog.New(cfg.Postgres.DSN, logger)
		if err != nil {
			logger.Fatalf("failed to init symbol catalog: %v", err)
		}
		collab.Catalog = symbolCatalog
	}

	if cfg.Rabbit.Enabled() {
		publisher, err := relay.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange, logger)
		if err != nil {
			logger.Fatalf("failed to init event relay: %v", err)
		}
		defer publisher.Close()
		collab.Relay = publisher
	}

	dialer := tradingview.NewDialer(cfg.TradingView.URL, cfg.TradingView.Origin, cfg.TradingView.HandshakeTimeout())
	observer := telemetry.Multi{telemetry.NewLogObserver(logger), telemetry.SpanObserver{}}
	manager := tradingview.NewManager(dialer, tradingview.ManagerConfig{
		IdleGrace: cfg.TradingView.IdleGrace(),
		Pool: tradingview.PoolConfig{
			Capacity:       cfg.TradingView.PoolCapacity,
			StaleThreshold: cfg.TradingView.StaleThreshold,
			Session: tradingview.SessionConfig{
				HelloTimeout:   cfg.TradingView.HelloTimeout(),
				ResolveTimeout: cfg.TradingView.ResolveTimeout(),
				SeriesTimeout:  cfg.TradingView.SeriesTimeout(),
				BarIdleTimeout: cfg.TradingView.BarIdleTimeout(),
			},
		},
	}, observer, logger)
	defer manager.Close()

	chartService := appcharts.NewService(tradingview.NewPoolBroker(manager), appcharts.Config{
		BatchSize:           cfg.Batch.Size,
		ParallelConnections: cfg.Batch.ParallelConnections,
	}, collab, logger)

	handler := infrahttp.NewHandler(chartService, kv, manager, redisClient, cfg.Cache.TTL())

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")
}
