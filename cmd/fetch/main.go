package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	appcharts "marketbridge/internal/application/service/charts"
	batch "marketbridge/internal/domain/entity/batch"
	"marketbridge/internal/infrastructure/kvstore"
	"marketbridge/internal/infrastructure/telemetry"
	"marketbridge/internal/infrastructure/tradingview"
)

const (
	defaultResolutions = "1D"
	defaultBarCount    = 300
)

type fetchConfig struct {
	JWT         string
	Symbols     []string
	Resolutions []string
	BarCount    int
	Watchlist   string
	Indicator   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WSURL    string
	WSOrigin string

	BatchSize           int
	ParallelConnections int
}

func main() {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collab := appcharts.Collaborators{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("connect redis: %v", err)
		}
		defer redisClient.Close()

		kv := kvstore.New(redisClient, logger)
		collab.Watchlists = kv
		collab.Indicators = kv
	}

	dialer := tradingview.NewDialer(cfg.WSURL, cfg.WSOrigin, 0)
	manager := tradingview.NewManager(dialer, tradingview.ManagerConfig{},
		telemetry.NewLogObserver(logger), logger)
	defer manager.Close()

	service := appcharts.NewService(tradingview.NewPoolBroker(manager), appcharts.Config{
		BatchSize:           cfg.BatchSize,
		ParallelConnections: cfg.ParallelConnections,
	}, collab, logger)

	job := &batch.Job{
		Symbols:     cfg.Symbols,
		Resolutions: cfg.Resolutions,
		BarCount:    cfg.BarCount,
		Watchlist:   cfg.Watchlist,
		Indicator:   cfg.Indicator,
	}

	result, err := service.FetchBatch(ctx, cfg.JWT, job, func(event *batch.Event) {
		logger.WithFields(logrus.Fields{
			"batch":   event.BatchIndex + 1,
			"batches": event.TotalBatches,
			"loaded":  event.Progress.Loaded,
			"total":   event.Progress.Total,
			"percent": event.Progress.Percentage,
		}).Info("batch completed")
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("fetch canceled")
			return
		}
		logger.Fatalf("batch fetch failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(out))

	if result.Failed > 0 {
		os.Exit(1)
	}
}

func loadConfig() (*fetchConfig, error) {
	jwt := strings.TrimSpace(os.Getenv("TV_JWT"))
	if jwt == "" {
		return nil, errors.New("TV_JWT is required")
	}

	symbols := splitList(os.Getenv("SYMBOLS"))
	if file := strings.TrimSpace(os.Getenv("SYMBOLS_FILE")); file != "" {
		fromFile, err := readSymbols(file)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, fromFile...)
	}

	watchlist := strings.TrimSpace(os.Getenv("WATCHLIST"))
	if len(symbols) == 0 && watchlist == "" {
		return nil, errors.New("SYMBOLS, SYMBOLS_FILE or WATCHLIST is required")
	}

	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if watchlist != "" && redisAddr == "" {
		return nil, errors.New("WATCHLIST requires REDIS_ADDR")
	}
	indicator := strings.TrimSpace(os.Getenv("INDICATOR"))
	if indicator != "" && redisAddr == "" {
		return nil, errors.New("INDICATOR requires REDIS_ADDR")
	}

	resolutions := splitList(envOrDefault("RESOLUTIONS", defaultResolutions))

	return &fetchConfig{
		JWT:                 jwt,
		Symbols:             symbols,
		Resolutions:         resolutions,
		BarCount:            intEnv("BAR_COUNT", defaultBarCount),
		Watchlist:           watchlist,
		Indicator:           indicator,
		RedisAddr:           redisAddr,
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             intEnv("REDIS_DB", 0),
		WSURL:               strings.TrimSpace(os.Getenv("TV_WS_URL")),
		WSOrigin:            strings.TrimSpace(os.Getenv("TV_WS_ORIGIN")),
		BatchSize:           intEnv("BATCH_SIZE", 0),
		ParallelConnections: intEnv("PARALLEL_CONNECTIONS", 0),
	}, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readSymbols(path string) ([]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read symbols file: %w", err)
	}
	var payload struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse symbols file: %w", err)
	}
	symbols := make([]string, 0, len(payload.Symbols))
	for _, sym := range payload.Symbols {
		sym = strings.TrimSpace(sym)
		if sym != "" {
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}
