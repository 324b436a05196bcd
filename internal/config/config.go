package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultEnv             = "development"
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 8080
	defaultRedisAddr       = "localhost:6379"
	defaultRedisDB         = 0
	defaultCacheTTLSeconds = 30
	defaultRabbitExchange  = "marketbridge.charts"

	defaultPoolCapacity      = 5
	defaultStaleThreshold    = 50
	defaultIdleGraceSeconds  = 30
	defaultHandshakeSeconds  = 10
	defaultHelloSeconds      = 10
	defaultResolveSeconds    = 10
	defaultSeriesSeconds     = 15
	defaultBarIdleSeconds    = 3
	defaultBatchSize         = 18
	defaultParallelConns     = 5
)

// Config keeps the runtime configuration for the service.
type Config struct {
	Env         string
	HTTP        HTTPConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Cache       CacheConfig
	Rabbit      RabbitConfig
	TradingView TradingViewConfig
	Batch       BatchConfig
	Telemetry   TelemetryConfig
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// PostgresConfig stores database connection parameters. An empty DSN
// disables the chart archive and symbol catalog.
type PostgresConfig struct {
	DSN string
}

// Enabled reports whether a database was configured.
func (p PostgresConfig) Enabled() bool {
	return p.DSN != ""
}

// RedisConfig stores Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig stores cache behavior.
type CacheConfig struct {
	TTLSeconds int
}

// TTL renders the cache expiry as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RabbitConfig stores event relay parameters. An empty URL disables the
// relay.
type RabbitConfig struct {
	URL      string
	Exchange string
}

// Enabled reports whether a broker was configured.
func (r RabbitConfig) Enabled() bool {
	return r.URL != ""
}

// TradingViewConfig stores upstream websocket, pool, and per-session
// timeout parameters.
type TradingViewConfig struct {
	URL              string
	Origin           string
	PoolCapacity     int
	StaleThreshold   int
	IdleGraceSeconds int
	HandshakeSeconds int
	HelloSeconds     int
	ResolveSeconds   int
	SeriesSeconds    int
	BarIdleSeconds   int
}

// IdleGrace renders the pool idle grace window as a duration.
func (t TradingViewConfig) IdleGrace() time.Duration {
	return time.Duration(t.IdleGraceSeconds) * time.Second
}

// HandshakeTimeout renders the websocket handshake timeout as a duration.
func (t TradingViewConfig) HandshakeTimeout() time.Duration {
	return time.Duration(t.HandshakeSeconds) * time.Second
}

// HelloTimeout bounds the wait for the upstream greeting after connect.
func (t TradingViewConfig) HelloTimeout() time.Duration {
	return time.Duration(t.HelloSeconds) * time.Second
}

// ResolveTimeout bounds the wait for a symbol resolution response.
func (t TradingViewConfig) ResolveTimeout() time.Duration {
	return time.Duration(t.ResolveSeconds) * time.Second
}

// SeriesTimeout bounds series creation.
func (t TradingViewConfig) SeriesTimeout() time.Duration {
	return time.Duration(t.SeriesSeconds) * time.Second
}

// BarIdleTimeout is the quiet period after which a series counts as settled.
func (t TradingViewConfig) BarIdleTimeout() time.Duration {
	return time.Duration(t.BarIdleSeconds) * time.Second
}

// BatchConfig stores batch fetch sizing.
type BatchConfig struct {
	Size                int
	ParallelConnections int
}

// TelemetryConfig switches tracing output.
type TelemetryConfig struct {
	TracingEnabled bool
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	host := getString("HTTP_HOST", defaultHTTPHost)
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse HTTP_PORT: %w", err)
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	cacheTTL, err := getInt("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_TTL_SECONDS: %w", err)
	}

	poolCapacity, err := getInt("TV_POOL_CAPACITY", defaultPoolCapacity)
	if err != nil {
		return nil, fmt.Errorf("parse TV_POOL_CAPACITY: %w", err)
	}

	staleThreshold, err := getInt("TV_STALE_THRESHOLD", defaultStaleThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse TV_STALE_THRESHOLD: %w", err)
	}

	idleGrace, err := getInt("TV_IDLE_GRACE_SECONDS", defaultIdleGraceSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse TV_IDLE_GRACE_SECONDS: %w", err)
	}

	handshake, err := getInt("TV_HANDSHAKE_SECONDS", defaultHandshakeSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse TV_HANDSHAKE_SECONDS: %w", err)
	}

	hello, err := getInt("TV_HELLO_SECONDS", defaultHelloSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse TV_HELLO_SECONDS: %w", err)
	}

	resolve, err := getInt("TV_RESOLVE_SECONDS", defaultResolveSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse TV_RESOLVE_SECONDS: %w", err)
	}

	series, err := getInt("TV_SERIES_SECONDS", defaultSeriesSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse TV_SERIES_SECONDS: %w", err)
	}

	barIdle, err := getInt("TV_BAR_IDLE_SECONDS", defaultBarIdleSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse TV_BAR_IDLE_SECONDS: %w", err)
	}

	batchSize, err := getInt("BATCH_SIZE", defaultBatchSize)
	if err != nil {
		return nil, fmt.Errorf("parse BATCH_SIZE: %w", err)
	}

	parallel, err := getInt("PARALLEL_CONNECTIONS", defaultParallelConns)
	if err != nil {
		return nil, fmt.Errorf("parse PARALLEL_CONNECTIONS: %w", err)
	}

	tracing, err := getBool("TRACING_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("parse TRACING_ENABLED: %w", err)
	}

	return &Config{
		Env:  getString("APP_ENV", defaultEnv),
		HTTP: HTTPConfig{Host: host, Port: port},
		Postgres: PostgresConfig{
			DSN: os.Getenv("DATABASE_DSN"),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			TTLSeconds: cacheTTL,
		},
		Rabbit: RabbitConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getString("RABBITMQ_EXCHANGE", defaultRabbitExchange),
		},
		TradingView: TradingViewConfig{
			URL:              getString("TV_WS_URL", ""),
			Origin:           getString("TV_WS_ORIGIN", ""),
			PoolCapacity:     poolCapacity,
			StaleThreshold:   staleThreshold,
			IdleGraceSeconds: idleGrace,
			HandshakeSeconds: handshake,
			HelloSeconds:     hello,
			ResolveSeconds:   resolve,
			SeriesSeconds:    series,
			BarIdleSeconds:   barIdle,
		},
		Batch: BatchConfig{
			Size:                batchSize,
			ParallelConnections: parallel,
		},
		Telemetry: TelemetryConfig{
			TracingEnabled: tracing,
		},
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("convert %s value %q to bool: %w", key, value, err)
	}
	return parsed, nil
}
