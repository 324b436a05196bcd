package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	marketdata "marketbridge/internal/domain/entity/marketdata"
)

const (
	watchlistKeyPrefix = "wl:"
	indicatorKeyPrefix = "indicator:"
)

var (
	ErrWatchlistNotFound = errors.New("watchlist not found")
	ErrIndicatorNotFound = errors.New("indicator config not found")
)

// Store reads operator-curated watchlists and indicator configurations from
// the shared key-value store. Both are owned by the dashboard side; the
// bridge treats them as read-mostly collaborators.
type Store struct {
	client *redis.Client
	logger *logrus.Entry
}

func New(client *redis.Client, logger *logrus.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.WithField("component", "kvstore"),
	}
}

func watchlistKey(name string) string { return watchlistKeyPrefix + name }

func indicatorKey(id string) string { return indicatorKeyPrefix + id }

// FetchWatchlist returns the symbols of a named list.
func (s *Store) FetchWatchlist(ctx context.Context, name string) ([]string, error) {
	raw, err := s.client.Get(ctx, watchlistKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrWatchlistNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch watchlist %s: %w", name, err)
	}

	var symbols []string
	if err := json.Unmarshal([]byte(raw), &symbols); err != nil {
		return nil, fmt.Errorf("decode watchlist %s: %w", name, err)
	}
	return symbols, nil
}

// SaveWatchlist overwrites a named list. Lists are durable; no TTL.
func (s *Store) SaveWatchlist(ctx context.Context, name string, symbols []string) error {
	payload, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("encode watchlist %s: %w", name, err)
	}
	if err := s.client.Set(ctx, watchlistKey(name), payload, 0).Err(); err != nil {
		return fmt.Errorf("save watchlist %s: %w", name, err)
	}
	s.logger.WithFields(logrus.Fields{
		"watchlist": name,
		"symbols":   len(symbols),
	}).Debug("watchlist saved")
	return nil
}

// ListWatchlists names every stored list in lexical order.
func (s *Store) ListWatchlists(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, watchlistKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), watchlistKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// IndicatorConfig returns the stored study configuration for an indicator id.
func (s *Store) IndicatorConfig(ctx context.Context, id string) (*marketdata.IndicatorConfig, error) {
	raw, err := s.client.Get(ctx, indicatorKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrIndicatorNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch indicator config %s: %w", id, err)
	}

	var cfg marketdata.IndicatorConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decode indicator config %s: %w", id, err)
	}
	if cfg.ID == "" {
		cfg.ID = id
	}
	return &cfg, nil
}

// SaveIndicatorConfig stores a study configuration under its id.
func (s *Store) SaveIndicatorConfig(ctx context.Context, cfg *marketdata.IndicatorConfig) error {
	if cfg == nil || cfg.ID == "" {
		return errors.New("indicator config requires an id")
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode indicator config %s: %w", cfg.ID, err)
	}
	if err := s.client.Set(ctx, indicatorKey(cfg.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save indicator config %s: %w", cfg.ID, err)
	}
	return nil
}
