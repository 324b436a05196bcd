package interfaces

import (
	"context"
	"time"

	batch "marketbridge/internal/domain/entity/batch"
	marketdata "marketbridge/internal/domain/entity/marketdata"
)

// WatchlistStore is the external key-value collaborator holding named
// symbol lists. Batch jobs only read lists; list management lives with the
// owning dashboard.
type WatchlistStore interface {
	FetchWatchlist(ctx context.Context, name string) ([]string, error)
}

// IndicatorConfigSource supplies study configuration and defaults keyed by
// indicator id.
type IndicatorConfigSource interface {
	IndicatorConfig(ctx context.Context, id string) (*marketdata.IndicatorConfig, error)
}

// SessionObserver receives chart session lifecycle signals: every state
// transition and the duration of each handshake phase. Implementations
// must not block.
type SessionObserver interface {
	StateChanged(sessionID, from, to string)
	PhaseDone(ctx context.Context, sessionID, phase string, elapsed time.Duration, err error)
}

// EventRelay publishes batch progress events for downstream consumers.
type EventRelay interface {
	PublishBatchEvent(ctx context.Context, event *batch.Event) error
	Close() error
}
