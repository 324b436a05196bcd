package interfaces

import (
	"context"

	marketdata "marketbridge/internal/domain/entity/marketdata"
)

// LeasedSession is exclusive use of one pooled upstream session. Release
// hands it back for reuse; a session that died mid-fetch is discarded by
// the pool instead.
type LeasedSession interface {
	Fetch(ctx context.Context, symbol, resolution string, barCount int, study *marketdata.IndicatorConfig) (*marketdata.ChartData, error)
	Release()
}

// SessionPool leases exclusive upstream sessions authenticated with the
// caller's bearer token. Leases resolve FIFO when the pool is saturated.
type SessionPool interface {
	Lease(ctx context.Context, jwt string) (LeasedSession, error)
}

// SessionBroker scopes the shared session pool to one request or job.
// AcquirePool pins the pool for the caller's lifetime; ReleasePool lets the
// idle teardown clock run again once every holder is gone.
type SessionBroker interface {
	AcquirePool() (SessionPool, error)
	ReleasePool()
}
