package tradingview

import (
	"context"

	marketdata "marketbridge/internal/domain/entity/marketdata"
	interfaces "marketbridge/internal/domain/interfaces"
)

// PoolBroker exposes the persistent connection manager through the domain
// session interfaces, keeping pool mechanics out of the application layer.
type PoolBroker struct {
	manager *Manager
}

func NewPoolBroker(manager *Manager) *PoolBroker {
	return &PoolBroker{manager: manager}
}

func (b *PoolBroker) AcquirePool() (interfaces.SessionPool, error) {
	pool, err := b.manager.Acquire()
	if err != nil {
		return nil, err
	}
	return &leasePool{pool: pool}, nil
}

func (b *PoolBroker) ReleasePool() {
	b.manager.Release()
}

type leasePool struct {
	pool *Pool
}

func (p *leasePool) Lease(ctx context.Context, jwt string) (interfaces.LeasedSession, error) {
	lease, err := p.pool.Lease(ctx, jwt)
	if err != nil {
		return nil, err
	}
	return &leasedSession{pool: p.pool, lease: lease}, nil
}

type leasedSession struct {
	pool  *Pool
	lease *Lease
}

func (s *leasedSession) Fetch(ctx context.Context, symbol, resolution string, barCount int, study *marketdata.IndicatorConfig) (*marketdata.ChartData, error) {
	return s.lease.Session.Fetch(ctx, ChartRequest{
		Symbol:     symbol,
		Resolution: resolution,
		BarCount:   barCount,
		Study:      study,
	})
}

func (s *leasedSession) Release() {
	s.pool.Release(s.lease)
}
