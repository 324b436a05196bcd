package tradingview

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	interfaces "marketbridge/internal/domain/interfaces"
)

// ManagerConfig controls the shared pool lifecycle.
type ManagerConfig struct {
	// IdleGrace is how long the pool outlives its last reference before
	// teardown. A new Acquire inside the window cancels the teardown, so
	// back-to-back requests keep reusing warm connections.
	IdleGrace time.Duration
	Pool      PoolConfig
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.IdleGrace <= 0 {
		c.IdleGrace = 30 * time.Second
	}
	c.Pool = c.Pool.withDefaults()
	return c
}

// Manager shares one lazily-built connection pool across concurrent
// callers by reference counting. The pool exists only while someone holds
// a reference or the idle grace window is still open.
type Manager struct {
	cfg     ManagerConfig
	newPool func() *Pool
	logger  *logrus.Entry

	mu        sync.Mutex
	pool      *Pool
	refs      int
	idleTimer *time.Timer
	closed    bool
}

func NewManager(dial Dialer, cfg ManagerConfig, observer interfaces.SessionObserver, logger *logrus.Logger) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg: cfg,
		newPool: func() *Pool {
			return NewPool(dial, cfg.Pool, observer, logger)
		},
		logger: logger.WithField("component", "connection_manager"),
	}
}

// Acquire takes a reference on the shared pool, constructing it on first
// use and cancelling any pending idle teardown.
func (m *Manager) Acquire() (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrPoolClosed
	}
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	if m.pool == nil {
		m.pool = m.newPool()
		m.logger.Info("shared pool constructed")
	}
	m.refs++
	return m.pool, nil
}

// Release drops one reference. When the last reference goes, teardown is
// scheduled after the idle grace window rather than immediately.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		m.logger.Warn("release without matching acquire")
		return
	}
	m.refs--
	if m.refs > 0 || m.pool == nil || m.closed {
		return
	}

	m.idleTimer = time.AfterFunc(m.cfg.IdleGrace, m.teardownIfIdle)
}

func (m *Manager) teardownIfIdle() {
	m.mu.Lock()
	if m.refs > 0 || m.pool == nil {
		m.mu.Unlock()
		return
	}
	pool := m.pool
	m.pool = nil
	m.idleTimer = nil
	m.mu.Unlock()

	if err := pool.Close(); err != nil {
		m.logger.WithError(err).Warn("closing idle pool")
	} else {
		m.logger.Info("idle pool torn down")
	}
}

// RefCount reports the live reference count.
func (m *Manager) RefCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

// Stats snapshots the underlying pool, zero-valued when no pool is live.
func (m *Manager) Stats() PoolStats {
	m.mu.Lock()
	pool := m.pool
	m.mu.Unlock()
	if pool == nil {
		return PoolStats{}
	}
	return pool.Stats()
}

// Close tears the pool down immediately regardless of references.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	pool := m.pool
	m.pool = nil
	m.mu.Unlock()

	if pool != nil {
		return pool.Close()
	}
	return nil
}
