package tradingview

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	interfaces "marketbridge/internal/domain/interfaces"
)

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	// Capacity is the maximum number of live upstream connections.
	Capacity int
	// StaleThreshold is the request count after which an idle connection is
	// retired instead of reused, bounding the age of any authenticated
	// session.
	StaleThreshold int
	// Session carries the per-session handshake timeouts.
	Session SessionConfig
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Capacity <= 0 {
		c.Capacity = 5
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 50
	}
	return c
}

type pooledConn struct {
	id       uuid.UUID
	session  *ChartSession
	requests int
	created  time.Time
}

// Lease is exclusive ownership of one pooled session until released.
type Lease struct {
	Session *ChartSession

	conn *pooledConn
	once sync.Once
}

type waiterGrant struct {
	conn *pooledConn
	err  error
}

type waiter struct {
	ch chan waiterGrant
}

// Pool owns a bounded set of authenticated upstream connections. Lease
// grants are FIFO under saturation; idle connections past the staleness
// threshold are replaced lazily on the lease path, never torn down while
// held.
type Pool struct {
	cfg      PoolConfig
	dial     Dialer
	observer interfaces.SessionObserver
	baseLog  *logrus.Logger
	logger   *logrus.Entry

	mu      sync.Mutex
	idle    []*pooledConn
	waiters []*waiter
	active  int
	created int64
	retired int64
	closed  bool
}

func NewPool(dial Dialer, cfg PoolConfig, observer interfaces.SessionObserver, logger *logrus.Logger) *Pool {
	return &Pool{
		cfg:      cfg.withDefaults(),
		dial:     dial,
		observer: observer,
		baseLog:  logger,
		logger:   logger.WithField("component", "connection_pool"),
	}
}

// Lease hands out an exclusive session authenticated with the given token.
// An idle connection below the staleness threshold is reused; a stale or
// dead one is retired and replaced; a saturated pool queues the caller
// FIFO until a connection is released or ctx ends.
func (p *Pool) Lease(ctx context.Context, jwt string) (*Lease, error) {
	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		if pc := p.popIdleLocked(jwt); pc != nil {
			p.mu.Unlock()
			return &Lease{Session: pc.session, conn: pc}, nil
		}

		if p.active < p.cfg.Capacity {
			p.active++
			p.mu.Unlock()
			return p.dialFresh(ctx, jwt)
		}

		w := &waiter{ch: make(chan waiterGrant, 1)}
		p.waiters = append(p.waiters, w)
		p.mu.Unlock()

		select {
		case grant := <-w.ch:
			if grant.err != nil {
				return nil, grant.err
			}
			if grant.conn == nil {
				// A slot was reserved for us; build a fresh connection.
				return p.dialFresh(ctx, jwt)
			}
			p.mu.Lock()
			if p.closed {
				p.active--
				p.mu.Unlock()
				grant.conn.session.Close()
				return nil, ErrPoolClosed
			}
			p.idle = append([]*pooledConn{grant.conn}, p.idle...)
			continue
		case <-ctx.Done():
			p.abandonWaiter(w)
			return nil, ctx.Err()
		}
	}
}

// popIdleLocked returns a reusable idle connection, retiring dead, stale,
// and token-mismatched ones along the way.
func (p *Pool) popIdleLocked(jwt string) *pooledConn {
	for len(p.idle) > 0 {
		pc := p.idle[0]
		p.idle = p.idle[1:]

		if pc.session.State() == StateClosed {
			p.active--
			continue
		}
		if pc.requests >= p.cfg.StaleThreshold || pc.session.JWT() != jwt {
			p.retireLocked(pc)
			continue
		}
		return pc
	}
	return nil
}

func (p *Pool) retireLocked(pc *pooledConn) {
	p.active--
	p.retired++
	p.logger.WithFields(logrus.Fields{
		"connection": pc.id,
		"requests":   pc.requests,
		"age":        time.Since(pc.created).Round(time.Second).String(),
	}).Info("retiring stale connection")
	go pc.session.Close()
}

func (p *Pool) dialFresh(ctx context.Context, jwt string) (*Lease, error) {
	session := NewChartSession(p.dial, p.cfg.Session, p.observer, p.baseLog)
	if err := session.Open(ctx, jwt); err != nil {
		// Only this connection is poisoned; free the slot for the next
		// caller in line.
		p.mu.Lock()
		p.active--
		p.grantSlotLocked()
		p.mu.Unlock()
		return nil, err
	}

	pc := &pooledConn{id: uuid.New(), session: session, created: time.Now()}
	p.mu.Lock()
	p.created++
	if p.closed {
		p.active--
		p.mu.Unlock()
		session.Close()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()
	return &Lease{Session: session, conn: pc}, nil
}

// Release returns a leased session to the pool. The oldest waiter, if any,
// receives it directly so grants stay FIFO. Dead sessions are discarded
// and their slot handed on.
func (p *Pool) Release(l *Lease) {
	if l == nil {
		return
	}
	l.once.Do(func() {
		pc := l.conn
		pc.requests++

		p.mu.Lock()
		if p.closed {
			p.active--
			p.mu.Unlock()
			pc.session.Close()
			return
		}

		if pc.session.State() == StateClosed {
			p.active--
			p.grantSlotLocked()
			p.mu.Unlock()
			return
		}

		if w := p.popWaiterLocked(); w != nil {
			p.mu.Unlock()
			w.ch <- waiterGrant{conn: pc}
			return
		}

		p.idle = append(p.idle, pc)
		p.mu.Unlock()
	})
}

// grantSlotLocked reserves the freed capacity slot for the oldest waiter.
func (p *Pool) grantSlotLocked() {
	if w := p.popWaiterLocked(); w != nil {
		p.active++
		w.ch <- waiterGrant{}
	}
}

func (p *Pool) popWaiterLocked() *waiter {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	return w
}

// abandonWaiter withdraws a cancelled waiter. When the grant already left,
// the granted connection or slot is recycled.
func (p *Pool) abandonWaiter(w *waiter) {
	p.mu.Lock()
	for i, queued := range p.waiters {
		if queued == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()

	// Already granted; exactly one send is in flight.
	grant := <-w.ch
	if grant.err != nil {
		return
	}
	p.mu.Lock()
	if grant.conn != nil {
		if next := p.popWaiterLocked(); next != nil {
			p.mu.Unlock()
			next.ch <- waiterGrant{conn: grant.conn}
			return
		}
		p.idle = append(p.idle, grant.conn)
		p.mu.Unlock()
		return
	}
	// A reserved slot: hand it on or free it.
	p.active--
	p.grantSlotLocked()
	p.mu.Unlock()
}

// PoolStats is a point-in-time snapshot for observability.
type PoolStats struct {
	Capacity int   `json:"capacity"`
	Active   int   `json:"active"`
	Idle     int   `json:"idle"`
	Waiting  int   `json:"waiting"`
	Created  int64 `json:"created"`
	Retired  int64 `json:"retired"`
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Capacity: p.cfg.Capacity,
		Active:   p.active,
		Idle:     len(p.idle),
		Waiting:  len(p.waiters),
		Created:  p.created,
		Retired:  p.retired,
	}
}

// Close tears down every idle connection and fails all queued waiters.
// Leased sessions are closed as they come back.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	waiters := p.waiters
	p.waiters = nil
	p.active -= len(idle)
	p.mu.Unlock()

	for _, w := range waiters {
		w.ch <- waiterGrant{err: ErrPoolClosed}
	}
	for _, pc := range idle {
		if err := pc.session.Close(); err != nil {
			p.logger.WithError(err).Warn("closing idle connection")
		}
	}
	return nil
}
