package charts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	batch "marketbridge/internal/domain/entity/batch"
	marketdata "marketbridge/internal/domain/entity/marketdata"
	interfaces "marketbridge/internal/domain/interfaces"
	timeframe "marketbridge/internal/domain/timeframe"
	tradingview "marketbridge/internal/infrastructure/tradingview"
)

var (
	ErrNilJob            = errors.New("batch job is nil")
	ErrEmptyJob          = errors.New("batch job has no symbols or resolutions")
	ErrMissingJWT        = errors.New("jwt token is required")
	ErrNoWatchlistStore  = errors.New("no watchlist store configured")
	ErrNoIndicatorSource = errors.New("no indicator config source configured")
)

// Error kinds attached to failed pair results so consumers can branch
// without parsing messages.
const (
	KindConstraint     = "constraint_violation"
	KindSessionExpired = "session_expired"
	KindSessionClosed  = "session_closed"
	KindTransport      = "transport"
	KindProtocol       = "protocol"
	KindTimeout        = "timeout"
	KindCanceled       = "canceled"
	KindFetch          = "fetch"
)

const (
	defaultBatchSize           = 18
	defaultParallelConnections = 5
)

type Config struct {
	// BatchSize is the number of pairs grouped per progress event.
	BatchSize int
	// ParallelConnections bounds concurrent leases within one group.
	ParallelConnections int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.ParallelConnections <= 0 {
		c.ParallelConnections = defaultParallelConnections
	}
	return c
}

// Collaborators are the optional side-channels of a fetch. Nil fields
// disable the corresponding behavior.
type Collaborators struct {
	Watchlists interfaces.WatchlistStore
	Indicators interfaces.IndicatorConfigSource
	Relay      interfaces.EventRelay
	Archive    ChartSink
	Catalog    interfaces.SymbolCatalog
}

// ChartSink receives fetched charts for background archival.
type ChartSink interface {
	SaveChart(chart *marketdata.ChartData) error
}

// OnBatch receives each completed group synchronously, before the next
// group starts, so callers can stream partial results.
type OnBatch func(event *batch.Event)

// ChartQuery is one direct chart request outside a batch job.
type ChartQuery struct {
	Symbol     string
	Resolution string
	BarCount   int
	Indicator  string
}

// Service orchestrates chart fetches over the session pool: single charts
// and batch jobs with grouped progress reporting.
type Service struct {
	cfg    Config
	broker interfaces.SessionBroker
	collab Collaborators
	logger *logrus.Entry
}

func NewService(broker interfaces.SessionBroker, cfg Config, collab Collaborators, logger *logrus.Logger) *Service {
	return &Service{
		cfg:    cfg.withDefaults(),
		broker: broker,
		collab: collab,
		logger: logger.WithField("component", "charts_service"),
	}
}

// FetchChart runs one (symbol, resolution) fetch over a single lease.
func (s *Service) FetchChart(ctx context.Context, jwt string, q ChartQuery) (*marketdata.ChartData, error) {
	if jwt == "" {
		return nil, ErrMissingJWT
	}
	if q.Symbol == "" || q.Resolution == "" {
		return nil, errors.New("symbol and resolution are required")
	}

	study, err := s.indicatorConfig(ctx, q.Indicator)
	if err != nil {
		return nil, err
	}

	pool, err := s.broker.AcquirePool()
	if err != nil {
		return nil, fmt.Errorf("acquire pool: %w", err)
	}
	defer s.broker.ReleasePool()

	pair := batch.Pair{Symbol: q.Symbol, Resolution: q.Resolution}
	return s.fetchOne(ctx, pool, jwt, pair, q.BarCount, study)
}

// FetchBatch runs the job's symbols × resolutions in batchSize groups.
// Groups run sequentially; pairs within a group run on up to
// ParallelConnections leased sessions. A failed pair is recorded on its
// result and never aborts the job. onBatch, when set, fires after every
// group and before the next one starts.
func (s *Service) FetchBatch(ctx context.Context, jwt string, job *batch.Job, onBatch OnBatch) (*batch.Result, error) {
	if jwt == "" {
		return nil, ErrMissingJWT
	}
	if job == nil {
		return nil, ErrNilJob
	}

	prepared := *job
	if prepared.ID == uuid.Nil {
		prepared.ID = uuid.New()
	}
	if err := s.expandWatchlist(ctx, &prepared); err != nil {
		return nil, err
	}
	if len(prepared.Symbols) == 0 || len(prepared.Resolutions) == 0 {
		return nil, ErrEmptyJob
	}

	// Indicator config is fetched once per job; validation against each
	// chart resolution happens per pair, before any transport work.
	study, err := s.indicatorConfig(ctx, prepared.Indicator)
	if err != nil {
		return nil, err
	}

	pool, err := s.broker.AcquirePool()
	if err != nil {
		return nil, fmt.Errorf("acquire pool: %w", err)
	}
	defer s.broker.ReleasePool()

	pairs := prepared.Pairs()
	groups := splitPairs(pairs, s.cfg.BatchSize)
	started := time.Now()

	s.logger.WithFields(logrus.Fields{
		"job":     prepared.ID,
		"symbols": len(prepared.Symbols),
		"pairs":   len(pairs),
		"batches": len(groups),
	}).Info("batch job started")

	results := make([]batch.PairResult, 0, len(pairs))
	for i, group := range groups {
		groupStart := time.Now()
		groupResults := s.fetchGroup(ctx, pool, jwt, group, prepared.BarCount, study)
		results = append(results, groupResults...)

		event := &batch.Event{
			JobID:        prepared.ID,
			BatchIndex:   i,
			TotalBatches: len(groups),
			Pairs:        groupResults,
			Progress:     progressOf(len(results), len(pairs)),
			BatchElapsed: time.Since(groupStart).Milliseconds(),
			Elapsed:      time.Since(started).Milliseconds(),
			EmittedAt:    time.Now().UTC(),
		}
		if onBatch != nil {
			onBatch(event)
		}
		s.relayEvent(ctx, event)

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch job %s: %w", prepared.ID, err)
		}
	}

	result := &batch.Result{
		JobID:   prepared.ID,
		Pairs:   results,
		Elapsed: time.Since(started).Milliseconds(),
	}
	for _, r := range results {
		if r.Failed() {
			result.Failed++
		} else {
			result.Completed++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"job":        prepared.ID,
		"completed":  result.Completed,
		"failed":     result.Failed,
		"elapsed_ms": result.Elapsed,
	}).Info("batch job finished")
	return result, nil
}

// fetchGroup fans one group out over the session pool. Results land in
// per-pair slots, so workers never contend.
func (s *Service) fetchGroup(ctx context.Context, pool interfaces.SessionPool, jwt string, group []batch.Pair, barCount int, study *marketdata.IndicatorConfig) []batch.PairResult {
	results := make([]batch.PairResult, len(group))

	var g errgroup.Group
	g.SetLimit(s.cfg.ParallelConnections)
	for i, pair := range group {
		i, pair := i, pair
		g.Go(func() error {
			results[i] = s.fetchPair(ctx, pool, jwt, pair, barCount, study)
			return nil
		})
	}
	g.Wait()
	return results
}

func (s *Service) fetchPair(ctx context.Context, pool interfaces.SessionPool, jwt string, pair batch.Pair, barCount int, study *marketdata.IndicatorConfig) batch.PairResult {
	out := batch.PairResult{Symbol: pair.Symbol, Resolution: pair.Resolution}

	chart, err := s.fetchOne(ctx, pool, jwt, pair, barCount, study)
	if err != nil {
		out.Error = err.Error()
		out.ErrorKind = ErrorKind(err)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":     pair.Symbol,
			"resolution": pair.Resolution,
		}).Warn("pair fetch failed")
		return out
	}
	out.Chart = chart
	return out
}

// fetchOne validates, leases, fetches and releases for a single pair. An
// invalid indicator combination short-circuits before any lease is taken.
func (s *Service) fetchOne(ctx context.Context, pool interfaces.SessionPool, jwt string, pair batch.Pair, barCount int, study *marketdata.IndicatorConfig) (*marketdata.ChartData, error) {
	if study != nil {
		if err := timeframe.Validate(pair.Resolution, study.Anchor, study.Delta).Err(); err != nil {
			return nil, err
		}
	}

	lease, err := pool.Lease(ctx, jwt)
	if err != nil {
		return nil, fmt.Errorf("lease session: %w", err)
	}
	defer lease.Release()

	chart, err := lease.Fetch(ctx, pair.Symbol, pair.Resolution, barCount, study)
	if err != nil {
		return nil, err
	}
	s.recordChart(ctx, chart)
	return chart, nil
}

func (s *Service) expandWatchlist(ctx context.Context, job *batch.Job) error {
	if job.Watchlist == "" {
		return nil
	}
	if s.collab.Watchlists == nil {
		return ErrNoWatchlistStore
	}
	listed, err := s.collab.Watchlists.FetchWatchlist(ctx, job.Watchlist)
	if err != nil {
		return fmt.Errorf("expand watchlist %s: %w", job.Watchlist, err)
	}

	seen := make(map[string]struct{}, len(job.Symbols)+len(listed))
	merged := make([]string, 0, len(job.Symbols)+len(listed))
	for _, sym := range job.Symbols {
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		merged = append(merged, sym)
	}
	for _, sym := range listed {
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		merged = append(merged, sym)
	}
	job.Symbols = merged
	return nil
}

func (s *Service) indicatorConfig(ctx context.Context, id string) (*marketdata.IndicatorConfig, error) {
	if id == "" {
		return nil, nil
	}
	if s.collab.Indicators == nil {
		return nil, ErrNoIndicatorSource
	}
	cfg, err := s.collab.Indicators.IndicatorConfig(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("indicator config %s: %w", id, err)
	}
	return cfg, nil
}

// recordChart feeds the optional archive and catalog sinks. Side-channel
// failures are logged, never surfaced to the caller.
func (s *Service) recordChart(ctx context.Context, chart *marketdata.ChartData) {
	if chart == nil {
		return
	}
	if s.collab.Archive != nil {
		if err := s.collab.Archive.SaveChart(chart); err != nil {
			s.logger.WithError(err).WithField("symbol", chart.Symbol).Warn("archive chart")
		}
	}
	if s.collab.Catalog != nil && chart.Info != nil {
		if err := s.collab.Catalog.UpsertSymbol(ctx, chart.Info); err != nil {
			s.logger.WithError(err).WithField("symbol", chart.Symbol).Warn("catalog upsert")
		}
	}
}

func (s *Service) relayEvent(ctx context.Context, event *batch.Event) {
	if s.collab.Relay == nil {
		return
	}
	if err := s.collab.Relay.PublishBatchEvent(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"job":   event.JobID,
			"batch": event.BatchIndex,
		}).Warn("publish batch event")
	}
}

// ErrorKind maps an error onto the stable kind names carried in pair
// results.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, timeframe.ErrConstraintViolation):
		return KindConstraint
	case errors.Is(err, tradingview.ErrSessionExpired):
		return KindSessionExpired
	case errors.Is(err, tradingview.ErrSessionClosed), errors.Is(err, tradingview.ErrPoolClosed):
		return KindSessionClosed
	case errors.Is(err, tradingview.ErrTransport):
		return KindTransport
	case errors.Is(err, tradingview.ErrProtocol):
		return KindProtocol
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindFetch
	}
}

func splitPairs(pairs []batch.Pair, size int) [][]batch.Pair {
	groups := make([][]batch.Pair, 0, (len(pairs)+size-1)/size)
	for start := 0; start < len(pairs); start += size {
		end := start + size
		if end > len(pairs) {
			end = len(pairs)
		}
		groups = append(groups, pairs[start:end])
	}
	return groups
}

func progressOf(loaded, total int) batch.Progress {
	p := batch.Progress{Loaded: loaded, Total: total}
	if total > 0 {
		p.Percentage = math.Round(float64(loaded)/float64(total)*10000) / 100
	}
	return p
}
