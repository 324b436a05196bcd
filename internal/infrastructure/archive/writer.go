package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	marketdata "marketbridge/internal/domain/entity/marketdata"
	interfaces "marketbridge/internal/domain/interfaces"
)

// BatchConfig controls batching thresholds for archive writes.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

type barRecord struct {
	symbol     string
	resolution string
	bar        marketdata.Bar
}

type pairKey struct {
	symbol     string
	resolution string
}

// Writer buffers bars from completed charts and flushes them to the archive
// in batches, so a burst of finished fetches does not turn into one upsert
// round per chart.
type Writer struct {
	cfg     BatchConfig
	archive interfaces.BarArchive
	logger  *logrus.Entry

	mu    sync.Mutex
	items []barRecord
	timer *time.Timer
	ctx   context.Context
}

func NewWriter(cfg BatchConfig, archive interfaces.BarArchive, logger *logrus.Logger) *Writer {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	return &Writer{
		cfg:     cfg,
		archive: archive,
		logger:  logger.WithField("component", "archive_writer"),
	}
}

// Run sets the base context for asynchronous flushes.
func (w *Writer) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()
}

// SaveChart queues every bar of a completed chart for archival.
func (w *Writer) SaveChart(chart *marketdata.ChartData) error {
	if chart == nil {
		return errors.New("chart is nil")
	}

	w.mu.Lock()
	ctx := w.ctx
	if ctx == nil {
		w.mu.Unlock()
		return errors.New("archive writer is not running")
	}
	if err := ctx.Err(); err != nil {
		w.mu.Unlock()
		return err
	}
	for _, bar := range chart.Bars {
		w.items = append(w.items, barRecord{
			symbol:     chart.Symbol,
			resolution: chart.Resolution,
			bar:        bar,
		})
	}
	var batch []barRecord
	if len(w.items) >= w.cfg.Size {
		batch = w.takeBatchLocked()
	} else if w.timer == nil && w.cfg.Timeout > 0 {
		w.startTimerLocked()
	}
	w.mu.Unlock()

	return w.flush(ctx, batch)
}

// Stop flushes whatever is still buffered.
func (w *Writer) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return w.flush(ctx, w.takeBatch())
}

func (w *Writer) startTimerLocked() {
	w.timer = time.AfterFunc(w.cfg.Timeout, func() {
		batch := w.takeBatch()
		if len(batch) == 0 {
			return
		}
		w.mu.Lock()
		ctx := w.ctx
		w.mu.Unlock()
		if err := w.flush(ctx, batch); err != nil {
			w.logger.WithError(err).Warn("archive flush failed")
		}
	})
}

func (w *Writer) takeBatch() []barRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.takeBatchLocked()
}

func (w *Writer) takeBatchLocked() []barRecord {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.items) == 0 {
		return nil
	}
	batch := make([]barRecord, len(w.items))
	copy(batch, w.items)
	w.items = w.items[:0]
	return batch
}

// flush groups the batch back into per-pair runs and writes each through
// the archive, keeping first-seen pair order.
func (w *Writer) flush(ctx context.Context, batch []barRecord) error {
	if len(batch) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	groups := make(map[pairKey][]marketdata.Bar)
	var order []pairKey
	for _, rec := range batch {
		key := pairKey{symbol: rec.symbol, resolution: rec.resolution}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec.bar)
	}

	start := time.Now()
	for _, key := range order {
		if err := w.archive.SaveBars(ctx, key.symbol, key.resolution, groups[key]); err != nil {
			return fmt.Errorf("archive %s/%s: %w", key.symbol, key.resolution, err)
		}
	}
	w.logger.WithFields(logrus.Fields{
		"bars":    len(batch),
		"pairs":   len(order),
		"took_ms": time.Since(start).Milliseconds(),
	}).Debug("flushed bars to archive")
	return nil
}
