package archive

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	marketdata "marketbridge/internal/domain/entity/marketdata"
)

type savedRange struct {
	symbol     string
	resolution string
	bars       []marketdata.Bar
}

type fakeArchive struct {
	mu    sync.Mutex
	saved []savedRange
	fail  error
}

func (f *fakeArchive) SaveBars(ctx context.Context, symbol, resolution string, bars []marketdata.Bar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.saved = append(f.saved, savedRange{symbol: symbol, resolution: resolution, bars: bars})
	return nil
}

func (f *fakeArchive) GetBarsBetween(ctx context.Context, symbol, resolution string, from, to time.Time) ([]marketdata.Bar, error) {
	return nil, nil
}

func (f *fakeArchive) GetLastBars(ctx context.Context, symbol, resolution string, limit int) ([]marketdata.Bar, error) {
	return nil, nil
}

func (f *fakeArchive) Close() {}

func (f *fakeArchive) ranges() []savedRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]savedRange, len(f.saved))
	copy(out, f.saved)
	return out
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func chartWithBars(symbol, resolution string, epochs ...int64) *marketdata.ChartData {
	chart := &marketdata.ChartData{Symbol: symbol, Resolution: resolution}
	for _, e := range epochs {
		chart.Bars = append(chart.Bars, marketdata.Bar{Epoch: e, Close: float64(e)})
	}
	return chart
}

func TestWriterFlushesOnSize(t *testing.T) {
	store := &fakeArchive{}
	writer := NewWriter(BatchConfig{Size: 3}, store, quietLogger())
	writer.Run(context.Background())

	if err := writer.SaveChart(chartWithBars("AAPL", "60", 1, 2)); err != nil {
		t.Fatalf("Expected enqueue to succeed, got %v", err)
	}
	if len(store.ranges()) != 0 {
		t.Fatal("Expected no flush below the size threshold")
	}

	if err := writer.SaveChart(chartWithBars("MSFT", "60", 3)); err != nil {
		t.Fatalf("Expected enqueue to succeed, got %v", err)
	}

	saved := store.ranges()
	if len(saved) != 2 {
		t.Fatalf("Expected 2 per-pair writes, got %d", len(saved))
	}
	if saved[0].symbol != "AAPL" || len(saved[0].bars) != 2 {
		t.Errorf("Expected AAPL bars first, got %+v", saved[0])
	}
	if saved[1].symbol != "MSFT" || len(saved[1].bars) != 1 {
		t.Errorf("Expected MSFT bars second, got %+v", saved[1])
	}
}

func TestWriterFlushesOnTimeout(t *testing.T) {
	store := &fakeArchive{}
	writer := NewWriter(BatchConfig{Size: 100, Timeout: 30 * time.Millisecond}, store, quietLogger())
	writer.Run(context.Background())

	if err := writer.SaveChart(chartWithBars("AAPL", "1D", 10)); err != nil {
		t.Fatalf("Expected enqueue to succeed, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.ranges()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Expected the timer to flush the buffered bars")
}

func TestWriterStopDrains(t *testing.T) {
	store := &fakeArchive{}
	writer := NewWriter(BatchConfig{Size: 100}, store, quietLogger())
	writer.Run(context.Background())

	if err := writer.SaveChart(chartWithBars("AAPL", "15", 1, 2, 3)); err != nil {
		t.Fatalf("Expected enqueue to succeed, got %v", err)
	}
	if err := writer.Stop(context.Background()); err != nil {
		t.Fatalf("Expected drain to succeed, got %v", err)
	}

	saved := store.ranges()
	if len(saved) != 1 || len(saved[0].bars) != 3 {
		t.Fatalf("Expected all buffered bars drained, got %+v", saved)
	}
}

func TestWriterRequiresRun(t *testing.T) {
	writer := NewWriter(BatchConfig{Size: 1}, &fakeArchive{}, quietLogger())
	if err := writer.SaveChart(chartWithBars("AAPL", "60", 1)); err == nil {
		t.Fatal("Expected an error before Run")
	}
}

func TestWriterSurfacesArchiveError(t *testing.T) {
	store := &fakeArchive{fail: errors.New("connection refused")}
	writer := NewWriter(BatchConfig{Size: 1}, store, quietLogger())
	writer.Run(context.Background())

	if err := writer.SaveChart(chartWithBars("AAPL", "60", 1)); err == nil {
		t.Fatal("Expected the archive error to surface on a size-triggered flush")
	}
}
