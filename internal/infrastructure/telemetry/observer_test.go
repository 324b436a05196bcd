package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestLogObserverRecordsTransitions(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	obs := NewLogObserver(logger)

	obs.StateChanged("cs_abc", "idle", "connecting")

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("Expected a log entry")
	}
	if entry.Data["from"] != "idle" || entry.Data["to"] != "connecting" {
		t.Errorf("Expected transition fields, got %v", entry.Data)
	}
	if entry.Level != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %v", entry.Level)
	}
}

func TestLogObserverWarnsOnFailedPhase(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	obs := NewLogObserver(logger)

	obs.PhaseDone(context.Background(), "cs_abc", "resolve", 120*time.Millisecond, errors.New("symbol rejected"))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("Expected a log entry")
	}
	if entry.Level != logrus.WarnLevel {
		t.Errorf("Expected warn level for failed phase, got %v", entry.Level)
	}
	if entry.Data["phase"] != "resolve" {
		t.Errorf("Expected phase field, got %v", entry.Data)
	}
	if entry.Data["elapsed_ms"] != int64(120) {
		t.Errorf("Expected elapsed_ms 120, got %v", entry.Data["elapsed_ms"])
	}
}

type countingObserver struct {
	transitions int
	phases      int
}

func (c *countingObserver) StateChanged(sessionID, from, to string) { c.transitions++ }

func (c *countingObserver) PhaseDone(ctx context.Context, sessionID, phase string, elapsed time.Duration, err error) {
	c.phases++
}

func TestMultiFansOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	multi := Multi{a, b, Nop{}}

	multi.StateChanged("cs", "idle", "connecting")
	multi.PhaseDone(context.Background(), "cs", "connect", time.Millisecond, nil)

	if a.transitions != 1 || b.transitions != 1 {
		t.Errorf("Expected both observers to see the transition, got %d and %d", a.transitions, b.transitions)
	}
	if a.phases != 1 || b.phases != 1 {
		t.Errorf("Expected both observers to see the phase, got %d and %d", a.phases, b.phases)
	}
}

func TestStartSpanDisabledPassesContextThrough(t *testing.T) {
	enabled = false

	ctx := context.Background()
	got, span := StartSpan(ctx, "session.connect")
	if got != ctx {
		t.Error("Expected the context to pass through untouched when tracing is off")
	}
	span.End() // no-op span must be safe to end
}
