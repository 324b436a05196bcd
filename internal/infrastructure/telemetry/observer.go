package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	interfaces "marketbridge/internal/domain/interfaces"
)

// LogObserver reports session lifecycle activity through the shared logger.
// Transitions land at debug level; failed phases are warnings.
type LogObserver struct {
	logger *logrus.Entry
}

func NewLogObserver(logger *logrus.Logger) *LogObserver {
	return &LogObserver{logger: logger.WithField("component", "session_observer")}
}

func (o *LogObserver) StateChanged(sessionID, from, to string) {
	o.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"from":    from,
		"to":      to,
	}).Debug("session state changed")
}

func (o *LogObserver) PhaseDone(ctx context.Context, sessionID, phase string, elapsed time.Duration, err error) {
	entry := o.logger.WithFields(logrus.Fields{
		"session":    sessionID,
		"phase":      phase,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("session phase failed")
		return
	}
	entry.Debug("session phase completed")
}

// SpanObserver emits one span per completed session phase, backdated so the
// span duration matches the measured elapsed time.
type SpanObserver struct{}

func (SpanObserver) StateChanged(sessionID, from, to string) {}

func (SpanObserver) PhaseDone(ctx context.Context, sessionID, phase string, elapsed time.Duration, err error) {
	if !Enabled() {
		return
	}
	_, span := StartSpan(ctx, "session."+phase,
		trace.WithTimestamp(time.Now().Add(-elapsed)))
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("session.phase", phase),
		attribute.Int64("session.elapsed_ms", elapsed.Milliseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Nop satisfies the observer contract without doing anything.
type Nop struct{}

func (Nop) StateChanged(sessionID, from, to string) {}

func (Nop) PhaseDone(ctx context.Context, sessionID, phase string, elapsed time.Duration, err error) {
}

// Multi fans every callback out to each observer in order.
type Multi []interfaces.SessionObserver

func (m Multi) StateChanged(sessionID, from, to string) {
	for _, o := range m {
		o.StateChanged(sessionID, from, to)
	}
}

func (m Multi) PhaseDone(ctx context.Context, sessionID, phase string, elapsed time.Duration, err error) {
	for _, o := range m {
		o.PhaseDone(ctx, sessionID, phase, elapsed, err)
	}
}
