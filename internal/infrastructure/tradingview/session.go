package tradingview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	marketdata "marketbridge/internal/domain/entity/marketdata"
	interfaces "marketbridge/internal/domain/interfaces"
)

// State of a chart session. A session advances strictly forward through the
// handshake, cycles Ready -> ModifyingSymbol -> AwaitingBars -> Ready on
// reuse, and ends in Closed from anywhere.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateChartSessionCreated
	StateSymbolResolving
	StateSeriesCreating
	StateAwaitingBars
	StateReady
	StateModifyingSymbol
	StateClosed
)

var stateNames = map[State]string{
	StateIdle:                "idle",
	StateConnecting:          "connecting",
	StateAuthenticating:      "authenticating",
	StateChartSessionCreated: "chart_session_created",
	StateSymbolResolving:     "symbol_resolving",
	StateSeriesCreating:      "series_creating",
	StateAwaitingBars:        "awaiting_bars",
	StateReady:               "ready",
	StateModifyingSymbol:     "modifying_symbol",
	StateClosed:              "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// SessionConfig carries the handshake and settle timeouts.
type SessionConfig struct {
	HelloTimeout   time.Duration
	ResolveTimeout time.Duration
	SeriesTimeout  time.Duration
	BarIdleTimeout time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.HelloTimeout <= 0 {
		c.HelloTimeout = 10 * time.Second
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 10 * time.Second
	}
	if c.SeriesTimeout <= 0 {
		c.SeriesTimeout = 15 * time.Second
	}
	if c.BarIdleTimeout <= 0 {
		c.BarIdleTimeout = 3 * time.Second
	}
	return c
}

// ChartRequest asks for one symbol at one resolution, optionally with an
// attached study.
type ChartRequest struct {
	Symbol     string
	Resolution string
	BarCount   int
	Study      *marketdata.IndicatorConfig
}

const defaultBarCount = 300

// ChartSession drives one logical chart subscription over a dedicated
// transport. It is not safe for concurrent use; the pool guarantees a
// single holder.
type ChartSession struct {
	cfg      SessionConfig
	dial     Dialer
	observer interfaces.SessionObserver
	logger   *logrus.Entry

	id        string
	transport Transport
	dec       Decoder
	jwt       string

	state State

	symbolSeq int
	seriesSeq int
	studySeq  int

	seriesID string
	studyID  string
	lastInfo *marketdata.SymbolInfo
}

func NewChartSession(dial Dialer, cfg SessionConfig, observer interfaces.SessionObserver, logger *logrus.Logger) *ChartSession {
	return &ChartSession{
		cfg:      cfg.withDefaults(),
		dial:     dial,
		observer: observer,
		logger:   logger.WithField("component", "chart_session"),
		id:       sessionToken("cs_"),
		state:    StateIdle,
	}
}

// ID returns the chart session token used on the wire.
func (s *ChartSession) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *ChartSession) State() State { return s.state }

// JWT returns the token the session authenticated with.
func (s *ChartSession) JWT() string { return s.jwt }

func (s *ChartSession) setState(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	if s.observer != nil {
		s.observer.StateChanged(s.id, from.String(), to.String())
	}
}

func (s *ChartSession) observePhase(ctx context.Context, phase string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.PhaseDone(ctx, s.id, phase, time.Since(start), err)
	}
}

// Open dials the upstream, waits for its greeting, and authenticates. The
// session is ready for Fetch afterwards. A missing greeting means the
// upstream accepted the socket but will not serve this session.
func (s *ChartSession) Open(ctx context.Context, jwt string) (err error) {
	if s.state != StateIdle {
		return fmt.Errorf("open: session is %s", s.state)
	}

	s.setState(StateConnecting)
	start := time.Now()
	transport, err := s.dial(ctx)
	s.observePhase(ctx, "connect", start, err)
	if err != nil {
		s.setState(StateClosed)
		return err
	}
	s.transport = transport

	s.setState(StateAuthenticating)
	start = time.Now()
	err = s.authenticate(ctx, jwt)
	s.observePhase(ctx, "authenticate", start, err)
	if err != nil {
		s.teardown()
		return err
	}

	s.jwt = jwt
	s.setState(StateChartSessionCreated)
	return nil
}

func (s *ChartSession) authenticate(ctx context.Context, jwt string) error {
	frame, err := s.readFrame(ctx, s.cfg.HelloTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: no server greeting within %v", ErrSessionExpired, s.cfg.HelloTimeout)
		}
		return err
	}
	switch frame.Kind {
	case FrameServerHello:
	case FrameCriticalError, FrameProtocolError:
		return classifyUpstreamError(frame)
	default:
		s.logger.WithField("kind", frame.Kind.String()).Warn("unexpected first frame")
	}

	if err := s.send(ctx, "set_auth_token", jwt); err != nil {
		return err
	}
	return s.send(ctx, "chart_create_session", s.id, "")
}

// Fetch resolves the requested symbol, creates or retargets the series, and
// collects bars until the series settles. On a Ready session it reuses the
// existing series through the modify path instead of reconnecting.
func (s *ChartSession) Fetch(ctx context.Context, req ChartRequest) (*marketdata.ChartData, error) {
	if req.BarCount <= 0 {
		req.BarCount = defaultBarCount
	}

	prev := s.state
	var err error
	switch prev {
	case StateChartSessionCreated:
		err = s.createSeries(ctx, req)
	case StateReady:
		err = s.modifySeries(ctx, req)
	case StateClosed:
		return nil, ErrSessionClosed
	default:
		return nil, fmt.Errorf("fetch: session is %s", s.state)
	}
	if err != nil {
		if errors.Is(err, ErrTransport) || errors.Is(err, ErrProtocol) {
			s.teardown()
		}
		return nil, s.rollback(prev, err)
	}

	s.setState(StateAwaitingBars)
	start := time.Now()
	chart, err := s.collectBars(ctx, req)
	s.observePhase(ctx, "bars", start, err)
	if err != nil {
		return nil, s.rollback(prev, err)
	}

	s.setState(StateReady)
	return chart, nil
}

// rollback restores the pre-fetch state after a contained failure such as a
// rejected symbol or study, keeping the connection reusable for the next
// request. Torn-down sessions stay closed.
func (s *ChartSession) rollback(prev State, err error) error {
	if s.state != StateClosed {
		s.setState(prev)
	}
	return err
}

func (s *ChartSession) createSeries(ctx context.Context, req ChartRequest) error {
	label, err := s.resolveSymbol(ctx, req.Symbol, StateSymbolResolving)
	if err != nil {
		return err
	}

	s.setState(StateSeriesCreating)
	s.seriesSeq++
	s.seriesID = fmt.Sprintf("sds_%d", s.seriesSeq)

	start := time.Now()
	err = s.send(ctx, "create_series", s.id, s.seriesID, turnaround(s.seriesSeq), label, req.Resolution, req.BarCount, "")
	if err == nil && req.Study != nil {
		err = s.createStudy(ctx, req.Study)
	}
	s.observePhase(ctx, "series", start, err)
	return err
}

func (s *ChartSession) modifySeries(ctx context.Context, req ChartRequest) error {
	label, err := s.resolveSymbol(ctx, req.Symbol, StateModifyingSymbol)
	if err != nil {
		return err
	}

	s.seriesSeq++
	start := time.Now()
	err = s.send(ctx, "modify_series", s.id, s.seriesID, turnaround(s.seriesSeq), label, req.Resolution, "")
	if err == nil && req.Study != nil && s.studyID == "" {
		err = s.createStudy(ctx, req.Study)
	}
	s.observePhase(ctx, "series", start, err)
	return err
}

func (s *ChartSession) createStudy(ctx context.Context, cfg *marketdata.IndicatorConfig) error {
	s.studySeq++
	s.studyID = fmt.Sprintf("st%d", s.studySeq)

	inputs := make(map[string]any, len(cfg.Inputs))
	for k, v := range cfg.Inputs {
		inputs[k] = v
	}
	return s.send(ctx, "create_study", s.id, s.studyID, "st1", s.seriesID, cfg.ScriptID, inputs)
}

// resolveSymbol announces a fresh symbol label and waits for the upstream
// to resolve it. The label is never reused across requests on one session.
func (s *ChartSession) resolveSymbol(ctx context.Context, symbol string, during State) (string, error) {
	if s.state == StateClosed {
		return "", ErrSessionClosed
	}
	s.setState(during)

	s.symbolSeq++
	label := fmt.Sprintf("sds_sym_%d", s.symbolSeq)

	start := time.Now()
	err := s.awaitSymbolResolved(ctx, symbol, label)
	s.observePhase(ctx, "resolve", start, err)
	if err != nil {
		return "", err
	}
	return label, nil
}

func (s *ChartSession) awaitSymbolResolved(ctx context.Context, symbol, label string) error {
	if err := s.send(ctx, "resolve_symbol", s.id, label, symbolSpec(symbol)); err != nil {
		return err
	}

	for {
		frame, err := s.readFrame(ctx, s.cfg.ResolveTimeout)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("resolve %s: no response within %v", symbol, s.cfg.ResolveTimeout)
			}
			if errors.Is(err, ErrTransport) || errors.Is(err, ErrProtocol) {
				s.teardown()
			}
			return err
		}

		switch frame.Kind {
		case FrameSymbolResolved:
			got, info, err := decodeSymbolResolved(frame)
			if err != nil {
				s.teardown()
				return err
			}
			if got != label {
				continue
			}
			s.lastInfo = &info
			return nil
		case FrameSymbolError:
			return fmt.Errorf("resolve %s: %s", symbol, frame.errorText())
		case FrameCriticalError, FrameProtocolError:
			err := classifyUpstreamError(frame)
			s.teardown()
			return err
		}
	}
}

// collectBars merges series updates until the series settles: requested
// count reached, series_completed received, or the stream goes idle. Idle
// settling is not an error; series near the start of an instrument's
// history simply run out of bars.
func (s *ChartSession) collectBars(ctx context.Context, req ChartRequest) (*marketdata.ChartData, error) {
	bars := make(map[int64]marketdata.Bar)
	study := make(map[int64]marketdata.StudyPoint)
	studyWanted := req.Study != nil && s.studyID != ""
	studySeen := false
	seriesDone := false
	completed := false
	started := time.Now()

	var studyErr error

	for !completed {
		frame, err := s.readFrame(ctx, s.cfg.BarIdleTimeout)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break // stream idle, series settled
			}
			if errors.Is(err, ErrTransport) || errors.Is(err, ErrProtocol) {
				s.teardown()
			}
			return nil, err
		}

		switch frame.Kind {
		case FrameTimescaleUpdate, FrameDataUpdate:
			points, found, err := decodeSeriesUpdate(frame, s.seriesID)
			if err != nil {
				s.teardown()
				return nil, err
			}
			if found {
				for _, b := range points {
					bars[b.Epoch] = b // last write wins per epoch
				}
			}
			if studyWanted {
				sp, found, err := decodeStudyUpdate(frame, s.studyID)
				if err != nil {
					s.teardown()
					return nil, err
				}
				if found {
					studySeen = true
					for _, p := range sp {
						study[p.Epoch] = p
					}
				}
			}
		case FrameSeriesCompleted:
			seriesDone = true
		case FrameSeriesError:
			return nil, fmt.Errorf("series %s: %s", s.seriesID, frame.errorText())
		case FrameStudyCompleted:
			studySeen = true
		case FrameStudyError:
			studyErr = fmt.Errorf("study %s: %s", s.studyID, frame.errorText())
			s.logger.WithField("study", s.studyID).Warn("study rejected by upstream")
		case FrameCriticalError, FrameProtocolError:
			err := classifyUpstreamError(frame)
			s.teardown()
			return nil, err
		case FrameSymbolResolved:
			if label, info, err := decodeSymbolResolved(frame); err == nil && label != "" {
				s.lastInfo = &info
			}
		}

		// The series settles once bars are in, but an attached study still
		// gets to report before we stop listening.
		studySettled := !studyWanted || studySeen || studyErr != nil
		if studySettled && (seriesDone || len(bars) >= req.BarCount) {
			completed = true
		}
	}

	if studyErr != nil {
		return nil, studyErr
	}

	chart := &marketdata.ChartData{
		Symbol:     req.Symbol,
		Resolution: req.Resolution,
		Bars:       sortBars(bars),
		Info:       s.lastInfo,
		FetchedAt:  time.Now().UTC(),
		Elapsed:    time.Since(started).Milliseconds(),
	}
	if studyWanted {
		chart.Study = sortStudyPoints(study)
	}
	return chart, nil
}

// Close tears the session down. A settled series is detached first so the
// upstream frees it promptly. Safe to call repeatedly.
func (s *ChartSession) Close() error {
	if s.state == StateClosed {
		return nil
	}
	if s.state == StateReady && s.transport != nil && s.seriesID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = s.send(ctx, "remove_series", s.id, s.seriesID)
		cancel()
	}
	return s.teardown()
}

func (s *ChartSession) teardown() error {
	s.setState(StateClosed)
	if s.transport == nil {
		return nil
	}
	if err := s.transport.Close(); err != nil && !errors.Is(err, ErrSessionClosed) {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// readFrame returns the next non-heartbeat frame, echoing keep-alives
// transparently. The timeout bounds the wait for a single frame.
func (s *ChartSession) readFrame(ctx context.Context, timeout time.Duration) (Frame, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		payload, ok, err := s.dec.Next()
		if err != nil {
			return Frame{}, err
		}
		if ok {
			frame, err := ParseFrame(payload)
			if err != nil {
				return Frame{}, err
			}
			if frame.Kind == FrameHeartbeat {
				if err := s.transport.Write(ctx, EncodeFrame(frame.Raw)); err != nil {
					return Frame{}, err
				}
				continue
			}
			return frame, nil
		}

		chunk, err := s.transport.Read(waitCtx)
		if err != nil {
			return Frame{}, err
		}
		s.dec.Push(chunk)
	}
}

func (s *ChartSession) send(ctx context.Context, method string, params ...any) error {
	frame, err := encodeCommand(method, params...)
	if err != nil {
		return err
	}
	if err := s.transport.Write(ctx, frame); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

func turnaround(seq int) string { return fmt.Sprintf("s%d", seq) }

// symbolSpec builds the resolve_symbol descriptor: split-adjusted regular
// session data, matching what the chart UI requests.
func symbolSpec(symbol string) string {
	spec, _ := json.Marshal(map[string]string{
		"symbol":     symbol,
		"adjustment": "splits",
		"session":    "regular",
	})
	return "=" + string(spec)
}

// classifyUpstreamError maps upstream error frames onto the session error
// classes. Authentication failures read as expired sessions; anything else
// is a protocol fault.
func classifyUpstreamError(f Frame) error {
	text := f.errorText()
	lower := strings.ToLower(text)
	if strings.Contains(lower, "auth") || strings.Contains(lower, "expired") || strings.Contains(lower, "unauthorized") {
		return fmt.Errorf("%w: %s", ErrSessionExpired, text)
	}
	return fmt.Errorf("%w: %s", ErrProtocol, text)
}

