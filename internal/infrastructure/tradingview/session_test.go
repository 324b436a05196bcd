package tradingview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	marketdata "marketbridge/internal/domain/entity/marketdata"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func studyConfig(id, scriptID string) *marketdata.IndicatorConfig {
	return &marketdata.IndicatorConfig{
		ID:       id,
		Name:     "Scripted Study",
		ScriptID: scriptID,
		Version:  "1.0",
		Inputs:   map[string]any{"length": 14},
	}
}

// scriptOptions shape the fake upstream's behavior.
type scriptOptions struct {
	greetWithError  bool     // first frame is an auth critical_error
	failSymbols     []string // symbols answered with symbol_error
	emitBars        int      // bars per series request; 0 means the requested count
	skipCompleted   bool     // never send series_completed
	duplicateEpochs bool     // follow up with a du frame rewriting the first bar
	heartbeat       bool     // inject a heartbeat before bar data
	studyFail       bool     // answer create_study with study_error
}

// fakeTransport is an in-memory Transport driven by a scripted responder:
// every command written by the session queues the frames a live upstream
// would answer with.
type fakeTransport struct {
	opts scriptOptions

	mu       sync.Mutex
	writes   []string
	inbound  chan []byte
	done     chan struct{}
	closed   bool
	barCount int
	barBase  int64
}

func newFakeTransport(opts scriptOptions) *fakeTransport {
	t := &fakeTransport{
		opts:    opts,
		inbound: make(chan []byte, 128),
		done:    make(chan struct{}),
		barBase: 1700000000,
	}
	if opts.greetWithError {
		t.push(`{"m":"critical_error","p":["cs","auth token expired"]}`)
	} else {
		t.push(`{"session_id":"<0.1.2>","timestamp":1700000000}`)
	}
	return t
}

func (t *fakeTransport) push(payload string) {
	t.inbound <- EncodeFrame(payload)
}

func (t *fakeTransport) pushRaw(frame []byte) {
	t.inbound <- frame
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-t.inbound:
		return msg, nil
	case <-t.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(ctx context.Context, payload []byte) error {
	var dec Decoder
	dec.Push(payload)
	payloads, err := dec.DecodeAll()
	if err != nil {
		return err
	}

	for _, p := range payloads {
		t.mu.Lock()
		t.writes = append(t.writes, p)
		t.mu.Unlock()

		var env frameEnvelope
		if json.Unmarshal([]byte(p), &env) == nil && env.Method != "" {
			t.respond(env)
		}
	}
	return nil
}

func (t *fakeTransport) respond(env frameEnvelope) {
	str := func(i int) string {
		if i >= len(env.Params) {
			return ""
		}
		var s string
		_ = json.Unmarshal(env.Params[i], &s)
		return s
	}

	switch env.Method {
	case "resolve_symbol":
		session, label, spec := str(0), str(1), str(2)
		symbol := symbolFromSpec(spec)
		for _, bad := range t.opts.failSymbols {
			if symbol == bad {
				t.push(fmt.Sprintf(`{"m":"symbol_error","p":[%q,%q,"invalid symbol"]}`, session, label))
				return
			}
		}
		t.push(fmt.Sprintf(
			`{"m":"symbol_resolved","p":[%q,%q,{"pro_name":%q,"description":"scripted","exchange":"FAKE","currency_code":"USD","pricescale":100}]}`,
			session, label, symbol))

	case "create_series", "modify_series":
		session, seriesID := str(0), str(1)
		count := t.opts.emitBars
		if count == 0 && len(env.Params) >= 6 {
			var n float64
			if json.Unmarshal(env.Params[5], &n) == nil && n > 0 {
				count = int(n)
			}
		}
		if count == 0 {
			count = 3
		}
		if env.Method == "modify_series" {
			t.barBase += 100000 // distinct epochs per retarget
		}
		if t.opts.heartbeat {
			t.push("~h~7")
		}
		t.push(barsFrame("timescale_update", session, seriesID, t.barBase, 0, count))
		if t.opts.duplicateEpochs {
			t.push(fmt.Sprintf(
				`{"m":"du","p":[%q,{%q:{"s":[{"i":0,"v":[%d,1,2,0.5,99,1000]},{"i":1,"v":[%d,2,3,1.5,2.5,500]}]}}]}`,
				session, seriesID, t.barBase, t.barBase+int64(count)*60))
		}
		if !t.opts.skipCompleted {
			t.push(fmt.Sprintf(`{"m":"series_completed","p":[%q,%q]}`, session, seriesID))
		}
		t.barCount = count

	case "create_study":
		session, studyID := str(0), str(1)
		if t.opts.studyFail {
			t.push(fmt.Sprintf(`{"m":"study_error","p":[%q,%q,"unknown script"]}`, session, studyID))
			return
		}
		t.push(fmt.Sprintf(
			`{"m":"du","p":[%q,{%q:{"st":[{"i":0,"v":[%d,12.5]},{"i":1,"v":[%d,-4.25]}]}}]}`,
			session, studyID, t.barBase, t.barBase+60))
	}
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}

func (t *fakeTransport) sentMethods() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var methods []string
	for _, p := range t.writes {
		var env frameEnvelope
		if json.Unmarshal([]byte(p), &env) == nil && env.Method != "" {
			methods = append(methods, env.Method)
		}
	}
	return methods
}

func (t *fakeTransport) wrotePayload(payload string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.writes {
		if p == payload {
			return true
		}
	}
	return false
}

func barsFrame(method, session, seriesID string, base int64, from, to int) string {
	var points []string
	for i := from; i < to; i++ {
		epoch := base + int64(i)*60
		points = append(points, fmt.Sprintf(`{"i":%d,"v":[%d,%d,%d,%d,%d,%d]}`,
			i, epoch, i+1, i+2, i, i+1, (i+1)*100))
	}
	return fmt.Sprintf(`{"m":%q,"p":[%q,{%q:{"s":[%s]}}]}`,
		method, session, seriesID, strings.Join(points, ","))
}

func symbolFromSpec(spec string) string {
	var parsed struct {
		Symbol string `json:"symbol"`
	}
	_ = json.Unmarshal([]byte(strings.TrimPrefix(spec, "=")), &parsed)
	return parsed.Symbol
}

// fakeDialer hands out scripted transports and records each dial.
type fakeDialer struct {
	opts scriptOptions

	mu         sync.Mutex
	dials      int
	transports []*fakeTransport
}

func (d *fakeDialer) dial(ctx context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	t := newFakeTransport(d.opts)
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// recordingObserver captures transitions and phases for assertions.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	phases      []string
}

func (o *recordingObserver) StateChanged(sessionID, from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, from+"->"+to)
}

func (o *recordingObserver) PhaseDone(ctx context.Context, sessionID, phase string, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, phase)
}

func (o *recordingObserver) sawTransition(want string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, tr := range o.transitions {
		if tr == want {
			return true
		}
	}
	return false
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		HelloTimeout:   time.Second,
		ResolveTimeout: time.Second,
		SeriesTimeout:  time.Second,
		BarIdleTimeout: 100 * time.Millisecond,
	}
}

func newTestSession(d *fakeDialer, obs *recordingObserver) *ChartSession {
	return NewChartSession(d.dial, testSessionConfig(), obs, testLogger())
}

func TestSessionOpenAuthenticates(t *testing.T) {
	dialer := &fakeDialer{}
	obs := &recordingObserver{}
	session := newTestSession(dialer, obs)

	if err := session.Open(context.Background(), "jwt-token"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}

	if session.State() != StateChartSessionCreated {
		t.Errorf("Expected chart_session_created, got %v", session.State())
	}

	methods := dialer.last().sentMethods()
	if len(methods) < 2 || methods[0] != "set_auth_token" || methods[1] != "chart_create_session" {
		t.Errorf("Expected auth handshake commands, got %v", methods)
	}

	if !obs.sawTransition("idle->connecting") || !obs.sawTransition("authenticating->chart_session_created") {
		t.Errorf("Expected handshake transitions, got %v", obs.transitions)
	}
}

func TestSessionOpenNoGreeting(t *testing.T) {
	dial := func(ctx context.Context) (Transport, error) {
		// A transport that accepts the socket but never speaks.
		mute := newFakeTransport(scriptOptions{})
		<-mute.inbound // swallow the greeting
		return mute, nil
	}
	cfg := testSessionConfig()
	cfg.HelloTimeout = 50 * time.Millisecond

	session := NewChartSession(dial, cfg, nil, testLogger())
	err := session.Open(context.Background(), "jwt")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Expected ErrSessionExpired for mute upstream, got %v", err)
	}
	if session.State() != StateClosed {
		t.Errorf("Expected closed state after failed open, got %v", session.State())
	}
}

func TestSessionOpenAuthRejected(t *testing.T) {
	dialer := &fakeDialer{opts: scriptOptions{greetWithError: true}}
	session := newTestSession(dialer, &recordingObserver{})

	err := session.Open(context.Background(), "stale-jwt")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Expected ErrSessionExpired, got %v", err)
	}
}

func TestSessionFetchCollectsBars(t *testing.T) {
	dialer := &fakeDialer{}
	obs := &recordingObserver{}
	session := newTestSession(dialer, obs)

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}

	chart, err := session.Fetch(context.Background(), ChartRequest{
		Symbol:     "NASDAQ:AAPL",
		Resolution: "60",
		BarCount:   5,
	})
	if err != nil {
		t.Fatalf("Expected fetch to succeed, got %v", err)
	}

	if len(chart.Bars) != 5 {
		t.Fatalf("Expected 5 bars, got %d", len(chart.Bars))
	}
	for i := 1; i < len(chart.Bars); i++ {
		if chart.Bars[i].Epoch <= chart.Bars[i-1].Epoch {
			t.Fatalf("Expected ascending epochs, got %d after %d", chart.Bars[i].Epoch, chart.Bars[i-1].Epoch)
		}
	}
	if chart.Info == nil || chart.Info.Symbol != "NASDAQ:AAPL" {
		t.Errorf("Expected resolved symbol info, got %+v", chart.Info)
	}
	if session.State() != StateReady {
		t.Errorf("Expected ready state, got %v", session.State())
	}
	if !obs.sawTransition("awaiting_bars->ready") {
		t.Errorf("Expected awaiting_bars->ready transition, got %v", obs.transitions)
	}
}

func TestSessionFetchDeduplicatesBars(t *testing.T) {
	dialer := &fakeDialer{opts: scriptOptions{duplicateEpochs: true, emitBars: 3}}
	session := newTestSession(dialer, &recordingObserver{})

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}

	chart, err := session.Fetch(context.Background(), ChartRequest{Symbol: "X", Resolution: "5", BarCount: 5})
	if err != nil {
		t.Fatalf("Expected fetch to succeed, got %v", err)
	}

	// The follow-up du frame rewrote the first epoch and added one more.
	if len(chart.Bars) != 4 {
		t.Fatalf("Expected 4 unique bars, got %d", len(chart.Bars))
	}
	if chart.Bars[0].Close != 99 {
		t.Errorf("Expected last write to win for duplicate epoch, got close %v", chart.Bars[0].Close)
	}
}

func TestSessionFetchEchoesHeartbeats(t *testing.T) {
	dialer := &fakeDialer{opts: scriptOptions{heartbeat: true}}
	session := newTestSession(dialer, &recordingObserver{})

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}
	if _, err := session.Fetch(context.Background(), ChartRequest{Symbol: "X", Resolution: "15", BarCount: 2}); err != nil {
		t.Fatalf("Expected fetch to succeed, got %v", err)
	}

	if !dialer.last().wrotePayload("~h~7") {
		t.Error("Expected the heartbeat to be echoed back verbatim")
	}
}

func TestSessionReuseRetargetsSymbol(t *testing.T) {
	dialer := &fakeDialer{}
	obs := &recordingObserver{}
	session := newTestSession(dialer, obs)

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}
	first, err := session.Fetch(context.Background(), ChartRequest{Symbol: "A", Resolution: "60", BarCount: 2})
	if err != nil {
		t.Fatalf("Expected first fetch to succeed, got %v", err)
	}
	second, err := session.Fetch(context.Background(), ChartRequest{Symbol: "B", Resolution: "60", BarCount: 2})
	if err != nil {
		t.Fatalf("Expected second fetch to succeed, got %v", err)
	}

	methods := dialer.last().sentMethods()
	createSeen, modifySeen := 0, 0
	for _, m := range methods {
		switch m {
		case "create_series":
			createSeen++
		case "modify_series":
			modifySeen++
		}
	}
	if createSeen != 1 || modifySeen != 1 {
		t.Errorf("Expected one create and one modify, got create=%d modify=%d (%v)", createSeen, modifySeen, methods)
	}
	if !obs.sawTransition("ready->modifying_symbol") {
		t.Errorf("Expected ready->modifying_symbol transition, got %v", obs.transitions)
	}
	if first.Bars[0].Epoch == second.Bars[0].Epoch {
		t.Error("Expected retargeted series to carry fresh bars")
	}
	if session.State() != StateReady {
		t.Errorf("Expected ready state after reuse, got %v", session.State())
	}
}

func TestSessionSymbolErrorKeepsSessionUsable(t *testing.T) {
	dialer := &fakeDialer{opts: scriptOptions{failSymbols: []string{"BAD"}}}
	session := newTestSession(dialer, &recordingObserver{})

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}

	if _, err := session.Fetch(context.Background(), ChartRequest{Symbol: "BAD", Resolution: "60", BarCount: 2}); err == nil {
		t.Fatal("Expected symbol error")
	}
	if session.State() == StateClosed {
		t.Fatal("Expected session to survive a symbol rejection")
	}

	chart, err := session.Fetch(context.Background(), ChartRequest{Symbol: "GOOD", Resolution: "60", BarCount: 2})
	if err != nil {
		t.Fatalf("Expected recovery fetch to succeed, got %v", err)
	}
	if len(chart.Bars) != 2 {
		t.Errorf("Expected 2 bars after recovery, got %d", len(chart.Bars))
	}
}

func TestSessionIdleSettles(t *testing.T) {
	// Fewer bars than requested and no series_completed: the session must
	// settle on the idle timeout without reporting an error.
	dialer := &fakeDialer{opts: scriptOptions{emitBars: 2, skipCompleted: true}}
	session := newTestSession(dialer, &recordingObserver{})

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}

	chart, err := session.Fetch(context.Background(), ChartRequest{Symbol: "THIN", Resolution: "1D", BarCount: 500})
	if err != nil {
		t.Fatalf("Expected idle settle, got %v", err)
	}
	if len(chart.Bars) != 2 {
		t.Errorf("Expected the 2 available bars, got %d", len(chart.Bars))
	}
	if session.State() != StateReady {
		t.Errorf("Expected ready state, got %v", session.State())
	}
}

func TestSessionStudyValues(t *testing.T) {
	dialer := &fakeDialer{}
	session := newTestSession(dialer, &recordingObserver{})

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}

	chart, err := session.Fetch(context.Background(), ChartRequest{
		Symbol:     "X",
		Resolution: "60",
		BarCount:   2,
		Study:      studyConfig("cvd", "Script@tv-scripting-101!"),
	})
	if err != nil {
		t.Fatalf("Expected fetch with study to succeed, got %v", err)
	}

	if len(chart.Study) != 2 {
		t.Fatalf("Expected 2 study points, got %d", len(chart.Study))
	}
	if chart.Study[0].Values[0] != 12.5 {
		t.Errorf("Expected first study value 12.5, got %v", chart.Study[0].Values)
	}

	methods := dialer.last().sentMethods()
	found := false
	for _, m := range methods {
		if m == "create_study" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected create_study command, got %v", methods)
	}
}

func TestSessionStudyErrorIsContained(t *testing.T) {
	dialer := &fakeDialer{opts: scriptOptions{studyFail: true}}
	session := newTestSession(dialer, &recordingObserver{})

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}

	_, err := session.Fetch(context.Background(), ChartRequest{
		Symbol:     "X",
		Resolution: "60",
		BarCount:   2,
		Study:      studyConfig("cvd", "bad-script"),
	})
	if err == nil {
		t.Fatal("Expected study error")
	}
	if session.State() == StateClosed {
		t.Error("Expected session to survive a study rejection")
	}
}

func TestSessionCloseDetachesSeries(t *testing.T) {
	dialer := &fakeDialer{}
	session := newTestSession(dialer, &recordingObserver{})

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}
	if _, err := session.Fetch(context.Background(), ChartRequest{Symbol: "X", Resolution: "60", BarCount: 2}); err != nil {
		t.Fatalf("Expected fetch to succeed, got %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Expected close to succeed, got %v", err)
	}

	methods := dialer.last().sentMethods()
	if methods[len(methods)-1] != "remove_series" {
		t.Errorf("Expected remove_series before teardown, got %v", methods)
	}
}

func TestSessionCloseIsTerminal(t *testing.T) {
	dialer := &fakeDialer{}
	session := newTestSession(dialer, &recordingObserver{})

	if err := session.Open(context.Background(), "jwt"); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Expected close to succeed, got %v", err)
	}
	if session.State() != StateClosed {
		t.Errorf("Expected closed state, got %v", session.State())
	}

	if _, err := session.Fetch(context.Background(), ChartRequest{Symbol: "X", Resolution: "60"}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed after close, got %v", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("Expected repeated close to be a no-op, got %v", err)
	}
}
