package tradingview

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	marketdata "marketbridge/internal/domain/entity/marketdata"
)

// envelope is the outgoing command shape: {"m": method, "p": params}.
type envelope struct {
	Method string `json:"m"`
	Params []any  `json:"p"`
}

type frameEnvelope struct {
	Method string            `json:"m"`
	Params []json.RawMessage `json:"p"`
}

type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameHeartbeat
	FrameServerHello
	FrameSymbolResolved
	FrameSymbolError
	FrameSeriesLoading
	FrameTimescaleUpdate
	FrameDataUpdate
	FrameSeriesCompleted
	FrameSeriesError
	FrameStudyCompleted
	FrameStudyError
	FrameCriticalError
	FrameProtocolError
)

var kindNames = map[FrameKind]string{
	FrameUnknown:         "unknown",
	FrameHeartbeat:       "heartbeat",
	FrameServerHello:     "server_hello",
	FrameSymbolResolved:  "symbol_resolved",
	FrameSymbolError:     "symbol_error",
	FrameSeriesLoading:   "series_loading",
	FrameTimescaleUpdate: "timescale_update",
	FrameDataUpdate:      "du",
	FrameSeriesCompleted: "series_completed",
	FrameSeriesError:     "series_error",
	FrameStudyCompleted:  "study_completed",
	FrameStudyError:      "study_error",
	FrameCriticalError:   "critical_error",
	FrameProtocolError:   "protocol_error",
}

func (k FrameKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var kindByMethod = map[string]FrameKind{
	"symbol_resolved":  FrameSymbolResolved,
	"symbol_error":     FrameSymbolError,
	"series_loading":   FrameSeriesLoading,
	"timescale_update": FrameTimescaleUpdate,
	"du":               FrameDataUpdate,
	"series_completed": FrameSeriesCompleted,
	"series_error":     FrameSeriesError,
	"study_completed":  FrameStudyCompleted,
	"study_error":      FrameStudyError,
	"critical_error":   FrameCriticalError,
	"protocol_error":   FrameProtocolError,
}

// Frame is one decoded payload from the wire.
type Frame struct {
	Kind   FrameKind
	Method string
	Params []json.RawMessage
	Raw    string
}

// ParseFrame classifies a wire payload. Heartbeats never reach JSON
// decoding; the first JSON object after connect carries no method and is
// the server hello.
func ParseFrame(payload string) (Frame, error) {
	if IsHeartbeat(payload) {
		return Frame{Kind: FrameHeartbeat, Raw: payload}, nil
	}

	var env frameEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Frame{}, fmt.Errorf("%w: undecodable payload: %v", ErrProtocol, err)
	}
	if env.Method == "" {
		return Frame{Kind: FrameServerHello, Raw: payload}, nil
	}

	kind, ok := kindByMethod[env.Method]
	if !ok {
		kind = FrameUnknown
	}
	return Frame{Kind: kind, Method: env.Method, Params: env.Params, Raw: payload}, nil
}

// stringParam decodes params[i] as a string, empty on any mismatch.
func (f Frame) stringParam(i int) string {
	if i >= len(f.Params) {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Params[i], &s); err != nil {
		return ""
	}
	return s
}

// SessionID returns the chart session the frame addresses, when present.
func (f Frame) SessionID() string { return f.stringParam(0) }

// errorText flattens every string-decodable param into one message for
// error frames.
func (f Frame) errorText() string {
	var parts []string
	for i := range f.Params {
		if s := f.stringParam(i); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ": ")
}

// resolvedSymbolInfo is the upstream metadata shape on symbol_resolved.
type resolvedSymbolInfo struct {
	ProName      string  `json:"pro_name"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	ExchangeName string  `json:"exchange"`
	Currency     string  `json:"currency_code"`
	Type         string  `json:"type"`
	Session      string  `json:"session"`
	Timezone     string  `json:"timezone"`
	PriceScale   float64 `json:"pricescale"`
}

// decodeSymbolResolved extracts the symbol label and metadata from a
// symbol_resolved frame: p = [session, label, {info}].
func decodeSymbolResolved(f Frame) (label string, info marketdata.SymbolInfo, err error) {
	label = f.stringParam(1)
	if len(f.Params) < 3 {
		return label, info, fmt.Errorf("%w: symbol_resolved carries no metadata", ErrProtocol)
	}
	var raw resolvedSymbolInfo
	if err := json.Unmarshal(f.Params[2], &raw); err != nil {
		return label, info, fmt.Errorf("%w: malformed symbol metadata: %v", ErrProtocol, err)
	}
	symbol := raw.ProName
	if symbol == "" {
		symbol = raw.Name
	}
	info = marketdata.SymbolInfo{
		Symbol:      symbol,
		Name:        raw.Name,
		Description: raw.Description,
		Exchange:    raw.ExchangeName,
		Currency:    raw.Currency,
		Type:        raw.Type,
		Session:     raw.Session,
		Timezone:    raw.Timezone,
		PriceScale:  int64(raw.PriceScale),
	}
	return label, info, nil
}

// seriesNode is the per-series slot inside timescale_update and du frames:
// {"<label>": {"s": [{"i": n, "v": [time, o, h, l, c, volume]}], "st": [...]}}.
type seriesNode struct {
	S []struct {
		I int       `json:"i"`
		V []float64 `json:"v"`
	} `json:"s"`
	St []struct {
		I int       `json:"i"`
		V []float64 `json:"v"`
	} `json:"st"`
}

// decodeSeriesUpdate extracts bar points for the given series label from a
// timescale_update or du frame. found is false when the frame updates a
// different series.
func decodeSeriesUpdate(f Frame, label string) (bars []marketdata.Bar, found bool, err error) {
	node, found, err := seriesNodeFor(f, label)
	if err != nil || !found {
		return nil, found, err
	}
	for _, point := range node.S {
		if len(point.V) < 5 {
			continue
		}
		bar := marketdata.Bar{
			Epoch: int64(point.V[0]),
			Open:  point.V[1],
			High:  point.V[2],
			Low:   point.V[3],
			Close: point.V[4],
		}
		if len(point.V) > 5 {
			bar.Volume = point.V[5]
		}
		bars = append(bars, bar)
	}
	return bars, true, nil
}

// decodeStudyUpdate extracts study plot points for the given study label.
func decodeStudyUpdate(f Frame, label string) (points []marketdata.StudyPoint, found bool, err error) {
	node, found, err := seriesNodeFor(f, label)
	if err != nil || !found {
		return nil, found, err
	}
	for _, point := range node.St {
		if len(point.V) < 1 {
			continue
		}
		points = append(points, marketdata.StudyPoint{
			Epoch:  int64(point.V[0]),
			Values: point.V[1:],
		})
	}
	return points, true, nil
}

func seriesNodeFor(f Frame, label string) (seriesNode, bool, error) {
	var node seriesNode
	if len(f.Params) < 2 {
		return node, false, fmt.Errorf("%w: %s frame carries no series payload", ErrProtocol, f.Method)
	}
	var slots map[string]json.RawMessage
	if err := json.Unmarshal(f.Params[1], &slots); err != nil {
		return node, false, fmt.Errorf("%w: malformed %s payload: %v", ErrProtocol, f.Method, err)
	}
	raw, ok := slots[label]
	if !ok {
		return node, false, nil
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return node, false, fmt.Errorf("%w: malformed series node %q: %v", ErrProtocol, label, err)
	}
	return node, true, nil
}

// sortBars orders a deduplicated bar map ascending by epoch.
func sortBars(byEpoch map[int64]marketdata.Bar) []marketdata.Bar {
	out := make([]marketdata.Bar, 0, len(byEpoch))
	for _, b := range byEpoch {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out
}

func sortStudyPoints(byEpoch map[int64]marketdata.StudyPoint) []marketdata.StudyPoint {
	if len(byEpoch) == 0 {
		return nil
	}
	out := make([]marketdata.StudyPoint, 0, len(byEpoch))
	for _, p := range byEpoch {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out
}
