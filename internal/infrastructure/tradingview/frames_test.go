package tradingview

import (
	"errors"
	"testing"
)

func TestParseFrameHeartbeat(t *testing.T) {
	frame, err := ParseFrame("~h~3")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if frame.Kind != FrameHeartbeat {
		t.Errorf("Expected heartbeat kind, got %v", frame.Kind)
	}
}

func TestParseFrameServerHello(t *testing.T) {
	frame, err := ParseFrame(`{"session_id":"<0.1.2>","timestamp":1700000000}`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if frame.Kind != FrameServerHello {
		t.Errorf("Expected server hello kind, got %v", frame.Kind)
	}
}

func TestParseFrameKnownMethods(t *testing.T) {
	cases := map[string]FrameKind{
		"symbol_resolved":  FrameSymbolResolved,
		"timescale_update": FrameTimescaleUpdate,
		"du":               FrameDataUpdate,
		"series_completed": FrameSeriesCompleted,
		"series_error":     FrameSeriesError,
		"critical_error":   FrameCriticalError,
		"protocol_error":   FrameProtocolError,
	}

	for method, want := range cases {
		frame, err := ParseFrame(`{"m":"` + method + `","p":["cs_a"]}`)
		if err != nil {
			t.Fatalf("Expected no error for %s, got %v", method, err)
		}
		if frame.Kind != want {
			t.Errorf("Expected %v for %s, got %v", want, method, frame.Kind)
		}
		if frame.SessionID() != "cs_a" {
			t.Errorf("Expected session id cs_a for %s, got %q", method, frame.SessionID())
		}
	}
}

func TestParseFrameUnknownMethod(t *testing.T) {
	frame, err := ParseFrame(`{"m":"quote_list_fields","p":[]}`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if frame.Kind != FrameUnknown {
		t.Errorf("Expected unknown kind, got %v", frame.Kind)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	_, err := ParseFrame("not json at all")
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected ErrProtocol, got %v", err)
	}
}

func TestDecodeSymbolResolved(t *testing.T) {
	payload := `{"m":"symbol_resolved","p":["cs_a","sds_sym_1",` +
		`{"pro_name":"NASDAQ:AAPL","description":"Apple Inc.","exchange":"NASDAQ",` +
		`"currency_code":"USD","type":"stock","pricescale":100,"timezone":"America/New_York"}]}`

	frame, err := ParseFrame(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	label, info, err := decodeSymbolResolved(frame)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if label != "sds_sym_1" {
		t.Errorf("Expected label sds_sym_1, got %q", label)
	}
	if info.Symbol != "NASDAQ:AAPL" {
		t.Errorf("Expected symbol NASDAQ:AAPL, got %q", info.Symbol)
	}
	if info.Currency != "USD" {
		t.Errorf("Expected currency USD, got %q", info.Currency)
	}
	if info.PriceScale != 100 {
		t.Errorf("Expected pricescale 100, got %d", info.PriceScale)
	}
}

func TestDecodeSeriesUpdate(t *testing.T) {
	payload := `{"m":"timescale_update","p":["cs_a",` +
		`{"sds_1":{"s":[{"i":0,"v":[1700000000,10,12,9,11,5000]},{"i":1,"v":[1700000060,11,13,10,12]}]}}]}`

	frame, err := ParseFrame(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	bars, found, err := decodeSeriesUpdate(frame, "sds_1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !found {
		t.Fatal("Expected the sds_1 series to be present")
	}
	if len(bars) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(bars))
	}

	if bars[0].Epoch != 1700000000 || bars[0].Open != 10 || bars[0].Volume != 5000 {
		t.Errorf("Unexpected first bar: %+v", bars[0])
	}
	if bars[1].Volume != 0 {
		t.Errorf("Expected zero volume when omitted, got %v", bars[1].Volume)
	}

	// A frame for another series is not an error, just absent.
	_, found, err = decodeSeriesUpdate(frame, "sds_2")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found {
		t.Error("Expected sds_2 to be absent")
	}
}

func TestDecodeStudyUpdate(t *testing.T) {
	payload := `{"m":"du","p":["cs_a",` +
		`{"st1":{"st":[{"i":0,"v":[1700000000,42.5,-3.25]}]}}]}`

	frame, err := ParseFrame(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	points, found, err := decodeStudyUpdate(frame, "st1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !found || len(points) != 1 {
		t.Fatalf("Expected one study point, got found=%v %v", found, points)
	}
	if points[0].Epoch != 1700000000 {
		t.Errorf("Expected epoch 1700000000, got %d", points[0].Epoch)
	}
	if len(points[0].Values) != 2 || points[0].Values[0] != 42.5 {
		t.Errorf("Unexpected study values: %v", points[0].Values)
	}
}

func TestFrameErrorText(t *testing.T) {
	frame, err := ParseFrame(`{"m":"critical_error","p":["cs_a","invalid auth token"]}`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := frame.errorText(); got != "cs_a: invalid auth token" {
		t.Errorf("Expected joined error text, got %q", got)
	}
}
