package tradingview

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeFrame(t *testing.T) {
	got := string(EncodeFrame(`{"m":"chart_create_session","p":["cs_abc",""]}`))
	want := `~m~46~m~{"m":"chart_create_session","p":["cs_abc",""]}`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestEncodeFrameCountsBytes(t *testing.T) {
	// Length prefixes count UTF-8 bytes, not runes.
	got := string(EncodeFrame("€"))
	if got != "~m~3~m~€" {
		t.Errorf("Expected byte-length prefix, got %q", got)
	}
}

func TestDecoderRoundTrip(t *testing.T) {
	payloads := []string{
		`{"m":"set_auth_token","p":["jwt"]}`,
		"~h~42",
		`{"m":"du","p":["cs_x",{}]}`,
	}

	var dec Decoder
	for _, p := range payloads {
		dec.Push(EncodeFrame(p))
	}

	got, err := dec.DecodeAll()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != len(payloads) {
		t.Fatalf("Expected %d payloads, got %d", len(payloads), len(got))
	}
	for i, p := range payloads {
		if got[i] != p {
			t.Errorf("Expected payload %q at %d, got %q", p, i, got[i])
		}
	}
}

func TestDecoderPartialFrames(t *testing.T) {
	payload := `{"m":"symbol_resolved","p":["cs_y","sds_sym_1",{"pro_name":"NASDAQ:AAPL"}]}`
	frame := EncodeFrame(payload)

	// Feed the frame one byte at a time; no split point may error and the
	// payload must come out whole.
	var dec Decoder
	for i, b := range frame {
		dec.Push([]byte{b})

		got, ok, err := dec.Next()
		if err != nil {
			t.Fatalf("Expected no error at byte %d, got %v", i, err)
		}
		if ok {
			if i != len(frame)-1 {
				t.Fatalf("Expected completion only at the last byte, got it at %d", i)
			}
			if got != payload {
				t.Errorf("Expected %q, got %q", payload, got)
			}
			return
		}
	}
	t.Fatal("Expected a complete payload after the full frame")
}

func TestDecoderFrameSplitAcrossPushes(t *testing.T) {
	payload := strings.Repeat("x", 100)
	frame := EncodeFrame(payload)

	var dec Decoder
	dec.Push(frame[:7])

	if _, ok, err := dec.Next(); ok || err != nil {
		t.Fatalf("Expected incomplete frame, got ok=%v err=%v", ok, err)
	}

	dec.Push(frame[7:])
	got, ok, err := dec.Next()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !ok || got != payload {
		t.Errorf("Expected reassembled payload, got ok=%v %q", ok, got)
	}
}

func TestDecoderTrailingPartialPreserved(t *testing.T) {
	first := EncodeFrame("~h~1")
	second := EncodeFrame(`{"m":"series_completed","p":["cs_z"]}`)

	var dec Decoder
	dec.Push(append(append([]byte{}, first...), second[:5]...))

	payloads, err := dec.DecodeAll()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(payloads) != 1 || payloads[0] != "~h~1" {
		t.Fatalf("Expected only the first payload, got %v", payloads)
	}

	dec.Push(second[5:])
	payloads, err = dec.DecodeAll()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("Expected the second payload after completion, got %v", payloads)
	}
}

func TestDecoderRejectsBadPrefix(t *testing.T) {
	var dec Decoder
	dec.Push([]byte("xx~m~5~m~hello"))

	_, _, err := dec.Next()
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected ErrProtocol for bad prefix, got %v", err)
	}
}

func TestDecoderRejectsNonNumericLength(t *testing.T) {
	var dec Decoder
	dec.Push([]byte("~m~abc~m~hello"))

	_, _, err := dec.Next()
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected ErrProtocol for non-numeric length, got %v", err)
	}
}

func TestDecoderRejectsOversizedLength(t *testing.T) {
	var dec Decoder
	dec.Push([]byte("~m~99999999999~m~"))

	_, _, err := dec.Next()
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected ErrProtocol for oversized length, got %v", err)
	}
}

func TestIsHeartbeat(t *testing.T) {
	if !IsHeartbeat("~h~17") {
		t.Error("Expected ~h~17 to be a heartbeat")
	}
	if !IsHeartbeat("42") {
		t.Error("Expected a bare digit run to be a heartbeat")
	}
	if IsHeartbeat(`{"m":"du","p":[]}`) {
		t.Error("Expected a command envelope not to be a heartbeat")
	}
	if IsHeartbeat("~h~") {
		t.Error("Expected ~h~ without digits not to be a heartbeat")
	}
}
