package tradingview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// The upstream multiplexes frames as ~m~<length>~m~<payload>, where length
// is the payload size in bytes and several frames may share one websocket
// message. Heartbeat payloads (~h~<n>, occasionally a bare digit run) must
// be echoed back verbatim.
const frameSeparator = "~m~"

// maxFramePayload bounds a single declared payload. Initial chart loads for
// long histories run to a few megabytes; anything past this is treated as a
// corrupt length header.
const maxFramePayload = 1 << 24

var heartbeatRe = regexp.MustCompile(`^(~h~)?\d+$`)

// EncodeFrame wraps a payload in the length-prefixed wire format.
func EncodeFrame(payload string) []byte {
	return []byte(frameSeparator + strconv.Itoa(len(payload)) + frameSeparator + payload)
}

// encodeCommand marshals a method envelope and frames it for the wire.
func encodeCommand(method string, params ...any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	raw, err := json.Marshal(envelope{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s command: %w", method, err)
	}
	return EncodeFrame(string(raw)), nil
}

// IsHeartbeat reports whether a payload is a keep-alive that the session
// must echo rather than interpret.
func IsHeartbeat(payload string) bool {
	return heartbeatRe.MatchString(payload)
}

// Decoder incrementally splits the inbound byte stream into frame payloads.
// Partial frames stay buffered until the remainder arrives; they are never
// an error.
type Decoder struct {
	buf []byte
}

// Push appends a received chunk to the decode buffer.
func (d *Decoder) Push(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Next returns the next complete payload. ok is false when the buffer holds
// no complete frame yet. A malformed prefix or length header is a protocol
// error and poisons the stream.
func (d *Decoder) Next() (payload string, ok bool, err error) {
	if len(d.buf) == 0 {
		return "", false, nil
	}
	if len(d.buf) < len(frameSeparator) {
		if !bytes.HasPrefix([]byte(frameSeparator), d.buf) {
			return "", false, fmt.Errorf("%w: frame does not start with separator", ErrProtocol)
		}
		return "", false, nil
	}
	if !bytes.HasPrefix(d.buf, []byte(frameSeparator)) {
		return "", false, fmt.Errorf("%w: frame does not start with separator", ErrProtocol)
	}

	rest := d.buf[len(frameSeparator):]
	end := bytes.Index(rest, []byte(frameSeparator))
	if end < 0 {
		// No closing separator yet. The remainder must look like a digit
		// run, optionally followed by the first bytes of the separator,
		// or the stream is corrupt rather than merely incomplete.
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i > 20 {
			return "", false, fmt.Errorf("%w: frame length header too long", ErrProtocol)
		}
		tail := rest[i:]
		if len(tail) > 0 && !bytes.HasPrefix([]byte(frameSeparator), tail) {
			return "", false, fmt.Errorf("%w: non-numeric frame length", ErrProtocol)
		}
		return "", false, nil
	}

	size, convErr := strconv.Atoi(string(rest[:end]))
	if convErr != nil || size < 0 {
		return "", false, fmt.Errorf("%w: non-numeric frame length %q", ErrProtocol, rest[:end])
	}
	if size > maxFramePayload {
		return "", false, fmt.Errorf("%w: declared frame length %d exceeds limit", ErrProtocol, size)
	}

	body := rest[end+len(frameSeparator):]
	if len(body) < size {
		return "", false, nil
	}

	payload = string(body[:size])
	d.buf = body[size:]
	return payload, true, nil
}

// DecodeAll drains every complete frame currently buffered.
func (d *Decoder) DecodeAll() ([]string, error) {
	var out []string
	for {
		payload, ok, err := d.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, payload)
	}
}

