package tradingview

import "errors"

// Error classes for upstream failures. Callers branch with errors.Is; the
// concrete message carries the wrapped detail.
var (
	// ErrProtocol marks frames that violate the wire format or carry a
	// malformed envelope.
	ErrProtocol = errors.New("tradingview: protocol violation")

	// ErrTransport marks socket-level failures: dial, read, write, close.
	ErrTransport = errors.New("tradingview: transport failure")

	// ErrSessionExpired marks authentication rejections and dead upstreams
	// that accept the socket but never speak.
	ErrSessionExpired = errors.New("tradingview: session expired")

	// ErrSessionClosed is returned by operations on a torn-down session.
	ErrSessionClosed = errors.New("tradingview: session closed")

	// ErrPoolClosed is returned by lease attempts on a closed pool.
	ErrPoolClosed = errors.New("tradingview: connection pool closed")
)
