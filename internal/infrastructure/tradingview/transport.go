package tradingview

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultURL    = "wss://data.tradingview.com/socket.io/websocket"
	DefaultOrigin = "https://www.tradingview.com"

	defaultWriteTimeout = 10 * time.Second
)

// Transport is a message stream to the upstream. Read blocks until a
// websocket message arrives, the transport dies, or ctx is done.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Close() error
}

// Dialer opens a connected Transport. Tests substitute an in-memory fake.
type Dialer func(ctx context.Context) (Transport, error)

// NewDialer builds a websocket Dialer for the upstream endpoint. The Origin
// header is required or the upstream drops the handshake.
func NewDialer(url, origin string, handshakeTimeout time.Duration) Dialer {
	if url == "" {
		url = DefaultURL
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return func(ctx context.Context) (Transport, error) {
		dialer := websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
		header := http.Header{}
		header.Set("Origin", origin)

		conn, _, err := dialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, url, err)
		}
		return newWSTransport(conn), nil
	}
}

// wsTransport pumps inbound messages through a channel so reads can carry
// deadlines without poisoning the underlying connection.
type wsTransport struct {
	conn    *websocket.Conn
	frames  chan []byte
	readErr chan error
	done    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	t := &wsTransport{
		conn:    conn,
		frames:  make(chan []byte, 64),
		readErr: make(chan error, 1),
		done:    make(chan struct{}),
	}
	go t.readPump()
	return t
}

func (t *wsTransport) readPump() {
	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case t.readErr <- err:
			default:
			}
			return
		}
		select {
		case t.frames <- message:
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	// Drain buffered messages before surfacing a terminal error.
	select {
	case msg := <-t.frames:
		return msg, nil
	default:
	}

	select {
	case msg := <-t.frames:
		return msg, nil
	case err := <-t.readErr:
		t.readErr <- err
		return nil, fmt.Errorf("%w: read: %v", ErrTransport, err)
	case <-t.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *wsTransport) Write(ctx context.Context, payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set write deadline: %v", ErrTransport, err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: write: %v", ErrTransport, err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		deadline := time.Now().Add(time.Second)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
