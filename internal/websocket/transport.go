package websocket

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gows "github.com/gorilla/websocket"

	"github.com/wagiedev/graphql-ws-go/internal/config"
	"github.com/wagiedev/graphql-ws-go/internal/errors"
	"github.com/wagiedev/graphql-ws-go/internal/frame"
)

// closeGracePeriod bounds the write of the close control frame.
const closeGracePeriod = time.Second

// Transport implements config.Transport over a single WebSocket connection.
type Transport struct {
	log     *slog.Logger
	url     string
	options *config.Options
	conn    *gows.Conn
	mu      sync.Mutex // Protects conn, closing and writes
	closing bool       // Whether Close() has been called (intentional shutdown)
}

// Compile-time verification that Transport implements the Transport interface.
var _ config.Transport = (*Transport)(nil)

// NewTransport creates a transport for the server at url.
// The connection is not opened until Start is called.
func NewTransport(log *slog.Logger, url string, options *config.Options) *Transport {
	return &Transport{
		log:     log.With("component", "websocket_transport"),
		url:     url,
		options: options,
	}
}

// Start dials the server and verifies that it accepted the graphql-ws subprotocol.
//
// Returns ConnectionError if the dial fails or the server selects no subprotocol.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return errors.ErrConnectionClosed
	}

	if t.conn != nil {
		return nil
	}

	t.log.Info("Dialing graphql-ws server", "url", t.url)

	dialer := &gows.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.options.DialTimeoutOrDefault(),
		Subprotocols:     []string{frame.Subprotocol},
	}

	if t.options.DialerModifier != nil {
		t.options.DialerModifier(dialer)
	}

	conn, resp, err := dialer.DialContext(ctx, t.url, t.options.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		t.log.Error("Failed to dial server", "error", err)

		if resp != nil {
			err = fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		} else {
			err = fmt.Errorf("dial: %w", err)
		}

		return &errors.ConnectionError{URL: t.url, Err: err}
	}

	if proto := conn.Subprotocol(); proto != frame.Subprotocol {
		t.log.Error("Server did not accept subprotocol", "requested", frame.Subprotocol, "selected", proto)

		_ = conn.Close()

		return &errors.ConnectionError{URL: t.url, Err: errors.ErrSubprotocolRejected}
	}

	if t.options.ReadLimit > 0 {
		conn.SetReadLimit(t.options.ReadLimit)
	}

	t.conn = conn
	t.log.Info("Connected to graphql-ws server", "subprotocol", conn.Subprotocol())

	return nil
}

// ReadMessages reads whole messages from the connection in a goroutine.
//
// The goroutine exits when the connection fails or closes, or the context is
// cancelled. Read failures other than an intentional Close are reported as
// ConnectionError. Both channels are closed when it exits.
func (t *Transport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		errs <- errors.ErrTransportNotConnected

		close(messages)
		close(errs)

		return messages, errs
	}

	// Unblock a pending read when the caller gives up.
	stopWatch := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})

	go func() {
		defer close(messages)
		defer close(errs)
		defer stopWatch()
		defer t.log.Debug("ReadMessages goroutine stopped")

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					t.log.Debug("Context cancelled during read", "error", ctx.Err())

					errs <- ctx.Err()

					return
				}

				if t.isClosing() {
					t.log.Debug("Connection closed during shutdown")

					return
				}

				if gows.IsCloseError(err, gows.CloseNormalClosure, gows.CloseGoingAway) {
					t.log.Info("Server closed the connection", "error", err)

					err = fmt.Errorf("%w: %w", errors.ErrConnectionClosed, err)
				} else {
					t.log.Error("Failed to read from server", "error", err)
				}

				errs <- &errors.ConnectionError{URL: t.url, Err: err}

				return
			}

			t.log.Debug("Received message from server", "data_len", len(data))

			select {
			case messages <- data:
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}
	}()

	return messages, errs
}

// SendMessage writes one text message.
//
// Writes are serialized and bounded by the configured write timeout or the
// context deadline, whichever comes first.
func (t *Transport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return errors.ErrConnectionClosed
	}

	if t.conn == nil {
		return errors.ErrTransportNotConnected
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(t.options.WriteTimeoutOrDefault())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return &errors.ConnectionError{URL: t.url, Err: fmt.Errorf("set write deadline: %w", err)}
	}

	if err := t.conn.WriteMessage(gows.TextMessage, data); err != nil {
		t.log.Error("Failed to write message", "error", err)

		return &errors.ConnectionError{URL: t.url, Err: fmt.Errorf("write: %w", err)}
	}

	t.log.Debug("Message sent", "data_len", len(data))

	return nil
}

// IsReady returns true if the connection is open and Close has not been called.
func (t *Transport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil && !t.closing
}

// Close sends a normal closure frame and closes the connection.
// It's safe to call Close multiple times.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return nil
	}

	t.closing = true

	if t.conn == nil {
		return nil
	}

	t.log.Debug("Closing connection")

	msg := gows.FormatCloseMessage(gows.CloseNormalClosure, "")
	if err := t.conn.WriteControl(gows.CloseMessage, msg, time.Now().Add(closeGracePeriod)); err != nil &&
		!stderrors.Is(err, gows.ErrCloseSent) {
		t.log.Debug("Failed to send close frame", "error", err)
	}

	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}

	return nil
}

func (t *Transport) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closing
}
