package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/graphql-ws-go/internal/config"
	"github.com/wagiedev/graphql-ws-go/internal/errors"
	"github.com/wagiedev/graphql-ws-go/internal/frame"
	"github.com/wagiedev/graphql-ws-go/internal/idgen"
)

// serverScript plays the server: it is called with every frame the client sends.
type serverScript func(m *mockTransport, f *frame.Frame)

// mockTransport is an in-memory transport whose inbound side is driven by a script.
type mockTransport struct {
	mu       sync.Mutex
	inbound  chan []byte
	errs     chan error
	sent     []*frame.Frame
	script   serverScript
	started  bool
	closed   bool
	startErr error
}

var _ config.Transport = (*mockTransport)(nil)

func newMockTransport(script serverScript) *mockTransport {
	return &mockTransport{
		inbound: make(chan []byte, 100),
		errs:    make(chan error, 1),
		script:  script,
	}
}

func (m *mockTransport) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}

	m.started = true

	return nil
}

func (m *mockTransport) ReadMessages(_ context.Context) (<-chan []byte, <-chan error) {
	return m.inbound, m.errs
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()

		return errors.ErrConnectionClosed
	}

	f, err := frame.Decode(data)
	if err != nil {
		m.mu.Unlock()

		return err
	}

	m.sent = append(m.sent, f)
	script := m.script
	m.mu.Unlock()

	if script != nil {
		script(m, f)
	}

	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true

		close(m.errs)
		close(m.inbound)
	}

	return nil
}

func (m *mockTransport) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.started && !m.closed
}

// push delivers a raw server message. Messages after close are dropped.
func (m *mockTransport) push(data string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.inbound <- []byte(data)
}

// fail ends the inbound stream with err, as a broken connection would.
func (m *mockTransport) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	m.errs <- err

	close(m.errs)
	close(m.inbound)
}

func (m *mockTransport) sentFrames(t frame.Type) []*frame.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*frame.Frame

	for _, f := range m.sent {
		if f.Type == t {
			out = append(out, f)
		}
	}

	return out
}

func dataMsg(id, payload string) string {
	return fmt.Sprintf(`{"id":%q,"type":"data","payload":%s}`, id, payload)
}

func errorMsg(id, payload string) string {
	return fmt.Sprintf(`{"id":%q,"type":"error","payload":%s}`, id, payload)
}

func completeMsg(id string) string {
	return fmt.Sprintf(`{"id":%q,"type":"complete"}`, id)
}

const (
	ackMsg = `{"type":"connection_ack"}`
	kaMsg  = `{"type":"ka"}`
)

// ackingServer acknowledges connection_init and answers stop with complete.
// start frames are passed to onStart.
func ackingServer(onStart func(m *mockTransport, f *frame.Frame)) serverScript {
	return func(m *mockTransport, f *frame.Frame) {
		switch f.Type {
		case frame.TypeConnectionInit:
			m.push(ackMsg)
		case frame.TypeStart:
			if onStart != nil {
				onStart(m, f)
			}
		case frame.TypeStop:
			m.push(completeMsg(f.ID))
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestDispatcher opens a session on m and starts a dispatcher on it.
func newTestDispatcher(t *testing.T, m *mockTransport, options *config.Options) (*Dispatcher, *Session) {
	t.Helper()

	if options == nil {
		options = &config.Options{}
	}

	if options.StopTimeout == 0 {
		options.StopTimeout = time.Second
	}

	session, err := OpenSession(context.Background(), discardLogger(), m, idgen.Default(), nil)
	require.NoError(t, err)

	d := NewDispatcher(discardLogger(), session, options, nil)
	d.Start(context.Background())

	t.Cleanup(func() {
		d.Stop()
		_ = session.Close()
	})

	return d, session
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel to close")
	}
}
