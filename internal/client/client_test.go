package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/wagiedev/graphql-ws-go/internal/config"
	"github.com/wagiedev/graphql-ws-go/internal/errors"
	"github.com/wagiedev/graphql-ws-go/internal/frame"
)

// mockTransport implements config.Transport for testing.
// It plays a well-behaved server: connection_init is acknowledged, every start
// gets one data frame back, and stop is answered with complete.
type mockTransport struct {
	mu       sync.Mutex
	started  bool
	closed   bool
	messages chan []byte
	errors   chan error
	sent     []*frame.Frame

	// rejectInit answers connection_init with connection_error instead.
	rejectInit bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		messages: make(chan []byte, 100),
		errors:   make(chan error, 1),
	}
}

func (m *mockTransport) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true

	return nil
}

func (m *mockTransport) ReadMessages(_ context.Context) (<-chan []byte, <-chan error) {
	return m.messages, m.errors
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.ErrConnectionClosed
	}

	f, err := frame.Decode(data)
	if err != nil {
		return err
	}

	m.sent = append(m.sent, f)

	switch f.Type {
	case frame.TypeConnectionInit:
		if m.rejectInit {
			m.messages <- []byte(`{"type":"connection_error","payload":{"message":"forbidden"}}`)
		} else {
			m.messages <- []byte(`{"type":"connection_ack"}`)
		}

	case frame.TypeStart:
		m.messages <- fmt.Appendf(nil, `{"id":%q,"type":"data","payload":{"data":{"ok":true}}}`, f.ID)

	case frame.TypeStop:
		m.messages <- fmt.Appendf(nil, `{"id":%q,"type":"complete"}`, f.ID)
	}

	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.messages)
		close(m.errors)
	}

	return nil
}

func (m *mockTransport) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.started && !m.closed
}

// fail breaks the connection with err.
func (m *mockTransport) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		m.errors <- err
		close(m.errors)
		close(m.messages)
	}
}

func (m *mockTransport) count(t frame.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, f := range m.sent {
		if f.Type == t {
			n++
		}
	}

	return n
}

func (m *mockTransport) last(t frame.Type) *frame.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Type == t {
			return m.sent[i]
		}
	}

	return nil
}

func startClient(t *testing.T, transport *mockTransport, options *config.Options) *Client {
	t.Helper()

	if options == nil {
		options = &config.Options{}
	}

	options.Transport = transport
	options.TracerProvider = noop.NewTracerProvider()

	client := New()
	require.NoError(t, client.Start(context.Background(), "ws://test/graphql", options))

	t.Cleanup(func() { _ = client.Close() })

	return client
}

// TestClient_StartContextCancellation tests that the client's errgroup
// uses context.Background() rather than the caller's context.
func TestClient_StartContextCancellation(t *testing.T) {
	t.Run("client remains connected after startup context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		client := New()

		err := client.Start(ctx, "ws://test/graphql", &config.Options{
			Transport: newMockTransport(),
		})
		require.NoError(t, err)

		assert.True(t, client.isConnected(), "client should be connected after Start()")

		cancel()

		// Give time for cancellation to propagate
		time.Sleep(50 * time.Millisecond)

		assert.True(t, client.isConnected(), "client should remain connected after ctx cancel")

		result, err := client.Query(context.Background(), "{ ok }", nil, nil)
		require.NoError(t, err)
		require.Equal(t, frame.TypeData, result.Type)

		require.NoError(t, client.Close())
	})

	t.Run("client remains connected after startup context timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		client := New()

		err := client.Start(ctx, "ws://test/graphql", &config.Options{
			Transport: newMockTransport(),
		})
		require.NoError(t, err)

		time.Sleep(150 * time.Millisecond)

		assert.True(t, client.isConnected(), "client should remain connected after ctx timeout")

		require.NoError(t, client.Close())
	})
}

func TestClient_Lifecycle(t *testing.T) {
	client := New()

	_, err := client.Query(context.Background(), "{ ok }", nil, nil)
	require.ErrorIs(t, err, errors.ErrClientNotConnected)

	_, err = client.StopSubscribe(context.Background(), "abc123")
	require.ErrorIs(t, err, errors.ErrClientNotConnected)

	waitClosed(t, client.SubscriptionDone("abc123"))

	options := &config.Options{Transport: newMockTransport()}
	require.NoError(t, client.Start(context.Background(), "ws://test/graphql", options))

	err = client.Start(context.Background(), "ws://test/graphql", options)
	require.ErrorIs(t, err, errors.ErrClientAlreadyConnected)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.False(t, client.isConnected())

	_, err = client.Query(context.Background(), "{ ok }", nil, nil)
	require.ErrorIs(t, err, errors.ErrClientClosed)

	_, err = client.Subscribe(context.Background(), "subscription { ok }", nil, nil, nil)
	require.ErrorIs(t, err, errors.ErrClientClosed)

	_, err = client.StopSubscribe(context.Background(), "abc123")
	require.ErrorIs(t, err, errors.ErrClientClosed)

	err = client.Start(context.Background(), "ws://test/graphql", options)
	require.ErrorIs(t, err, errors.ErrClientClosed)
}

func TestClient_CloseWithoutStart(t *testing.T) {
	client := New()

	require.NoError(t, client.Close())
}

func TestClient_QueryHandshakesEveryTime(t *testing.T) {
	transport := newMockTransport()
	client := startClient(t, transport, nil)

	for range 2 {
		result, err := client.Query(context.Background(), "{ ok }", map[string]any{"a": 1}, nil)
		require.NoError(t, err)
		require.JSONEq(t, `{"data":{"ok":true}}`, string(result.Payload))
	}

	require.Equal(t, 2, transport.count(frame.TypeConnectionInit))
	require.Equal(t, 2, transport.count(frame.TypeStart))
	require.Equal(t, 2, transport.count(frame.TypeStop))
	require.True(t, client.Initialized())
}

func TestClient_HandshakeOnce(t *testing.T) {
	transport := newMockTransport()
	client := startClient(t, transport, &config.Options{HandshakeOnce: true})

	for range 3 {
		_, err := client.Query(context.Background(), "{ ok }", nil, nil)
		require.NoError(t, err)
	}

	require.Equal(t, 1, transport.count(frame.TypeConnectionInit))

	// Per-call headers always re-run the handshake.
	_, err := client.Query(context.Background(), "{ ok }", nil, map[string]string{"X-Tenant": "a"})
	require.NoError(t, err)
	require.Equal(t, 2, transport.count(frame.TypeConnectionInit))
	require.JSONEq(t, `{"headers":{"X-Tenant":"a"}}`, string(transport.last(frame.TypeConnectionInit).Payload))
}

func TestClient_InitHeadersAreDefault(t *testing.T) {
	transport := newMockTransport()
	client := startClient(t, transport, &config.Options{
		InitHeaders: map[string]string{"Authorization": "Bearer t"},
	})

	require.NoError(t, client.Handshake(context.Background(), nil))
	require.JSONEq(t,
		`{"headers":{"Authorization":"Bearer t"}}`,
		string(transport.last(frame.TypeConnectionInit).Payload),
	)
}

func TestClient_HandshakeRejected(t *testing.T) {
	transport := newMockTransport()
	transport.rejectInit = true

	client := startClient(t, transport, nil)

	_, err := client.Query(context.Background(), "{ ok }", nil, nil)
	require.Error(t, err)

	herr, ok := stderrors.AsType[*errors.HandshakeError](err)
	require.True(t, ok)
	require.Equal(t, "forbidden", herr.Reason)
	require.Zero(t, transport.count(frame.TypeStart))
}

func TestClient_SubscribeAndStop(t *testing.T) {
	transport := newMockTransport()
	client := startClient(t, transport, nil)

	events := make(chan *frame.Frame, 10)

	id, err := client.Subscribe(context.Background(), "subscription { ok }", nil, nil,
		func(_ context.Context, _ string, f *frame.Frame) {
			events <- f
		})
	require.NoError(t, err)

	select {
	case f := <-events:
		require.Equal(t, id, f.ID)
		require.Equal(t, frame.TypeData, f.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}

	ack, err := client.StopSubscribe(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, ack)
	require.Equal(t, frame.TypeComplete, ack.Type)

	waitClosed(t, client.SubscriptionDone(id))
	require.Equal(t, 1, transport.count(frame.TypeStop))
}

func TestClient_DefaultEventHandler(t *testing.T) {
	transport := newMockTransport()

	events := make(chan string, 10)
	client := startClient(t, transport, &config.Options{
		EventHandler: func(_ context.Context, id string, _ *frame.Frame) {
			events <- id
		},
	})

	id, err := client.Subscribe(context.Background(), "subscription { ok }", nil, nil, nil)
	require.NoError(t, err)

	select {
	case got := <-events:
		require.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatal("default handler not called")
	}
}

func TestClient_TransportFailure(t *testing.T) {
	transport := newMockTransport()
	client := startClient(t, transport, nil)

	transport.fail(stderrors.New("connection reset"))

	require.Eventually(t, func() bool {
		return client.FatalError() != nil
	}, 5*time.Second, 5*time.Millisecond)

	_, err := client.Query(context.Background(), "{ ok }", nil, nil)
	require.Error(t, err)

	_, ok := stderrors.AsType[*errors.ConnectionError](err)
	require.True(t, ok)
}

func TestClient_TransportFailureReleasesSubscriptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	transport := newMockTransport()
	client := startClient(t, transport, &config.Options{MetricsRegisterer: reg})

	var (
		endMu  sync.Mutex
		endErr error
	)

	ctx := config.WithEndHandler(context.Background(), func(_ string, _ *frame.Frame, err error) {
		endMu.Lock()
		endErr = err
		endMu.Unlock()
	})

	id, err := client.Subscribe(ctx, "subscription { ticks }", nil, nil, func(context.Context, string, *frame.Frame) {})
	require.NoError(t, err)

	transport.fail(stderrors.New("connection reset"))
	waitClosed(t, client.SubscriptionDone(id))

	expected := `
# HELP gqlws_operations_active Number of operations currently open, by kind
# TYPE gqlws_operations_active gauge
gqlws_operations_active{kind="subscription"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gqlws_operations_active"))

	require.Error(t, client.FatalError())

	endMu.Lock()
	defer endMu.Unlock()

	_, ok := stderrors.AsType[*errors.ConnectionError](endErr)
	require.True(t, ok, "got %v", endErr)
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	transport := newMockTransport()
	client := startClient(t, transport, &config.Options{MetricsRegisterer: reg})

	_, err := client.Query(context.Background(), "{ ok }", nil, nil)
	require.NoError(t, err)

	sent, err := testutil.GatherAndCount(reg, "gqlws_frames_sent_total")
	require.NoError(t, err)
	require.Positive(t, sent)

	handshakes, err := testutil.GatherAndCount(reg, "gqlws_handshakes_total")
	require.NoError(t, err)
	require.Equal(t, 1, handshakes)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel to close")
	}
}
