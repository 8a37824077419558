package config

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gows "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/graphql-ws-go/internal/frame"
	"github.com/wagiedev/graphql-ws-go/internal/idgen"
)

const (
	// DefaultHandshakeTimeout bounds the wait for connection_ack.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultStopTimeout bounds the wait for the server's answer to stop.
	DefaultStopTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds a single transport write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultDialTimeout bounds the WebSocket opening handshake.
	DefaultDialTimeout = 45 * time.Second

	// DefaultMetricsNamespace prefixes Prometheus metric names.
	DefaultMetricsNamespace = "gqlws"
)

// EventHandler receives the data frames of a subscription.
//
// The context is bound to the subscription: it is cancelled when the subscription
// stops, and passing it to StopSubscribe from inside the handler is safe.
type EventHandler func(ctx context.Context, id string, f *frame.Frame)

// DialerModifier customizes the WebSocket dialer before connecting.
type DialerModifier func(*gows.Dialer)

// Options configures the behavior of the client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Transport replaces the default WebSocket transport.
	Transport Transport

	// Header is sent with the WebSocket upgrade request.
	Header http.Header

	// InitHeaders are sent in connection_init when a handshake is issued
	// without explicit headers.
	InitHeaders map[string]string

	// IDGenerator produces operation ids. Defaults to 6 alphanumeric characters.
	IDGenerator idgen.Generator

	// IDSize sets the length of the default generator's ids.
	// Ignored when IDGenerator is set.
	IDSize int

	// EventHandler handles data frames of subscriptions started without a callback.
	// If nil, frames are logged at info level.
	EventHandler EventHandler

	// HandshakeOnce skips the per-operation handshake once the session is
	// initialized, unless the operation carries its own headers.
	HandshakeOnce bool

	// HandshakeTimeout bounds the wait for the server's answer to connection_init.
	HandshakeTimeout time.Duration

	// StopTimeout bounds the wait for the server's answer to stop.
	StopTimeout time.Duration

	// WriteTimeout bounds a single transport write.
	WriteTimeout time.Duration

	// DialTimeout bounds the WebSocket opening handshake.
	DialTimeout time.Duration

	// ReadLimit is the maximum size in bytes of an inbound message. Zero means no limit.
	ReadLimit int64

	// DialerModifier customizes the WebSocket dialer before connecting.
	DialerModifier DialerModifier

	// MetricsRegisterer enables Prometheus metrics when set.
	MetricsRegisterer prometheus.Registerer

	// MetricsNamespace prefixes metric names. Defaults to "gqlws".
	MetricsNamespace string

	// TracerProvider creates spans around operations.
	// If nil, the global OpenTelemetry provider is used.
	TracerProvider trace.TracerProvider
}

// IDs returns the configured identifier generator.
func (o *Options) IDs() idgen.Generator {
	if o.IDGenerator != nil {
		return o.IDGenerator
	}

	if o.IDSize > 0 {
		return idgen.Alphanumeric{Size: o.IDSize}
	}

	return idgen.Default()
}

// HandshakeTimeoutOrDefault returns HandshakeTimeout, or the default when unset.
func (o *Options) HandshakeTimeoutOrDefault() time.Duration {
	return orDefault(o.HandshakeTimeout, DefaultHandshakeTimeout)
}

// StopTimeoutOrDefault returns StopTimeout, or the default when unset.
func (o *Options) StopTimeoutOrDefault() time.Duration {
	return orDefault(o.StopTimeout, DefaultStopTimeout)
}

// WriteTimeoutOrDefault returns WriteTimeout, or the default when unset.
func (o *Options) WriteTimeoutOrDefault() time.Duration {
	return orDefault(o.WriteTimeout, DefaultWriteTimeout)
}

// DialTimeoutOrDefault returns DialTimeout, or the default when unset.
func (o *Options) DialTimeoutOrDefault() time.Duration {
	return orDefault(o.DialTimeout, DefaultDialTimeout)
}

// MetricsNamespaceOrDefault returns MetricsNamespace, or the default when unset.
func (o *Options) MetricsNamespaceOrDefault() string {
	if o.MetricsNamespace == "" {
		return DefaultMetricsNamespace
	}

	return o.MetricsNamespace
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}

	return d
}
