package gqlws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Option configures Options using the functional options pattern.
// This is the option type for configuring clients and one-shot queries.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTransport injects a custom transport implementation.
// The transport must implement the Transport interface.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// ===== Connection =====

// WithHeader adds a header to the WebSocket upgrade request.
// Repeated calls accumulate values.
func WithHeader(key, value string) Option {
	return func(o *Options) {
		if o.Header == nil {
			o.Header = http.Header{}
		}

		o.Header.Add(key, value)
	}
}

// WithDialTimeout bounds the WebSocket opening handshake.
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.DialTimeout = timeout
	}
}

// WithWriteTimeout bounds a single frame write.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = timeout
	}
}

// WithReadLimit sets the maximum size in bytes of an inbound message.
func WithReadLimit(limit int64) Option {
	return func(o *Options) {
		o.ReadLimit = limit
	}
}

// WithDialerModifier customizes the WebSocket dialer, for example to set TLS
// configuration or a proxy.
func WithDialerModifier(modifier DialerModifier) Option {
	return func(o *Options) {
		o.DialerModifier = modifier
	}
}

// ===== Protocol =====

// WithInitHeaders sets the headers sent in connection_init when an operation
// or Handshake call carries none.
func WithInitHeaders(headers map[string]string) Option {
	return func(o *Options) {
		o.InitHeaders = headers
	}
}

// WithHandshakeOnce skips the handshake before each operation once the server
// has acknowledged one, unless the operation carries its own headers.
func WithHandshakeOnce(once bool) Option {
	return func(o *Options) {
		o.HandshakeOnce = once
	}
}

// WithHandshakeTimeout bounds the wait for the server's answer to connection_init.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.HandshakeTimeout = timeout
	}
}

// WithStopTimeout bounds the wait for the server's answer to stop.
// When it elapses StopSubscribe returns a nil frame and no error.
func WithStopTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.StopTimeout = timeout
	}
}

// WithIDGenerator sets the generator for operation identifiers.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Options) {
		o.IDGenerator = gen
	}
}

// WithIDSize sets the length of the default alphanumeric identifiers.
// Ignored when WithIDGenerator is used.
func WithIDSize(size int) Option {
	return func(o *Options) {
		o.IDSize = size
	}
}

// WithEventHandler sets the handler for subscriptions started without one.
// If not set, data frames are logged at info level.
func WithEventHandler(handler EventHandler) Option {
	return func(o *Options) {
		o.EventHandler = handler
	}
}

// ===== Observability =====

// WithMetricsRegisterer enables Prometheus metrics registered with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.MetricsRegisterer = reg
	}
}

// WithMetricsNamespace sets the prefix of metric names. Defaults to "gqlws".
func WithMetricsNamespace(namespace string) Option {
	return func(o *Options) {
		o.MetricsNamespace = namespace
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for operation spans.
// If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}
