package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/graphql-ws-go/internal/config"
	"github.com/wagiedev/graphql-ws-go/internal/errors"
	"github.com/wagiedev/graphql-ws-go/internal/frame"
	"github.com/wagiedev/graphql-ws-go/internal/metrics"
	"github.com/wagiedev/graphql-ws-go/internal/protocol"
	"github.com/wagiedev/graphql-ws-go/internal/websocket"
)

// tracerName names the tracer used for operation spans.
const tracerName = "github.com/wagiedev/graphql-ws-go"

// Client is a graphql-ws client bound to one connection.
type Client struct {
	log        *slog.Logger
	url        string
	transport  config.Transport
	session    *protocol.Session
	dispatcher *protocol.Dispatcher
	options    *config.Options
	tracer     trace.Tracer

	// Fatal error storage
	errMu    sync.RWMutex
	fatalErr error

	// Errgroup for goroutine management
	eg *errgroup.Group

	// Lifecycle management
	mu        sync.Mutex
	done      chan struct{}
	connected bool
	closed    bool      // Tracks if Close() has been called
	closeOnce sync.Once // Ensures Close() only runs once
}

// New creates a new client.
//
// The client is not connected after creation. Call Start() to connect.
func New() *Client {
	return &Client{
		done: make(chan struct{}),
	}
}

// setFatalError stores the first fatal error encountered.
func (c *Client) setFatalError(err error) {
	if err == nil {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}
}

// FatalError returns the error that ended the connection, if any.
//
// The dispatcher is consulted when the watch loop has not recorded the failure
// yet, so a subscription that ended with the connection already sees it.
func (c *Client) FatalError() error {
	c.errMu.RLock()
	err := c.fatalErr
	c.errMu.RUnlock()

	if err != nil {
		return err
	}

	c.mu.Lock()
	dispatcher := c.dispatcher
	c.mu.Unlock()

	if dispatcher == nil {
		return nil
	}

	return dispatcher.FatalError()
}

// isConnected returns true if the client is connected.
// This method is safe to call from any goroutine.
func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// checkConnected returns the error explaining why no operation can run, if any.
func (c *Client) checkConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if !c.connected {
		return errors.ErrClientNotConnected
	}

	return nil
}

// initializeCore opens the session and creates the dispatcher.
// Caller must hold c.mu lock. Lock is held on return.
func (c *Client) initializeCore(ctx context.Context, url string, options *config.Options) error {
	// Default to empty options if nil
	if options == nil {
		options = &config.Options{}
	}

	// Extract logger from options, defaulting to a no-op logger
	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "client")
	c.url = url
	c.options = options

	tp := options.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	c.tracer = tp.Tracer(tracerName)

	m := metrics.New(options.MetricsRegisterer, options.MetricsNamespaceOrDefault())

	// Create or use injected transport
	var transport config.Transport

	if options.Transport != nil {
		transport = options.Transport

		c.log.Debug("Using injected custom transport")
	} else {
		transport = websocket.NewTransport(log, url, options)
	}

	session, err := protocol.OpenSession(ctx, log, transport, options.IDs(), m)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	c.transport = transport
	c.session = session
	c.dispatcher = protocol.NewDispatcher(log, session, options, m)

	return nil
}

// Start connects to the graphql-ws server at url.
//
// No handshake is performed here; Query and Subscribe perform one before each
// operation, or call Handshake explicitly.
//
// Returns ConnectionError if the connection cannot be established or the
// server does not accept the graphql-ws subprotocol.
func (c *Client) Start(ctx context.Context, url string, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.connected {
		return errors.ErrClientAlreadyConnected
	}

	if err := c.initializeCore(ctx, url, options); err != nil {
		return err
	}

	// The errgroup outlives the caller's ctx, which may only bound the dial.
	// The client stays connected until Close() or a transport failure.
	var egCtx context.Context

	c.eg, egCtx = errgroup.WithContext(context.Background())

	c.dispatcher.Start(egCtx)

	c.eg.Go(func() error {
		return c.watch(egCtx)
	})

	c.connected = true
	c.log.Info("Client started successfully", "url", url)

	return nil
}

// watch records the dispatcher's fatal error when the connection fails.
// The failure is not returned, so the group context stays alive until Close.
func (c *Client) watch(ctx context.Context) error {
	defer c.log.Debug("Watch loop stopped")

	select {
	case <-c.dispatcher.Done():
		if err := c.dispatcher.FatalError(); err != nil {
			c.log.Error("Connection lost", "error", err)
			c.setFatalError(err)

			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
		}

		return nil

	case <-c.done:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handshake sends connection_init and waits for the server's acknowledgement.
//
// nil headers fall back to the configured init headers. Returns HandshakeError
// if the server answers connection_error.
func (c *Client) Handshake(ctx context.Context, headers map[string]string) error {
	if err := c.operable(); err != nil {
		return err
	}

	return c.dispatcher.Handshake(ctx, c.initHeaders(headers))
}

// ensureHandshake runs the handshake that precedes every operation.
func (c *Client) ensureHandshake(ctx context.Context, headers map[string]string) error {
	if c.options.HandshakeOnce && len(headers) == 0 && c.session.Initialized() {
		return nil
	}

	if err := c.dispatcher.Handshake(ctx, c.initHeaders(headers)); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	return nil
}

func (c *Client) initHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return c.options.InitHeaders
	}

	return headers
}

// operable reports why no operation can run, preferring the connection's fatal
// error over the generic not-connected error.
func (c *Client) operable() error {
	if err := c.checkConnected(); err != nil {
		if fatal := c.FatalError(); fatal != nil && !c.isClosed() {
			return fatal
		}

		return err
	}

	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Query runs a one-shot operation and returns the first frame the server sends
// for it.
//
// The frame is usually data. An error or complete frame is also returned with a
// nil error, so callers must check Type. The operation is stopped on the server
// before Query returns.
func (c *Client) Query(
	ctx context.Context,
	query string,
	variables map[string]any,
	headers map[string]string,
) (*frame.Frame, error) {
	if err := c.operable(); err != nil {
		return nil, err
	}

	ctx, span := c.startSpan(ctx, "graphql.query", attribute.String("graphql.operation.type", "query"))
	defer span.End()

	if err := c.ensureHandshake(ctx, headers); err != nil {
		recordError(span, err)

		return nil, err
	}

	result, err := c.dispatcher.Query(ctx, &frame.OperationPayload{
		Query:     query,
		Variables: variables,
		Headers:   headers,
	})
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String("graphql.operation.id", result.ID),
		attribute.String("graphql.frame.type", string(result.Type)),
	)

	if result.Type == frame.TypeError {
		span.SetStatus(codes.Error, result.ErrorMessage())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return result, nil
}

// Subscribe starts a subscription and returns its id once the start frame is sent.
//
// Data frames are delivered to onEvent from a dedicated goroutine, in order,
// until the server ends the subscription or StopSubscribe is called. When
// onEvent is nil the configured event handler is used, which logs by default.
func (c *Client) Subscribe(
	ctx context.Context,
	query string,
	variables map[string]any,
	headers map[string]string,
	onEvent config.EventHandler,
) (string, error) {
	if err := c.operable(); err != nil {
		return "", err
	}

	ctx, span := c.startSpan(ctx, "graphql.subscribe", attribute.String("graphql.operation.type", "subscription"))
	defer span.End()

	if err := c.ensureHandshake(ctx, headers); err != nil {
		recordError(span, err)

		return "", err
	}

	id, err := c.dispatcher.Subscribe(ctx, &frame.OperationPayload{
		Query:     query,
		Variables: variables,
		Headers:   headers,
	}, onEvent)
	if err != nil {
		recordError(span, err)

		return "", err
	}

	span.SetAttributes(attribute.String("graphql.operation.id", id))
	span.SetStatus(codes.Ok, "")

	return id, nil
}

// StopSubscribe stops subscription id and returns the server's acknowledgement.
//
// No event handler call for id happens after it returns. It is safe to call from
// the subscription's own handler with the handler's context, after the
// subscription ended on its own, and more than once; the acknowledgement is
// nil in those later cases and when the server does not answer in time.
func (c *Client) StopSubscribe(ctx context.Context, id string) (*frame.Frame, error) {
	c.mu.Lock()
	dispatcher, closed := c.dispatcher, c.closed
	c.mu.Unlock()

	if closed {
		return nil, errors.ErrClientClosed
	}

	if dispatcher == nil {
		return nil, errors.ErrClientNotConnected
	}

	ctx, span := c.startSpan(ctx, "graphql.stop", attribute.String("graphql.operation.id", id))
	defer span.End()

	ack, err := dispatcher.StopSubscribe(ctx, id)
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	span.SetStatus(codes.Ok, "")

	return ack, nil
}

// SubscriptionDone returns a channel closed once subscription id has stopped
// delivering events.
func (c *Client) SubscriptionDone(id string) <-chan struct{} {
	c.mu.Lock()
	dispatcher := c.dispatcher
	c.mu.Unlock()

	if dispatcher == nil {
		closed := make(chan struct{})
		close(closed)

		return closed
	}

	return dispatcher.SubscriptionDone(id)
}

// Initialized reports whether the server has acknowledged a handshake.
func (c *Client) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session != nil && c.session.Initialized()
}

func (c *Client) startSpan(
	ctx context.Context,
	name string,
	attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("server.address", c.url))

	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Close stops every subscription, closes the connection and releases resources.
//
// After Close(), the client cannot be reused - create a new client with New().
// This method is safe to call multiple times. It must not be called from an
// event handler.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		started := c.dispatcher != nil
		c.connected = false
		c.mu.Unlock()

		if !started {
			return
		}

		c.log.Info("Closing client")

		// Signal shutdown
		close(c.done)

		c.dispatcher.Stop()

		// Close session and transport and capture error
		closeErr = c.session.Close()

		// Wait for errgroup goroutines to complete
		if c.eg != nil {
			if err := c.eg.Wait(); err != nil && closeErr == nil {
				closeErr = err
			}
		}

		c.log.Info("Client closed")
	})

	return closeErr
}
