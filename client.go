package gqlws

import (
	"context"
)

// Client is a graphql-ws connection that runs queries and subscriptions.
//
// All operations share one WebSocket connection. Incoming frames are read by a
// single goroutine and routed to the operation they belong to, so any number of
// queries and subscriptions may run concurrently.
//
// Lifecycle: Clients are single-use. After Close(), create a new client with NewClient().
//
// Example usage:
//
//	client := NewClient()
//	defer client.Close()
//
//	err := client.Start(ctx, "wss://example.com/graphql",
//	    WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Query(ctx, `query { viewer { login } }`, nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	id, err := client.Subscribe(ctx, `subscription { ticks }`, nil, nil,
//	    func(ctx context.Context, id string, f *Frame) {
//	        // Handle data frame...
//	    })
type Client interface {
	// Start connects to the graphql-ws server at url.
	// Must be called before any other methods. No handshake is performed yet.
	// Returns ConnectionError if the connection fails or the server does not
	// accept the graphql-ws subprotocol.
	Start(ctx context.Context, url string, opts ...Option) error

	// Handshake sends connection_init with headers and waits for connection_ack.
	// nil headers fall back to the headers set by WithInitHeaders.
	// Returns HandshakeError if the server answers connection_error.
	Handshake(ctx context.Context, headers map[string]string) error

	// Query runs a one-shot operation and returns the first frame the server
	// sends for it. An error or complete frame is returned with a nil error,
	// so check the frame type. The operation is stopped before Query returns.
	Query(ctx context.Context, query string, variables map[string]any, headers map[string]string) (*Frame, error)

	// Subscribe starts a subscription and returns its id once the start frame
	// is sent. Data frames are passed to onEvent, in order, from a goroutine
	// owned by the subscription. A nil onEvent uses the handler set by
	// WithEventHandler, or logs the frames.
	Subscribe(
		ctx context.Context,
		query string,
		variables map[string]any,
		headers map[string]string,
		onEvent EventHandler,
	) (string, error)

	// StopSubscribe stops subscription id and returns the server's answer to
	// the stop frame. No onEvent call for id happens after it returns.
	// Stopping an unknown or already ended subscription returns nil, nil.
	StopSubscribe(ctx context.Context, id string) (*Frame, error)

	// SubscriptionDone returns a channel that is closed once subscription id
	// no longer delivers events.
	SubscriptionDone(id string) <-chan struct{}

	// Initialized reports whether the server has acknowledged a handshake.
	Initialized() bool

	// FatalError returns the error that ended the connection, if any.
	FatalError() error

	// Close stops all subscriptions, terminates the session and closes the
	// connection. It must not be called from an event handler.
	Close() error
}

// NewClient creates a new graphql-ws client.
//
// The client is not connected after creation. Call Start() to connect.
//
// Example:
//
//	client := NewClient()
//	err := client.Start(ctx, "ws://localhost:4000/graphql",
//	    WithLogger(slog.Default()),
//	    WithHandshakeOnce(true),
//	)
func NewClient() Client {
	return newClientImpl()
}
