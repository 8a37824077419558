package gqlws

import (
	"context"

	"github.com/wagiedev/graphql-ws-go/internal/client"
	"github.com/wagiedev/graphql-ws-go/internal/config"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

// Start connects to the graphql-ws server at url.
func (c *clientWrapper) Start(ctx context.Context, url string, opts ...Option) error {
	return c.impl.Start(ctx, url, applyOptionsToConfig(opts))
}

// Handshake sends connection_init and waits for the server's answer.
func (c *clientWrapper) Handshake(ctx context.Context, headers map[string]string) error {
	return c.impl.Handshake(ctx, headers)
}

// Query runs a one-shot operation.
func (c *clientWrapper) Query(
	ctx context.Context,
	query string,
	variables map[string]any,
	headers map[string]string,
) (*Frame, error) {
	return c.impl.Query(ctx, query, variables, headers)
}

// Subscribe starts a subscription.
func (c *clientWrapper) Subscribe(
	ctx context.Context,
	query string,
	variables map[string]any,
	headers map[string]string,
	onEvent EventHandler,
) (string, error) {
	return c.impl.Subscribe(ctx, query, variables, headers, onEvent)
}

// StopSubscribe stops a subscription.
func (c *clientWrapper) StopSubscribe(ctx context.Context, id string) (*Frame, error) {
	return c.impl.StopSubscribe(ctx, id)
}

// SubscriptionDone returns a channel closed when the subscription ends.
func (c *clientWrapper) SubscriptionDone(id string) <-chan struct{} {
	return c.impl.SubscriptionDone(id)
}

// Initialized reports whether a handshake has been acknowledged.
func (c *clientWrapper) Initialized() bool {
	return c.impl.Initialized()
}

// FatalError returns the error that ended the connection, if any.
func (c *clientWrapper) FatalError() error {
	return c.impl.FatalError()
}

// Close terminates the session and cleans up resources.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}

// applyOptionsToConfig converts public options to internal config.Options.
func applyOptionsToConfig(opts []Option) *config.Options {
	// Options is a type alias to config.Options, so no conversion is needed
	return applyOptions(opts)
}
