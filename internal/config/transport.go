// Package config provides configuration types for the graphql-ws client.
package config

import "context"

// Transport defines the interface for the ordered message stream under a session.
// Implement this to provide custom transports for testing, mocking,
// or alternative stream implementations.
//
// The default implementation is the WebSocket transport, which dials the server
// requesting the graphql-ws subprotocol. Custom transports can be injected via
// Options.Transport.
type Transport interface {
	// Start establishes the underlying connection.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving whole messages and errors.
	// Messages arrive in the order the server sent them.
	// Both channels are closed when reading completes or an error occurs.
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage sends one complete message.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the connection and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}
