package gqlws

import "github.com/wagiedev/graphql-ws-go/internal/errors"

// Re-export error types from internal package

// ConnectionError indicates the connection failed or was closed.
type ConnectionError = errors.ConnectionError

// HandshakeError indicates the server answered connection_init with connection_error.
type HandshakeError = errors.HandshakeError

// FrameError indicates an inbound message could not be decoded into a frame.
type FrameError = errors.FrameError

// GraphQLWSError is the base interface for all client errors.
type GraphQLWSError = errors.GraphQLWSError

// Re-export sentinel errors from internal package.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.ErrClientAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrConnectionClosed indicates the connection has been closed.
	ErrConnectionClosed = errors.ErrConnectionClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrSubprotocolRejected indicates the server did not accept graphql-ws.
	ErrSubprotocolRejected = errors.ErrSubprotocolRejected

	// ErrDispatcherStopped indicates the client shut down while an operation was
	// still open.
	ErrDispatcherStopped = errors.ErrDispatcherStopped

	// ErrHandshakeTimeout indicates the server did not answer connection_init in time.
	ErrHandshakeTimeout = errors.ErrHandshakeTimeout
)
