package errors

import (
	"errors"
	"fmt"
)

// GraphQLWSError is the base interface for all client errors.
type GraphQLWSError interface {
	error
	IsGraphQLWSError() bool
}

// Compile-time verification that all error types implement GraphQLWSError.
var (
	_ GraphQLWSError = (*ConnectionError)(nil)
	_ GraphQLWSError = (*HandshakeError)(nil)
	_ GraphQLWSError = (*FrameError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrConnectionClosed indicates the session's transport has been closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.New("client already connected")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with NewClient()")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrSubprotocolRejected indicates the server did not accept the graphql-ws subprotocol.
	ErrSubprotocolRejected = errors.New("subprotocol rejected by server")

	// ErrHandshakeTimeout indicates the server did not answer connection_init in time.
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrDispatcherStopped indicates the operation dispatcher has stopped.
	ErrDispatcherStopped = errors.New("operation dispatcher stopped")

	// ErrUnknownFrameType indicates an inbound frame carried an unrecognized type tag.
	ErrUnknownFrameType = errors.New("unknown frame type")

	// ErrMissingFrameType indicates an inbound frame had no type tag.
	ErrMissingFrameType = errors.New("missing frame type")

	// ErrMissingOperationID indicates an operation frame arrived without an id.
	ErrMissingOperationID = errors.New("missing operation id")
)

// ConnectionError indicates the transport could not be established, was closed
// mid-operation, or the server rejected the subprotocol. It is fatal to the session.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("connection error: %v", e.Err)
	}

	return fmt.Sprintf("connection error (%s): %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsGraphQLWSError implements GraphQLWSError.
func (e *ConnectionError) IsGraphQLWSError() bool { return true }

// HandshakeError indicates the server answered connection_init with connection_error.
type HandshakeError struct {
	// Reason is the server-supplied explanation, if one could be extracted.
	Reason string

	// Payload is the raw connection_error payload.
	Payload []byte
}

func (e *HandshakeError) Error() string {
	if e.Reason == "" {
		return "handshake rejected by server"
	}

	return fmt.Sprintf("handshake rejected by server: %s", e.Reason)
}

// IsGraphQLWSError implements GraphQLWSError.
func (e *HandshakeError) IsGraphQLWSError() bool { return true }

// FrameError indicates an inbound message could not be decoded into a frame.
// It fails the single receive that encountered it and does not close the session.
type FrameError struct {
	// Raw is the message as received.
	Raw string

	// ID is the operation id, when it could still be read from the message.
	ID string

	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsGraphQLWSError implements GraphQLWSError.
func (e *FrameError) IsGraphQLWSError() bool { return true }
