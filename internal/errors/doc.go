// Package errors defines error types for the graphql-ws client.
//
// This package provides structured error types for the failure scenarios of a
// graphql-ws session: an unreachable or closed transport, a rejected handshake and
// malformed inbound frames. All error types support error unwrapping and can be
// checked using errors.Is, errors.As, and errors.AsType.
//
// Protocol-level "error" and "complete" frames sent by the server are not Go
// errors; they are delivered to callers as frames.
package errors
