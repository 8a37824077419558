// Package client implements the graphql-ws Client.
//
// The client package owns one connection to a graphql-ws server and exposes the
// operations of the protocol on it:
//   - Handshake (connection_init / connection_ack)
//   - Query: one request, the first frame back
//   - Subscribe / StopSubscribe: a stream of data frames delivered to a callback
//
// The Client uses the protocol package for framing and demultiplexing, so any
// number of queries and subscriptions can run concurrently on one client. It
// wraps every operation in an OpenTelemetry span.
package client
