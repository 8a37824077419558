// Package frame implements the graphql-ws wire codec.
//
// A Frame is one JSON text message exchanged with the server:
//
//	{"type": "start", "id": "aB3xZ9", "payload": {"query": "...", "variables": {...}}}
//
// Connection-level frames (connection_init, connection_ack, connection_error,
// connection_terminate, ka) carry no id. Every other frame is bound to one operation
// by its id. Payloads are kept as raw JSON; helpers decode the common shapes.
//
// See https://github.com/apollographql/subscriptions-transport-ws/blob/master/PROTOCOL.md
package frame
