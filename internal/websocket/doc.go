// Package websocket provides the WebSocket transport for graphql-ws sessions.
//
// This package implements the Transport interface on top of gorilla/websocket.
// It dials the server requesting the graphql-ws subprotocol, rejects servers that
// do not accept it, and serializes writes so that whole frames are never interleaved.
package websocket
