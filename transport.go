package gqlws

import "github.com/wagiedev/graphql-ws-go/internal/config"

// Transport defines the ordered message stream a client runs over.
// Implement this to provide custom transports for testing, mocking,
// or alternative stream implementations.
//
// The default implementation dials a WebSocket connection requesting the
// graphql-ws subprotocol. Custom transports can be injected via WithTransport.
type Transport = config.Transport
