// Package gqlws provides a Go client for the Apollo graphql-ws protocol.
//
// The client speaks the subscriptions-transport-ws message set over a single
// WebSocket connection negotiated with the "graphql-ws" subprotocol. It supports
// one-shot queries and long-lived subscriptions multiplexed on that connection.
//
// # Basic Usage
//
// For a single query, use the Query function. It connects, performs the
// connection_init handshake, runs the operation and closes the connection:
//
//	ctx := context.Background()
//	result, err := gqlws.Query(ctx, "wss://example.com/graphql",
//	    `query { viewer { login } }`, nil,
//	    gqlws.WithInitHeaders(map[string]string{"Authorization": "Bearer " + token}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if result.Type == gqlws.FrameTypeData {
//	    fmt.Println(string(result.Payload))
//	}
//
// # Subscriptions
//
// For subscriptions, use NewClient or the WithClient helper:
//
//	err := gqlws.WithClient(ctx, "wss://example.com/graphql", func(c gqlws.Client) error {
//	    for f, err := range gqlws.Stream(ctx, c, `subscription { ticks }`, nil, nil) {
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(string(f.Payload))
//	    }
//	    return nil
//	},
//	    gqlws.WithLogger(slog.Default()),
//	)
//
// Subscribe also accepts a callback, which runs on a goroutine owned by the
// subscription and receives every data frame in order:
//
//	id, err := client.Subscribe(ctx, `subscription { ticks }`, nil, nil,
//	    func(ctx context.Context, id string, f *gqlws.Frame) {
//	        fmt.Println(id, string(f.Payload))
//	    })
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ack, err := client.StopSubscribe(ctx, id)
//
// # Handshakes
//
// Every Query and Subscribe call sends connection_init and waits for
// connection_ack before starting the operation. Per-call headers are carried in
// that connection_init; without them the headers set by WithInitHeaders are used.
// WithHandshakeOnce skips the repeat handshake once the connection is initialized.
//
// # Error Handling
//
// The client provides typed errors for different failure scenarios:
//
//	result, err := client.Query(ctx, q, nil, nil)
//	if err != nil {
//	    if connErr, ok := errors.AsType[*gqlws.ConnectionError](err); ok {
//	        // The connection failed or was closed.
//	    }
//	    if hsErr, ok := errors.AsType[*gqlws.HandshakeError](err); ok {
//	        // The server answered connection_init with connection_error.
//	        fmt.Println(hsErr.Reason)
//	    }
//	}
//
// A server-side GraphQL failure is not a Go error: Query returns the error or
// complete frame as its result, so always check the frame type.
//
// # Observability
//
// Logging is disabled by default. WithLogger enables structured logging through
// log/slog. WithMetricsRegisterer exports Prometheus counters for frames,
// operations and handshakes, and WithTracerProvider sets the OpenTelemetry
// provider used for operation spans.
package gqlws
