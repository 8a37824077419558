// Package protocol implements the graphql-ws session and operation dispatcher.
//
// A Session owns the transport: it encodes and sends frames and decodes inbound
// messages. A Dispatcher sits on top of a Session and is its only reader. It
// routes every inbound frame to the operation that owns its id, so queries and
// subscriptions can share one connection without receiving each other's frames.
//
// The Dispatcher handles:
//   - The connection_init / connection_ack handshake
//   - Queries: start, take the first result, stop
//   - Subscriptions: start, then deliver data frames to a callback from a
//     dedicated task until the server ends the operation or the caller stops it
//   - Failing every open operation when the transport fails
//
// Example usage:
//
//	session, err := protocol.OpenSession(ctx, log, transport, idgen.Default(), nil)
//	if err != nil {
//		return err
//	}
//
//	dispatcher := protocol.NewDispatcher(log, session, options, nil)
//	dispatcher.Start(ctx)
//	defer dispatcher.Stop()
//
//	if err := dispatcher.Handshake(ctx, nil); err != nil {
//		return err
//	}
//
//	result, err := dispatcher.Query(ctx, &frame.OperationPayload{Query: "{ hello }"})
package protocol
