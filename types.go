package gqlws

import (
	"github.com/wagiedev/graphql-ws-go/internal/config"
	"github.com/wagiedev/graphql-ws-go/internal/frame"
	"github.com/wagiedev/graphql-ws-go/internal/idgen"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures the behavior of the client.
type Options = config.Options

// EventHandler receives the data frames of a subscription.
//
// It runs on a goroutine owned by the subscription. The context is cancelled
// when the subscription stops, and it may be passed to StopSubscribe from
// inside the handler.
type EventHandler = config.EventHandler

// EndHandler learns how a subscription ended when it was not stopped with
// StopSubscribe. Attach it with WithEndHandler on the context passed to
// Client.Subscribe.
type EndHandler = config.EndHandler

// DialerModifier customizes the WebSocket dialer before connecting.
type DialerModifier = config.DialerModifier

// ===== Frames =====

// Subprotocol is the WebSocket subprotocol requested when connecting.
const Subprotocol = frame.Subprotocol

// Frame is one protocol message.
type Frame = frame.Frame

// FrameType is the type tag of a frame.
type FrameType = frame.Type

const (
	// FrameTypeConnectionInit is sent by the client to initialize the session.
	FrameTypeConnectionInit = frame.TypeConnectionInit
	// FrameTypeConnectionAck is the server's positive answer to connection_init.
	FrameTypeConnectionAck = frame.TypeConnectionAck
	// FrameTypeConnectionError is the server's negative answer to connection_init.
	FrameTypeConnectionError = frame.TypeConnectionError
	// FrameTypeConnectionTerminate is sent by the client before closing.
	FrameTypeConnectionTerminate = frame.TypeConnectionTerminate
	// FrameTypeStart starts an operation.
	FrameTypeStart = frame.TypeStart
	// FrameTypeStop asks the server to end an operation.
	FrameTypeStop = frame.TypeStop
	// FrameTypeData carries an operation result.
	FrameTypeData = frame.TypeData
	// FrameTypeError ends an operation with an error.
	FrameTypeError = frame.TypeError
	// FrameTypeComplete ends an operation normally.
	FrameTypeComplete = frame.TypeComplete
	// FrameTypeKeepAlive is a server keepalive.
	FrameTypeKeepAlive = frame.TypeKeepAlive
)

// OperationPayload is the payload of a start frame.
type OperationPayload = frame.OperationPayload

// Result is the GraphQL response carried by a data frame.
type Result = frame.Result

// GraphQLError is one entry of a GraphQL "errors" list.
type GraphQLError = frame.GraphQLError

// Location points into the GraphQL document.
type Location = frame.Location

// ===== Identifiers =====

// IDGenerator produces operation identifiers.
type IDGenerator = idgen.Generator

// IDGeneratorFunc adapts a function to the IDGenerator interface.
type IDGeneratorFunc = idgen.GeneratorFunc

// AlphanumericIDs draws identifiers of Size symbols from [A-Za-z0-9].
// This is the default generator, with Size 6.
type AlphanumericIDs = idgen.Alphanumeric

// ULIDIDs produces 26-character ULIDs.
type ULIDIDs = idgen.ULID
