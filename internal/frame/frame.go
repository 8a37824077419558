package frame

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wagiedev/graphql-ws-go/internal/errors"
)

// Subprotocol is the WebSocket subprotocol token identifying the protocol.
const Subprotocol = "graphql-ws"

// Type is the frame type tag.
type Type string

const (
	// TypeConnectionInit is sent by the client to initialize the session.
	TypeConnectionInit Type = "connection_init"
	// TypeConnectionAck is the server's positive answer to connection_init.
	TypeConnectionAck Type = "connection_ack"
	// TypeConnectionError is the server's negative answer to connection_init.
	TypeConnectionError Type = "connection_error"
	// TypeConnectionTerminate is sent by the client before closing the connection.
	TypeConnectionTerminate Type = "connection_terminate"
	// TypeStart starts an operation.
	TypeStart Type = "start"
	// TypeStop asks the server to end an operation.
	TypeStop Type = "stop"
	// TypeData carries an operation result.
	TypeData Type = "data"
	// TypeError ends an operation with an error.
	TypeError Type = "error"
	// TypeComplete ends an operation normally.
	TypeComplete Type = "complete"
	// TypeKeepAlive is a server keepalive with no operation semantics.
	TypeKeepAlive Type = "ka"
)

// Valid reports whether t is a recognized frame type.
func (t Type) Valid() bool {
	switch t {
	case TypeConnectionInit, TypeConnectionAck, TypeConnectionError, TypeConnectionTerminate,
		TypeStart, TypeStop, TypeData, TypeError, TypeComplete, TypeKeepAlive:
		return true
	}

	return false
}

// RequiresID reports whether frames of type t must carry an operation id.
func (t Type) RequiresID() bool {
	switch t {
	case TypeStart, TypeStop, TypeData, TypeError, TypeComplete:
		return true
	}

	return false
}

// Frame is the wire unit of the protocol.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OperationPayload is the payload of a start frame.
type OperationPayload struct {
	Query         string            `json:"query"`
	Variables     map[string]any    `json:"variables"`
	Headers       map[string]string `json:"headers"`
	OperationName string            `json:"operationName,omitempty"`
}

// initPayload is the payload of a connection_init frame.
type initPayload struct {
	Headers map[string]string `json:"headers"`
}

// NewConnectionInit builds a connection_init frame carrying headers.
func NewConnectionInit(headers map[string]string) *Frame {
	return &Frame{
		Type:    TypeConnectionInit,
		Payload: mustMarshal(initPayload{Headers: headers}),
	}
}

// NewConnectionTerminate builds a connection_terminate frame.
func NewConnectionTerminate() *Frame {
	return &Frame{Type: TypeConnectionTerminate}
}

// NewStart builds a start frame for the operation id.
func NewStart(id string, payload *OperationPayload) (*Frame, error) {
	if payload == nil {
		payload = &OperationPayload{}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal start payload: %w", err)
	}

	return &Frame{ID: id, Type: TypeStart, Payload: raw}, nil
}

// NewStop builds a stop frame for the operation id.
func NewStop(id string) *Frame {
	return &Frame{ID: id, Type: TypeStop}
}

// envelope is the part of a frame encoded by encoding/json. The payload is
// appended as is.
type envelope struct {
	ID   string `json:"id,omitempty"`
	Type Type   `json:"type"`
}

// Encode serializes f into a wire message.
//
// The payload bytes are written verbatim, neither compacted nor HTML-escaped,
// so Decode(Encode(f)) yields f again. A payload that is not valid JSON fails.
func Encode(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("encode frame: nil frame")
	}

	if len(f.Payload) > 0 && !json.Valid(f.Payload) {
		return nil, fmt.Errorf("encode %s frame: invalid payload JSON", f.Type)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(envelope{ID: f.ID, Type: f.Type}); err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}

	// Encoder terminates with "}\n"; reopen the object for the payload.
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	if len(f.Payload) == 0 {
		return data, nil
	}

	data = append(data[:len(data)-1], `,"payload":`...)
	data = append(data, f.Payload...)
	data = append(data, '}')

	return data, nil
}

// Decode parses a wire message into a Frame.
//
// It returns a *errors.FrameError when the message is not a JSON object, has no
// recognizable type tag, or is an operation frame without an id.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &errors.FrameError{Raw: string(data), Err: err}
	}

	switch {
	case f.Type == "":
		return nil, &errors.FrameError{Raw: string(data), ID: f.ID, Err: errors.ErrMissingFrameType}
	case !f.Type.Valid():
		return nil, &errors.FrameError{
			Raw: string(data),
			ID:  f.ID,
			Err: fmt.Errorf("%w: %q", errors.ErrUnknownFrameType, f.Type),
		}
	case f.Type.RequiresID() && f.ID == "":
		return nil, &errors.FrameError{
			Raw: string(data),
			Err: fmt.Errorf("%w: %s frame", errors.ErrMissingOperationID, f.Type),
		}
	}

	return &f, nil
}

// IsTerminal reports whether f ends its operation (error or complete).
func (f *Frame) IsTerminal() bool {
	return f.Type == TypeError || f.Type == TypeComplete
}

// IsConnectionLevel reports whether f belongs to the connection rather than an operation.
func (f *Frame) IsConnectionLevel() bool {
	switch f.Type {
	case TypeConnectionInit, TypeConnectionAck, TypeConnectionError,
		TypeConnectionTerminate, TypeKeepAlive:
		return true
	}

	return false
}

// DecodePayload unmarshals the payload into v. An absent payload leaves v untouched.
func (f *Frame) DecodePayload(v any) error {
	if len(f.Payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Type, err)
	}

	return nil
}

// String returns a compact description for logs.
func (f *Frame) String() string {
	if f.ID == "" {
		return string(f.Type)
	}

	return fmt.Sprintf("%s[%s]", f.Type, f.ID)
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("frame: marshal %T: %v", v, err))
	}

	return raw
}
