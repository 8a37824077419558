package frame

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the standard GraphQL response carried by a data frame.
type Result struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

// GraphQLError is one entry of a GraphQL "errors" list.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Location points into the GraphQL document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// HasErrors reports whether the result carries GraphQL errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Result decodes a data frame's payload.
func (f *Frame) Result() (*Result, error) {
	if f.Type != TypeData {
		return nil, fmt.Errorf("result: %s frame carries no result", f.Type)
	}

	var r Result
	if err := f.DecodePayload(&r); err != nil {
		return nil, err
	}

	return &r, nil
}

// ErrorMessage extracts a human-readable message from an error or
// connection_error payload. Servers send a string, an object with a "message"
// field, or a list of such objects; anything else is returned verbatim.
func (f *Frame) ErrorMessage() string {
	if len(f.Payload) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(f.Payload, &text); err == nil {
		return text
	}

	var single GraphQLError
	if err := json.Unmarshal(f.Payload, &single); err == nil && single.Message != "" {
		return single.Message
	}

	var list []GraphQLError
	if err := json.Unmarshal(f.Payload, &list); err == nil && len(list) > 0 {
		messages := make([]string, 0, len(list))
		for _, e := range list {
			messages = append(messages, e.Message)
		}

		return strings.Join(messages, "; ")
	}

	return string(f.Payload)
}
