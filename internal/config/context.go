package config

import (
	"context"

	"github.com/wagiedev/graphql-ws-go/internal/frame"
)

// EndHandler learns how a subscription ended on its own.
//
// end is the server's terminal frame (error or complete) when the server ended
// it; err is set when the connection failed, a malformed frame ended it, or the
// client shut down. It is not called for subscriptions ended by StopSubscribe.
// It runs on the subscription's goroutine before SubscriptionDone is closed and
// must not block.
type EndHandler func(id string, end *frame.Frame, err error)

type endHandlerKey struct{}

// WithEndHandler returns a copy of ctx carrying fn. A subscription started with
// that context reports its end to fn.
func WithEndHandler(ctx context.Context, fn EndHandler) context.Context {
	return context.WithValue(ctx, endHandlerKey{}, fn)
}

// EndHandlerFrom returns the EndHandler carried by ctx, or nil.
func EndHandlerFrom(ctx context.Context) EndHandler {
	fn, _ := ctx.Value(endHandlerKey{}).(EndHandler)

	return fn
}
