package gqlws

import (
	"context"

	"github.com/wagiedev/graphql-ws-go/internal/config"
)

// WithEndHandler returns a copy of ctx carrying fn. Subscriptions started with
// the returned context report to fn whether the server completed them, failed
// them with an error frame, or the connection went away.
func WithEndHandler(ctx context.Context, fn EndHandler) context.Context {
	return config.WithEndHandler(ctx, fn)
}
