package gqlws

import (
	"context"
	"fmt"
)

// WithClient manages client lifecycle with automatic cleanup.
//
// This helper creates a client, starts it against url with the provided options,
// executes the callback function, and ensures proper cleanup via Close() when done.
//
// The callback receives a connected Client that is ready for use.
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := gqlws.WithClient(ctx, "ws://localhost:4000/graphql", func(c gqlws.Client) error {
//	    result, err := c.Query(ctx, `query { ok }`, nil, nil)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(string(result.Payload))
//	    return nil
//	},
//	    gqlws.WithLogger(log),
//	)
func WithClient(ctx context.Context, url string, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient()
	if err := client.Start(ctx, url, opts...); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close client", "error", closeErr)
		}
	}()

	return fn(client)
}
