package gqlws

import (
	"context"
	"fmt"
)

// Query runs a single operation on a fresh connection to url and returns the
// first frame the server sends for it.
//
// The connection is opened, initialized with the headers set by WithInitHeaders,
// used for the one operation and closed again. As with Client.Query, an error or
// complete frame is returned with a nil error.
//
// By default, logging is disabled. Use WithLogger to enable logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	result, err := Query(ctx, "ws://localhost:4000/graphql", `query { ok }`, nil,
//	    WithLogger(logger),
//	)
func Query(
	ctx context.Context,
	url string,
	query string,
	variables map[string]any,
	opts ...Option,
) (*Frame, error) {
	var result *Frame

	err := WithClient(ctx, url, func(c Client) error {
		f, err := c.Query(ctx, query, variables, nil)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}

		result = f

		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	return result, nil
}
