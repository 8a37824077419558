package gqlws

import (
	"context"
	"iter"
)

// Stream starts a subscription on c and returns an iterator over its frames.
//
// Data frames are yielded as they arrive. When the server ends the subscription
// with an error frame, that frame is yielded last with a nil error, so callers
// can tell it apart from complete, which just ends the iteration. A connection
// failure or ctx cancellation is yielded as the final error. If the consumer
// stops early, the subscription is stopped before the iterator returns.
//
//	for f, err := range gqlws.Stream(ctx, client, `subscription { ticks }`, nil, nil) {
//	    if err != nil {
//	        return err
//	    }
//	    if f.Type == gqlws.FrameTypeError {
//	        return fmt.Errorf("subscription failed: %s", f.ErrorMessage())
//	    }
//	    fmt.Println(string(f.Payload))
//	}
func Stream(
	ctx context.Context,
	c Client,
	query string,
	variables map[string]any,
	headers map[string]string,
) iter.Seq2[*Frame, error] {
	return func(yield func(*Frame, error) bool) {
		type ending struct {
			frame *Frame
			err   error
		}

		frames := make(chan *Frame)
		ended := make(chan ending, 1)

		subCtx := WithEndHandler(ctx, func(_ string, end *Frame, err error) {
			ended <- ending{frame: end, err: err}
		})

		id, err := c.Subscribe(subCtx, query, variables, headers, func(hctx context.Context, _ string, f *Frame) {
			select {
			case frames <- f:
			case <-hctx.Done():
			}
		})
		if err != nil {
			yield(nil, err)

			return
		}

		defer func() {
			_, _ = c.StopSubscribe(context.WithoutCancel(ctx), id)
		}()

		done := c.SubscriptionDone(id)

		for {
			select {
			case f := <-frames:
				if !yield(f, nil) {
					return
				}

			case <-done:
				select {
				case e := <-ended:
					switch {
					case e.err != nil:
						yield(nil, e.err)
					case e.frame != nil && e.frame.Type == FrameTypeError:
						yield(e.frame, nil)
					}

				default:
					if err := c.FatalError(); err != nil {
						yield(nil, err)
					}
				}

				return

			case <-ctx.Done():
				yield(nil, ctx.Err())

				return
			}
		}
	}
}

// Subscribe runs a subscription on a fresh connection to url and returns an
// iterator over its data frames. The connection is closed when the iterator
// returns.
func Subscribe(
	ctx context.Context,
	url string,
	query string,
	variables map[string]any,
	opts ...Option,
) iter.Seq2[*Frame, error] {
	return func(yield func(*Frame, error) bool) {
		stopped := false

		err := WithClient(ctx, url, func(c Client) error {
			for f, err := range Stream(ctx, c, query, variables, nil) {
				if !yield(f, err) {
					stopped = true

					return nil
				}

				if err != nil {
					stopped = true

					return nil
				}
			}

			return nil
		}, opts...)
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}
