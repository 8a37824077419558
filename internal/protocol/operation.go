package protocol

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/graphql-ws-go/internal/config"
	"github.com/wagiedev/graphql-ws-go/internal/frame"
)

// Operation kinds, also used as metric labels.
const (
	kindQuery        = "query"
	kindSubscription = "subscription"
)

// delivery is one item routed to an operation: a frame or a receive failure.
type delivery struct {
	frame *frame.Frame
	err   error
}

// mailbox is an unbounded FIFO of deliveries for one operation.
//
// The read loop pushes without blocking, so a slow subscriber never stalls
// routing for other operations. A failed mailbox still drains what it holds.
type mailbox struct {
	mu     sync.Mutex
	items  []delivery
	failed error
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(d delivery) {
	m.mu.Lock()
	m.items = append(m.items, d)
	m.mu.Unlock()

	m.notify()
}

// fail makes next return err once the mailbox is empty. The first error wins.
func (m *mailbox) fail(err error) {
	m.mu.Lock()
	if m.failed == nil {
		m.failed = err
	}
	m.mu.Unlock()

	m.notify()
}

func (m *mailbox) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// next blocks until a delivery is available, the mailbox fails, or ctx is done.
func (m *mailbox) next(ctx context.Context) (*frame.Frame, error) {
	for {
		m.mu.Lock()

		if len(m.items) > 0 {
			d := m.items[0]
			m.items[0] = delivery{}
			m.items = m.items[1:]
			m.mu.Unlock()

			return d.frame, d.err
		}

		failed := m.failed
		m.mu.Unlock()

		if failed != nil {
			return nil, failed
		}

		select {
		case <-m.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// operation is one open query or subscription.
type operation struct {
	id   string
	kind string
	box  *mailbox
	sub  *subscription // nil for queries
}

// subscription is the handle of a running delivery task.
type subscription struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	// stopping is set by StopSubscribe before it cancels the task, which then
	// leaves teardown to StopSubscribe.
	stopping atomic.Bool

	onEnd   config.EndHandler
	endOnce sync.Once
}

// ended reports how the subscription ended to its EndHandler, at most once.
func (s *subscription) ended(id string, end *frame.Frame, err error) {
	if s.onEnd == nil {
		return
	}

	s.endOnce.Do(func() {
		s.onEnd(id, end, err)
	})
}

// handlerKey marks contexts passed to event handlers with their subscription id.
type handlerKey struct{}

func withHandler(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, handlerKey{}, id)
}

// inHandler reports whether ctx belongs to the event handler of subscription id.
func inHandler(ctx context.Context, id string) bool {
	v, _ := ctx.Value(handlerKey{}).(string)

	return v == id
}
