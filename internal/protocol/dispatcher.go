package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/graphql-ws-go/internal/config"
	"github.com/wagiedev/graphql-ws-go/internal/errors"
	"github.com/wagiedev/graphql-ws-go/internal/frame"
	"github.com/wagiedev/graphql-ws-go/internal/metrics"
)

// Dispatcher multiplexes queries and subscriptions over one Session.
//
// The Dispatcher is the only reader of the session. Its read loop routes:
//   - ka frames nowhere
//   - connection_ack and connection_error to the pending handshake
//   - data, error and complete frames to the operation owning their id
//
// The Dispatcher must be started with Start() before use.
type Dispatcher struct {
	log     *slog.Logger
	session *Session
	options *config.Options
	metrics *metrics.Collector

	// Open operations by id
	opsMu sync.Mutex
	ops   map[string]*operation

	// Handshakes are one send+receive unit at a time
	handshakeMu sync.Mutex
	initMu      sync.Mutex
	initWaiter  chan *frame.Frame

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	runCtx    context.Context
	cancel    context.CancelFunc
	tasksMu   sync.Mutex
	stopped   bool
	tasks     errgroup.Group
	closeOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher over session.
//
// options supplies timeouts and the default event handler; a nil options uses
// the defaults.
func NewDispatcher(
	log *slog.Logger,
	session *Session,
	options *config.Options,
	m *metrics.Collector,
) *Dispatcher {
	if options == nil {
		options = &config.Options{}
	}

	return &Dispatcher{
		log:     log.With("component", "dispatcher"),
		session: session,
		options: options,
		metrics: m,
		ops:     make(map[string]*operation, 8),
		done:    make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (d *Dispatcher) closeDone() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (d *Dispatcher) SetFatalError(err error) {
	d.errMu.Lock()

	if d.fatalErr == nil {
		d.fatalErr = err
	}

	d.errMu.Unlock()

	d.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (d *Dispatcher) FatalError() error {
	d.errMu.RLock()
	defer d.errMu.RUnlock()

	return d.fatalErr
}

// Done returns a channel that is closed when the dispatcher stops.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// stoppedError explains why a stopped dispatcher cannot serve a call.
func (d *Dispatcher) stoppedError() error {
	if err := d.FatalError(); err != nil {
		return err
	}

	return errors.ErrDispatcherStopped
}

// Start begins reading from the session and routing frames.
//
// Subscription tasks inherit ctx, so it should outlive the operations; the
// client passes a background-derived context and stops the dispatcher explicitly.
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Debug("Starting dispatcher")

	d.runCtx, d.cancel = context.WithCancel(ctx)

	d.wg.Go(func() {
		d.readLoop(d.runCtx)
	})

	d.log.Info("Dispatcher started")
}

// Stop cancels every subscription, fails every pending operation and waits for
// the read loop and all subscription tasks to exit.
//
// It's safe to call Stop multiple times. Stop must not be called from an event
// handler, since it waits for the handler's own task.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.log.Debug("Stopping dispatcher")

		d.closeDone()

		// No task may be added once Wait below has begun.
		d.tasksMu.Lock()
		d.stopped = true
		d.tasksMu.Unlock()

		for _, op := range d.openOperations() {
			if op.sub != nil {
				op.sub.cancel()
			}
		}

		d.failAll(errors.ErrDispatcherStopped)

		if d.cancel != nil {
			d.cancel()
		}

		_ = d.tasks.Wait()

		d.wg.Wait()
		d.log.Info("Dispatcher stopped")
	})
}

// readLoop is the only consumer of session.ReceiveRaw.
func (d *Dispatcher) readLoop(ctx context.Context) {
	defer d.log.Debug("Dispatcher read loop stopped")

	for {
		f, err := d.session.ReceiveRaw(ctx)
		if err != nil {
			if frameErr, ok := stderrors.AsType[*errors.FrameError](err); ok {
				d.routeFrameError(frameErr)

				continue
			}

			if ctx.Err() != nil {
				return
			}

			d.log.Error("Transport failed, abandoning open operations", "error", err)
			d.SetFatalError(err)
			d.failAll(err)

			return
		}

		d.route(f)
	}
}

// route delivers one inbound frame.
func (d *Dispatcher) route(f *frame.Frame) {
	switch f.Type {
	case frame.TypeKeepAlive:
		return

	case frame.TypeConnectionAck, frame.TypeConnectionError:
		d.initMu.Lock()
		waiter := d.initWaiter
		d.initWaiter = nil
		d.initMu.Unlock()

		if waiter == nil {
			d.log.Warn("Dropping handshake reply with no pending handshake", "frame", f.String())

			return
		}

		waiter <- f

	case frame.TypeData, frame.TypeError, frame.TypeComplete:
		op := d.lookup(f.ID)
		if op == nil {
			d.log.Warn("Dropping frame for unknown operation", "frame", f.String())

			return
		}

		op.box.push(delivery{frame: f})

	default:
		d.log.Warn("Dropping unexpected frame from server", "frame", f.String())
	}
}

// routeFrameError hands a malformed frame to its operation when the id is known.
func (d *Dispatcher) routeFrameError(err *errors.FrameError) {
	if op := d.lookup(err.ID); op != nil {
		d.log.Warn("Malformed frame for operation", "id", err.ID, "error", err)
		op.box.push(delivery{err: err})

		return
	}

	d.log.Warn("Dropping malformed frame", "error", err, "raw", err.Raw)
}

// Handshake sends connection_init with headers and waits for the server's answer.
//
// connection_ack marks the session initialized. connection_error fails with
// HandshakeError. The wait is bounded by the handshake timeout.
func (d *Dispatcher) Handshake(ctx context.Context, headers map[string]string) error {
	d.handshakeMu.Lock()
	defer d.handshakeMu.Unlock()

	select {
	case <-d.done:
		return d.stoppedError()
	default:
	}

	reply := make(chan *frame.Frame, 1)

	d.initMu.Lock()
	d.initWaiter = reply
	d.initMu.Unlock()

	defer func() {
		d.initMu.Lock()
		if d.initWaiter == reply {
			d.initWaiter = nil
		}
		d.initMu.Unlock()
	}()

	if err := d.session.SendInit(ctx, headers); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	timeout := d.options.HandshakeTimeoutOrDefault()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-reply:
		if f.Type == frame.TypeConnectionAck {
			d.session.markInitialized()
			d.metrics.Handshake(metrics.HandshakeAck)
			d.log.Debug("Handshake acknowledged")

			return nil
		}

		d.metrics.Handshake(metrics.HandshakeError)

		herr := &errors.HandshakeError{Reason: f.ErrorMessage(), Payload: f.Payload}
		d.log.Warn("Handshake rejected", "reason", herr.Reason)

		return herr

	case <-timer.C:
		d.metrics.Handshake(metrics.HandshakeTimeout)
		d.log.Warn("Handshake timed out", "timeout", timeout)

		return fmt.Errorf("%w after %s", errors.ErrHandshakeTimeout, timeout)

	case <-d.done:
		return d.stoppedError()

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query starts a one-shot operation and returns the first frame routed to it.
//
// A data frame is the expected result, but an error or complete frame that
// arrives first is returned the same way with a nil error; callers inspect the
// frame type. The operation is stopped on the server before Query returns.
func (d *Dispatcher) Query(ctx context.Context, payload *frame.OperationPayload) (*frame.Frame, error) {
	op, err := d.open(ctx, kindQuery, payload, nil)
	if err != nil {
		return nil, err
	}

	defer d.release(op)

	result, err := op.box.next(ctx)
	if err != nil {
		_, malformed := stderrors.AsType[*errors.FrameError](err)
		if malformed || ctx.Err() != nil {
			d.abandon(ctx, op)
		}

		return nil, err
	}

	d.log.Debug("Query answered", "id", op.id, "type", result.Type)

	if _, err := d.stop(ctx, op, !result.IsTerminal()); err != nil {
		return nil, fmt.Errorf("stop query %s: %w", op.id, err)
	}

	return result, nil
}

// Subscribe starts a streaming operation and returns its id once start is sent.
//
// A task then delivers each data frame to onEvent, or to the configured default
// handler when onEvent is nil, until the server ends the operation or
// StopSubscribe is called. Keepalives never reach the handler.
func (d *Dispatcher) Subscribe(
	ctx context.Context,
	payload *frame.OperationPayload,
	onEvent config.EventHandler,
) (string, error) {
	handler := onEvent
	if handler == nil {
		handler = d.options.EventHandler
	}

	if handler == nil {
		handler = d.logEvent
	}

	taskCtx, cancel := context.WithCancel(d.runCtx)
	sub := &subscription{
		cancel: cancel,
		done:   make(chan struct{}),
		onEnd:  config.EndHandlerFrom(ctx),
	}

	op, err := d.open(ctx, kindSubscription, payload, sub)
	if err != nil {
		cancel()
		close(sub.done)

		return "", err
	}

	if !d.spawn(func() {
		defer close(sub.done)
		defer cancel()

		d.deliver(taskCtx, op, handler)
	}) {
		d.abandon(ctx, op)
		d.release(op)
		cancel()
		close(sub.done)

		return "", d.stoppedError()
	}

	d.log.Info("Subscription started", "id", op.id)

	return op.id, nil
}

// spawn runs task in the subscription group unless Stop has begun waiting on it.
func (d *Dispatcher) spawn(task func()) bool {
	d.tasksMu.Lock()
	defer d.tasksMu.Unlock()

	if d.stopped {
		return false
	}

	d.tasks.Go(func() error {
		task()

		return nil
	})

	return true
}

// deliver runs the subscription task until it is cancelled or the operation ends.
func (d *Dispatcher) deliver(ctx context.Context, op *operation, handler config.EventHandler) {
	log := d.log.With("id", op.id)
	defer log.Debug("Subscription task exited")

	hctx := withHandler(ctx, op.id)

	for {
		if ctx.Err() != nil {
			d.interrupted(op)

			return
		}

		f, err := op.box.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			if _, ok := stderrors.AsType[*errors.FrameError](err); ok {
				log.Error("Malformed frame ended subscription", "error", err)
				d.finish(ctx, op, true)
				op.sub.ended(op.id, nil, err)

				return
			}

			log.Error("Subscription abandoned", "error", err)
			d.finish(ctx, op, false)
			op.sub.ended(op.id, nil, err)

			return
		}

		switch f.Type {
		case frame.TypeKeepAlive:
			continue

		case frame.TypeError:
			log.Warn("Subscription ended with error", "error", f.ErrorMessage(), "payload", string(f.Payload))
			d.finish(ctx, op, true)
			op.sub.ended(op.id, f, nil)

			return

		case frame.TypeComplete:
			log.Info("Subscription completed")
			d.finish(ctx, op, true)
			op.sub.ended(op.id, f, nil)

			return

		default:
			handler(hctx, op.id, f)
		}
	}
}

// interrupted handles a task whose context ended. StopSubscribe tears down the
// subscriptions it stops; anything else means the dispatcher is going away and
// the operation is released here without a stop frame.
func (d *Dispatcher) interrupted(op *operation) {
	if op.sub.stopping.Load() {
		return
	}

	err := d.stoppedError()

	d.log.Warn("Subscription abandoned", "id", op.id, "error", err)
	d.finish(context.Background(), op, false)
	op.sub.ended(op.id, nil, err)
}

// finish tears down a subscription that ended on its own.
// The server has already ended the operation, so no acknowledgement is awaited.
func (d *Dispatcher) finish(ctx context.Context, op *operation, sendStop bool) {
	op.sub.stopOnce.Do(func() {
		if !sendStop {
			return
		}

		if _, err := d.stop(context.WithoutCancel(ctx), op, false); err != nil {
			d.log.Debug("Could not send stop for ended subscription", "id", op.id, "error", err)
		}
	})

	d.release(op)
}

// StopSubscribe stops subscription id and returns the server's acknowledgement.
//
// The delivery task is cancelled and joined first, so no event handler runs for
// id after StopSubscribe returns. Then a single stop frame is sent and the next
// terminal frame for id is returned, or nil when none arrives within the stop
// timeout. Calling it from the subscription's own handler is safe: the handler
// context is recognized and the task is not joined. Stopping an id that is
// unknown or has already ended returns nil, nil without sending anything.
func (d *Dispatcher) StopSubscribe(ctx context.Context, id string) (*frame.Frame, error) {
	op := d.lookup(id)
	if op == nil || op.sub == nil {
		d.log.Debug("StopSubscribe for unknown or ended subscription", "id", id)

		return nil, nil
	}

	op.sub.stopping.Store(true)
	op.sub.cancel()

	sendCtx := ctx

	if inHandler(ctx, id) {
		sendCtx = context.WithoutCancel(ctx)
	} else {
		select {
		case <-op.sub.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var (
		ack *frame.Frame
		err error
	)

	op.sub.stopOnce.Do(func() {
		ack, err = d.stop(sendCtx, op, true)
	})

	d.release(op)

	if err != nil {
		return nil, fmt.Errorf("stop subscription %s: %w", id, err)
	}

	d.log.Info("Subscription stopped", "id", id)

	return ack, nil
}

// SubscriptionDone returns a channel closed once the task of subscription id has
// exited. Unknown ids yield an already closed channel.
func (d *Dispatcher) SubscriptionDone(id string) <-chan struct{} {
	if op := d.lookup(id); op != nil && op.sub != nil {
		return op.sub.done
	}

	closed := make(chan struct{})
	close(closed)

	return closed
}

// stop sends stop for op and, when awaitAck is set, waits for the next terminal
// frame of op. Frames still in flight before it are discarded. No answer within
// the stop timeout yields nil, nil.
func (d *Dispatcher) stop(ctx context.Context, op *operation, awaitAck bool) (*frame.Frame, error) {
	if err := d.session.SendStop(ctx, op.id); err != nil {
		return nil, fmt.Errorf("send stop: %w", err)
	}

	if !awaitAck {
		return nil, nil
	}

	timeout := d.options.StopTimeoutOrDefault()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		f, err := op.box.next(waitCtx)
		if err != nil {
			if ctx.Err() == nil && stderrors.Is(err, context.DeadlineExceeded) {
				d.log.Debug("No answer to stop", "id", op.id, "timeout", timeout)

				return nil, nil
			}

			return nil, err
		}

		if f.IsTerminal() {
			return f, nil
		}

		d.log.Debug("Discarding frame received after stop", "frame", f.String())
	}
}

// abandon tells the server to stop an operation the caller gave up on.
func (d *Dispatcher) abandon(ctx context.Context, op *operation) {
	if _, err := d.stop(context.WithoutCancel(ctx), op, false); err != nil {
		d.log.Debug("Could not stop abandoned operation", "id", op.id, "error", err)
	}
}

// open registers a new operation under a fresh id and sends its start frame.
// The mailbox exists before start is written, so no early frame is dropped.
func (d *Dispatcher) open(
	ctx context.Context,
	kind string,
	payload *frame.OperationPayload,
	sub *subscription,
) (*operation, error) {
	select {
	case <-d.done:
		return nil, d.stoppedError()
	default:
	}

	op := &operation{kind: kind, box: newMailbox(), sub: sub}

	id, err := d.session.SendStart(ctx, payload, func(id string) bool {
		d.opsMu.Lock()
		defer d.opsMu.Unlock()

		if _, taken := d.ops[id]; taken {
			return false
		}

		op.id = id
		d.ops[id] = op
		d.metrics.OperationStarted(kind)

		return true
	})
	if err != nil {
		if id != "" {
			d.release(op)
		}

		d.log.Error("Failed to start operation", "kind", kind, "error", err)

		return nil, fmt.Errorf("start %s: %w", kind, err)
	}

	// A failure between the check above and registration would have missed op
	// in failAll.
	select {
	case <-d.done:
		d.release(op)

		return nil, d.stoppedError()
	default:
	}

	d.log.Debug("Operation started", "id", id, "kind", kind)

	return op, nil
}

// release forgets op. Releasing twice is a no-op.
func (d *Dispatcher) release(op *operation) {
	d.opsMu.Lock()

	current, ok := d.ops[op.id]
	if ok && current == op {
		delete(d.ops, op.id)
	}

	d.opsMu.Unlock()

	if ok && current == op {
		d.metrics.OperationFinished(op.kind)
	}
}

func (d *Dispatcher) lookup(id string) *operation {
	if id == "" {
		return nil
	}

	d.opsMu.Lock()
	defer d.opsMu.Unlock()

	return d.ops[id]
}

func (d *Dispatcher) openOperations() []*operation {
	d.opsMu.Lock()
	defer d.opsMu.Unlock()

	ops := make([]*operation, 0, len(d.ops))
	for _, op := range d.ops {
		ops = append(ops, op)
	}

	return ops
}

// failAll wakes every pending operation with err.
func (d *Dispatcher) failAll(err error) {
	for _, op := range d.openOperations() {
		op.box.fail(err)
	}
}

// logEvent is the event handler used when none is configured.
func (d *Dispatcher) logEvent(_ context.Context, id string, f *frame.Frame) {
	d.log.Info("Subscription event", "id", id, "type", f.Type, "payload", string(f.Payload))
}
