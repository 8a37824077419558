package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wagiedev/graphql-ws-go/internal/config"
	"github.com/wagiedev/graphql-ws-go/internal/errors"
	"github.com/wagiedev/graphql-ws-go/internal/frame"
	"github.com/wagiedev/graphql-ws-go/internal/idgen"
	"github.com/wagiedev/graphql-ws-go/internal/metrics"
)

const (
	// maxIDAttempts bounds the redraws when a generated id is already in use.
	maxIDAttempts = 100

	// terminateTimeout bounds the best-effort connection_terminate sent on close.
	terminateTimeout = time.Second
)

// Session owns one transport connection and the frame-level primitives on it.
//
// Sends are safe for concurrent use. ReceiveRaw must have a single caller at a
// time; the Dispatcher is that caller.
type Session struct {
	log       *slog.Logger
	transport config.Transport
	ids       idgen.Generator
	metrics   *metrics.Collector

	messages   <-chan []byte
	errs       <-chan error
	stopReader context.CancelFunc

	initialized atomic.Bool

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// OpenSession starts the transport and begins reading from it.
//
// Reading continues until Close is called or the transport fails; the caller's
// context only bounds establishing the connection. Returns ConnectionError if the
// transport cannot be started.
func OpenSession(
	ctx context.Context,
	log *slog.Logger,
	transport config.Transport,
	ids idgen.Generator,
	m *metrics.Collector,
) (*Session, error) {
	if ids == nil {
		ids = idgen.Default()
	}

	s := &Session{
		log:       log.With("component", "session"),
		transport: transport,
		ids:       ids,
		metrics:   m,
	}

	if err := transport.Start(ctx); err != nil {
		return nil, asConnectionError(err)
	}

	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopReader = cancel
	s.messages, s.errs = transport.ReadMessages(readCtx)

	s.log.Debug("Session opened")

	return s, nil
}

// Initialized reports whether a handshake has been acknowledged on this session.
func (s *Session) Initialized() bool {
	return s.initialized.Load()
}

func (s *Session) markInitialized() {
	s.initialized.Store(true)
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.closed
}

// Send encodes f and writes it to the transport.
//
// Returns ErrConnectionClosed after Close.
func (s *Session) Send(ctx context.Context, f *frame.Frame) error {
	if s.IsClosed() {
		return errors.ErrConnectionClosed
	}

	data, err := frame.Encode(f)
	if err != nil {
		return err
	}

	if err := s.transport.SendMessage(ctx, data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return asConnectionError(err)
	}

	s.metrics.FrameSent(string(f.Type))
	s.log.Debug("Sent frame", "frame", f.String())

	return nil
}

// SendInit sends connection_init carrying headers.
func (s *Session) SendInit(ctx context.Context, headers map[string]string) error {
	return s.Send(ctx, frame.NewConnectionInit(headers))
}

// SendStart draws an operation id and sends a start frame for payload.
//
// reserve is called with each candidate id before anything is sent and must
// return false when the id is already held by an open operation, in which case a
// new id is drawn. A nil reserve accepts the first id. The id is returned as soon
// as the frame is written; results arrive separately.
func (s *Session) SendStart(
	ctx context.Context,
	payload *frame.OperationPayload,
	reserve func(id string) bool,
) (string, error) {
	var id string

	for attempt := 0; ; attempt++ {
		if attempt == maxIDAttempts {
			return "", fmt.Errorf("allocate operation id: %d candidates already in use", maxIDAttempts)
		}

		candidate := s.ids.Generate()
		if reserve == nil || reserve(candidate) {
			id = candidate

			break
		}

		s.log.Debug("Operation id already in use, drawing again", "id", candidate)
	}

	f, err := frame.NewStart(id, payload)
	if err != nil {
		return id, err
	}

	if err := s.Send(ctx, f); err != nil {
		return id, err
	}

	return id, nil
}

// SendStop sends a stop frame for id.
func (s *Session) SendStop(ctx context.Context, id string) error {
	return s.Send(ctx, frame.NewStop(id))
}

// ReceiveRaw blocks until the next inbound message and decodes it.
//
// A message that cannot be decoded yields a FrameError and leaves the session
// usable. A closed or failed transport yields a ConnectionError.
func (s *Session) ReceiveRaw(ctx context.Context) (*frame.Frame, error) {
	select {
	case data, ok := <-s.messages:
		if !ok {
			return nil, s.readFailure()
		}

		f, err := frame.Decode(data)
		if err != nil {
			s.metrics.FrameError()
			s.log.Debug("Failed to decode frame", "error", err)

			return nil, err
		}

		s.metrics.FrameReceived(string(f.Type))
		s.log.Debug("Received frame", "frame", f.String())

		return f, nil

	case err, ok := <-s.errs:
		if s.IsClosed() {
			return nil, &errors.ConnectionError{Err: errors.ErrConnectionClosed}
		}

		if ok && err != nil {
			return nil, asConnectionError(err)
		}

		return nil, s.readFailure()

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readFailure reports why the message stream ended.
func (s *Session) readFailure() error {
	select {
	case err, ok := <-s.errs:
		if ok && err != nil {
			return asConnectionError(err)
		}
	default:
	}

	return &errors.ConnectionError{Err: errors.ErrConnectionClosed}
}

// Close sends connection_terminate when possible and closes the transport.
// It's safe to call Close multiple times.
func (s *Session) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.log.Debug("Closing session")

		if s.transport.IsReady() {
			ctx, cancel := context.WithTimeout(context.Background(), terminateTimeout)

			if sendErr := s.Send(ctx, frame.NewConnectionTerminate()); sendErr != nil {
				s.log.Debug("Could not send connection_terminate", "error", sendErr)
			}

			cancel()
		}

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		err = s.transport.Close()

		if s.stopReader != nil {
			s.stopReader()
		}
	})

	return err
}

// asConnectionError classifies a transport failure as a ConnectionError.
func asConnectionError(err error) error {
	if _, ok := stderrors.AsType[*errors.ConnectionError](err); ok {
		return err
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &errors.ConnectionError{Err: err}
}
