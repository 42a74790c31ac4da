package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"creatorhub/internal/logger"
	"creatorhub/internal/validator"
	"creatorhub/pkg/apperrors"
)

type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one realtime connection. Handle and Close are called from the
// connection's read loop only; frames leave through the send queue.
type Session struct {
	ID string

	ctx   context.Context
	coord *Coordinator
	state atomic.Int32

	userID uint
	name   string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) UserID() uint {
	return s.userID
}

// Context carries the session id for logging.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Done is closed when the transport should shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outbound is the queue drained by the write pump.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// enqueue never blocks. A full queue drops the frame for this session only.
func (s *Session) enqueue(frame []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- frame:
	default:
		logger.CtxWarn(s.ctx, "send queue full, dropping frame", "user_id", s.userID)
	}
}

func (s *Session) sendEvent(event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		logger.CtxWithError(s.ctx, "failed to encode ws frame", err, "event", event)
		return
	}
	s.enqueue(frame)
}

func (s *Session) sendError(event string, err error, ref correlation) {
	s.sendEvent(EventError, newErrorEvent(event, err, ref))
}

func (s *Session) closeTransport() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handle decodes one inbound frame and runs it through the dispatch table.
// Failures are reported to this session only.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	if s.State() == StateClosed {
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		s.sendError("", apperrors.NewValidationError("realtime", "Malformed frame"), correlation{})
		return
	}
	ref := correlationOf(env.Data)

	r, ok := s.coord.routes[env.Event]
	if !ok {
		s.sendError(env.Event, apperrors.NewValidationError("realtime", "Unknown event"), ref)
		return
	}
	if r.requiresAuth && s.State() != StateAuthenticated {
		s.sendError(env.Event, apperrors.ErrNotAuthenticated, ref)
		return
	}

	err := r.handle(ctx, s, env.Data)
	logger.WSLog(s.ID, env.Event, s.userID, err)
	if err != nil {
		if appErr := apperrors.Normalize(err); appErr.HTTPCode >= 500 {
			logger.CtxWithError(ctx, "ws event failed", err, "event", env.Event)
		}
		s.sendError(env.Event, err, ref)
	}
}

// Close moves the session to closed and releases what it held. Repeated
// calls do nothing.
func (s *Session) Close(ctx context.Context) {
	prev := State(s.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return
	}
	s.closeTransport()

	keep := s.coord.manager.Unregister(s, s.userID)
	if prev != StateAuthenticated {
		return
	}
	s.coord.disconnect(ctx, s, keep)
}

type route struct {
	requiresAuth bool
	handle       func(ctx context.Context, s *Session, data json.RawMessage) error
}

// on builds a dispatch entry with a typed, validated payload.
func on[P any](requiresAuth bool, fn func(ctx context.Context, s *Session, p *P) error) route {
	return route{
		requiresAuth: requiresAuth,
		handle: func(ctx context.Context, s *Session, data json.RawMessage) error {
			p := new(P)
			if len(data) > 0 && string(data) != "null" {
				if err := json.Unmarshal(data, p); err != nil {
					return apperrors.NewValidationError("realtime", "Malformed payload")
				}
			}
			if err := s.coord.validator.Validate(p); err != nil {
				var verr *validator.ValidationError
				if errors.As(err, &verr) {
					return apperrors.ValidationError(verr.Errors)
				}
				return apperrors.NewValidationError("realtime", err.Error())
			}
			return fn(ctx, s, p)
		},
	}
}
