// Package chatbot runs the WhatsApp intake dialogue: one session per identity
// advanced through a fixed sequence of data-collection steps.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/providata-intake/internal/domain"
	"github.com/ashureev/providata-intake/internal/observability"
	"github.com/ashureev/providata-intake/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrCorruptSession marks a session whose fields contradict its state.
var ErrCorruptSession = errors.New("corrupt session")

// Inbound outcomes recorded per message.
const (
	outcomeAdvanced = "advanced"
	outcomeRejected = "rejected"
	outcomeReset    = "reset"
	outcomeError    = "error"
)

// Messenger delivers a text reply to an identity.
type Messenger interface {
	Send(ctx context.Context, to, text string) error
}

// Config tunes an Engine. Zero values fall back to sensible defaults.
type Config struct {
	SessionTimeout time.Duration
	// Location is the time zone of dates shown to citizens.
	Location *time.Location
	// ExpiryNotice sends a notice before restarting an expired session.
	ExpiryNotice bool
	Now          func() time.Time
	Logger       *slog.Logger
}

// Engine owns the transition table and drives sessions through it.
type Engine struct {
	sessions     *Sessions
	directory    store.Directory
	messenger    Messenger
	locks        *keyLock
	loc          *time.Location
	expiryNotice bool
	now          func() time.Time
	logger       *slog.Logger
	tracer       trace.Tracer
	handlers     map[domain.State]stateHandler
}

// stateHandler validates input for one state and computes the next step.
// It must not write the session; the engine applies the step.
type stateHandler func(ctx context.Context, s *domain.Session, in Input) (step, error)

// step is the outcome of one handled message.
type step struct {
	// next is the session to save. Nil leaves the stored session untouched.
	next    *domain.Session
	replies []string
	// cancel discards the session and replies.
	cancel bool
	// restart discards the session and starts the dialogue again.
	restart bool
}

// NewEngine wires the dialogue to its ports.
func NewEngine(sessions store.SessionStore, directory store.Directory, messenger Messenger, cfg Config) *Engine {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 30 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Engine{
		sessions:     NewSessions(sessions, cfg.SessionTimeout, cfg.Now),
		directory:    directory,
		messenger:    messenger,
		locks:        newKeyLock(),
		loc:          cfg.Location,
		expiryNotice: cfg.ExpiryNotice,
		now:          cfg.Now,
		logger:       cfg.Logger,
		tracer:       otel.Tracer("github.com/ashureev/providata-intake/internal/chatbot"),
	}
	e.handlers = map[domain.State]stateHandler{
		domain.StateStart:             e.handleStart,
		domain.StateAwaitMunicipality: e.handleMunicipality,
		domain.StateAwaitOffice:       e.handleOffice,
		domain.StateAwaitName:         e.handleName,
		domain.StateAwaitTaxID:        e.handleTaxID,
		domain.StateAwaitCategory:     e.handleCategory,
		domain.StateAwaitDescription:  e.handleDescription,
		domain.StateConfirm:           e.handleConfirm,
		domain.StateDone:              e.handleDone,
	}
	return e
}

// Handle processes one inbound message. Messages for the same identity are
// handled one at a time; failures are reported to the citizen, never returned.
func (e *Engine) Handle(ctx context.Context, identity, text string) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "chatbot.Handle")
	defer span.End()

	unlock, err := e.locks.Lock(ctx, identity)
	if err != nil {
		e.logger.Warn("Gave up waiting for session lock", "identity", identity, "error", err)
		span.RecordError(err)
		observability.RecordInbound("", outcomeError, int(time.Since(started).Milliseconds()))
		return
	}
	defer unlock()

	state, outcome := e.process(ctx, identity, ParseInput(text))

	span.SetAttributes(
		attribute.String("chatbot.state", string(state)),
		attribute.String("chatbot.outcome", outcome),
	)
	observability.RecordInbound(string(state), outcome, int(time.Since(started).Milliseconds()))
}

func (e *Engine) process(ctx context.Context, identity string, in Input) (domain.State, string) {
	if in.Is(KeywordReset) {
		if err := e.restart(ctx, identity); err != nil {
			e.fail(ctx, identity, err)
			return "", outcomeError
		}
		return domain.StateStart, outcomeReset
	}

	session, expired, err := e.sessions.GetOrCreate(ctx, identity)
	if err != nil {
		e.fail(ctx, identity, err)
		return "", outcomeError
	}
	if expired {
		e.logger.Info("Session expired, starting over", "identity", identity)
		if e.expiryNotice {
			e.send(ctx, identity, msgSessionExpired)
		}
	}
	state := session.State

	st, err := e.dispatch(ctx, session, in)
	if errors.Is(err, ErrCorruptSession) {
		e.logger.Warn("Resetting corrupt session", "identity", identity, "state", state, "error", err)
		st, err = step{restart: true}, nil
	}
	if err != nil {
		e.fail(ctx, identity, err)
		return state, outcomeError
	}

	switch {
	case st.restart:
		if err := e.restart(ctx, identity); err != nil {
			e.fail(ctx, identity, err)
			return state, outcomeError
		}
		return state, outcomeReset

	case st.cancel:
		if _, err := e.sessions.Reset(ctx, identity); err != nil {
			e.fail(ctx, identity, err)
			return state, outcomeError
		}
		observability.RecordTransition(string(state), string(domain.StateStart))
		e.send(ctx, identity, st.replies...)
		return state, outcomeReset

	case st.next != nil:
		if err := e.sessions.Save(ctx, st.next); err != nil {
			e.fail(ctx, identity, err)
			return state, outcomeError
		}
		if st.next.State != state {
			observability.RecordTransition(string(state), string(st.next.State))
		}
		e.send(ctx, identity, st.replies...)
		return state, outcomeAdvanced
	}

	e.send(ctx, identity, st.replies...)
	return state, outcomeRejected
}

func (e *Engine) dispatch(ctx context.Context, s *domain.Session, in Input) (step, error) {
	h, ok := e.handlers[s.State]
	if !ok {
		return step{}, fmt.Errorf("%w: unknown state %q", ErrCorruptSession, s.State)
	}
	return h(ctx, s, in)
}

// restart overwrites the session and runs the initial step on the fresh one.
func (e *Engine) restart(ctx context.Context, identity string) error {
	fresh, err := e.sessions.Reset(ctx, identity)
	if err != nil {
		return err
	}
	st, err := e.handleStart(ctx, fresh, Input{})
	if err != nil {
		return err
	}
	if err := e.sessions.Save(ctx, st.next); err != nil {
		return err
	}
	observability.RecordTransition(string(fresh.State), string(st.next.State))
	e.send(ctx, identity, st.replies...)
	return nil
}

// fail reports an infrastructure failure. The stored session is left as it was.
func (e *Engine) fail(ctx context.Context, identity string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	e.logger.Error("Failed to handle message", "identity", identity, "error", err)
	e.send(ctx, identity, msgError)
}

func (e *Engine) send(ctx context.Context, identity string, texts ...string) {
	for _, text := range texts {
		if err := e.messenger.Send(ctx, identity, text); err != nil {
			observability.RecordOutbound("error")
			e.logger.Error("Failed to send reply", "identity", identity, "error", err)
			continue
		}
		observability.RecordOutbound("success")
	}
}
