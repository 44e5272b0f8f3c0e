package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"companion-ai/internal/model"
)

const DefaultResponseTimeout = 60 * time.Second

type TurnKind string

const (
	TurnText   TurnKind = "text"
	TurnUpload TurnKind = "upload"
)

// GenerateRequest is everything a generator may ground a reply on. Documents
// and AttachmentNames are a snapshot taken when the turn was submitted.
type GenerateRequest struct {
	SessionID       string
	Kind            TurnKind
	Content         string
	AttachmentNames []string
	Documents       []model.Attachment
	Upload          *model.AttachmentRef
	History         []model.Message
}

// Generator produces the assistant reply for one user turn.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

// deliverFunc hands a finished cycle back to its owner. reply is only
// meaningful when err is nil.
type deliverFunc func(reply string, err error) (model.Message, error)

// Scheduler runs response cycles against a Generator, one at a time per
// pending flag.
type Scheduler struct {
	generator Generator
	timeout   time.Duration
	notifier  Notifier
	recorder  Recorder
	log       zerolog.Logger
	sessionID string
}

func NewScheduler(generator Generator, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	return &Scheduler{
		generator: generator,
		timeout:   timeout,
		notifier:  nopNotifier{},
		recorder:  nopRecorder{},
		log:       zerolog.Nop(),
	}
}

// RequestResponse starts a cycle for user. It fails with
// ErrResponseAlreadyPending when pending is already set. The cycle outlives
// ctx cancellation and is bounded by the scheduler timeout instead.
func (s *Scheduler) RequestResponse(
	ctx context.Context,
	pending *atomic.Bool,
	user model.Message,
	req GenerateRequest,
	deliver deliverFunc,
) (*Turn, error) {
	if !pending.CompareAndSwap(false, true) {
		return nil, ErrResponseAlreadyPending
	}
	s.recorder.CycleStarted()
	s.notifier.Notify(Event{Type: EventPendingChanged, SessionID: s.sessionID, Pending: true, At: time.Now()})

	turn := newTurn(user)
	go s.run(context.WithoutCancel(ctx), pending, req, deliver, turn)
	return turn, nil
}

func (s *Scheduler) run(ctx context.Context, pending *atomic.Bool, req GenerateRequest, deliver deliverFunc, turn *Turn) {
	started := time.Now()
	reply, genErr := s.generate(ctx, req)

	outcome := OutcomeSuccess
	switch {
	case errors.Is(genErr, context.DeadlineExceeded):
		outcome = OutcomeTimeout
	case genErr != nil:
		outcome = OutcomeFailure
	}
	if genErr != nil {
		genErr = fmt.Errorf("%w: %w", ErrResponseGenerationFailed, genErr)
	}

	msg, err := deliver(reply, genErr)
	pending.Store(false)
	s.notifier.Notify(Event{Type: EventPendingChanged, SessionID: s.sessionID, Pending: false, At: time.Now()})
	s.recorder.CycleFinished(outcome, time.Since(started))

	if err != nil {
		s.log.Warn().Err(err).Str("outcome", outcome).Dur("elapsed", time.Since(started)).Msg("response cycle failed")
	} else {
		s.log.Debug().Str("message_id", msg.ID).Dur("elapsed", time.Since(started)).Msg("response cycle completed")
	}
	turn.resolve(msg, err)
}

type generateResult struct {
	reply string
	err   error
}

// generate waits for the generator or the deadline, whichever comes first, so
// a generator that ignores its context still cannot hold the cycle open.
func (s *Scheduler) generate(ctx context.Context, req GenerateRequest) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan generateResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generateResult{err: fmt.Errorf("generator panic: %v", r)}
			}
		}()
		reply, err := s.generator.Generate(genCtx, req)
		done <- generateResult{reply: reply, err: err}
	}()

	select {
	case res := <-done:
		return res.reply, res.err
	case <-genCtx.Done():
		return "", genCtx.Err()
	}
}

// Turn is the handle for one submitted user turn and its pending reply.
type Turn struct {
	UserMessage model.Message

	done  chan struct{}
	reply model.Message
	err   error
}

func newTurn(user model.Message) *Turn {
	return &Turn{
		UserMessage: user,
		done:        make(chan struct{}),
	}
}

func (t *Turn) resolve(reply model.Message, err error) {
	t.reply = reply
	t.err = err
	close(t.done)
}

// Done is closed once the reply was appended or the cycle failed.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the cycle resolves or ctx ends. A ctx error does not
// abandon the cycle.
func (t *Turn) Wait(ctx context.Context) (model.Message, error) {
	select {
	case <-t.done:
		return t.reply, t.err
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}
}
