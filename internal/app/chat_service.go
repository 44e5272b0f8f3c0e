package app

import (
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"companion-ai/internal/model"
	"companion-ai/internal/session"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// SessionGauge tracks how many sessions are held in memory.
type SessionGauge interface {
	Set(float64)
}

type ChatOptions struct {
	Generator       session.Generator
	Decoder         session.Decoder
	Greeting        string
	ResponseTimeout time.Duration
	HistoryLimit    int
	IdleTTL         time.Duration

	Notifier session.Notifier
	Recorder session.Recorder
	Gauge    SessionGauge
	Logger   zerolog.Logger
}

// ChatService hosts one session.Controller per authenticated session and
// forgets sessions that stay idle longer than IdleTTL.
type ChatService struct {
	opts     ChatOptions
	sessions *gocache.Cache
	mu       sync.Mutex
}

func NewChatService(opts ChatOptions) *ChatService {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 2 * time.Hour
	}
	s := &ChatService{
		opts:     opts,
		sessions: gocache.New(opts.IdleTTL, opts.IdleTTL/4+time.Second),
	}
	s.sessions.OnEvicted(func(id string, _ interface{}) {
		s.opts.Logger.Info().Str("session_id", id).Msg("session evicted")
		s.updateGauge()
	})
	return s
}

// Open returns the controller for sessionID, creating it on first use.
func (s *ChatService) Open(sessionID string, authenticated bool) (*session.Controller, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.lookupLocked(sessionID); ok {
		return c, nil
	}

	c, err := session.New(session.Options{
		ID:              sessionID,
		Authenticated:   authenticated,
		Generator:       s.opts.Generator,
		Decoder:         s.opts.Decoder,
		ResponseTimeout: s.opts.ResponseTimeout,
		HistoryLimit:    s.opts.HistoryLimit,
		Greeting:        s.opts.Greeting,
		Notifier:        s.opts.Notifier,
		Recorder:        s.opts.Recorder,
		Logger:          s.opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.sessions.SetDefault(sessionID, c)
	s.updateGauge()
	s.opts.Logger.Info().Str("session_id", sessionID).Msg("session opened")
	return c, nil
}

func (s *ChatService) Get(sessionID string) (*session.Controller, error) {
	c, ok := s.lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Close drops the session. A cycle still in flight finishes on its own.
func (s *ChatService) Close(sessionID string) {
	s.mu.Lock()
	s.sessions.Delete(sessionID)
	s.mu.Unlock()
	s.updateGauge()
}

func (s *ChatService) SendMessage(ctx context.Context, sessionID, text string) (*session.Turn, error) {
	c, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return c.SubmitUserMessage(ctx, text)
}

func (s *ChatService) Upload(ctx context.Context, sessionID string, file model.RawFile) (*session.Turn, error) {
	c, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return c.SubmitAttachment(ctx, file)
}

func (s *ChatService) Detach(sessionID, name string) error {
	c, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	c.DetachAttachment(name)
	return nil
}

func (s *ChatService) DetachAt(sessionID string, index int) error {
	c, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	if !c.DetachAttachmentAt(index) {
		return ErrAttachmentNotFound
	}
	return nil
}

func (s *ChatService) State(sessionID string) (session.State, error) {
	c, err := s.Get(sessionID)
	if err != nil {
		return session.State{}, err
	}
	return c.Snapshot(), nil
}

func (s *ChatService) lookup(sessionID string) (*session.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(sessionID)
}

// lookupLocked refreshes the idle deadline on every hit. Holding s.mu keeps
// a concurrent Close from being undone by the refresh.
func (s *ChatService) lookupLocked(sessionID string) (*session.Controller, bool) {
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	c := v.(*session.Controller)
	s.sessions.SetDefault(sessionID, c)
	return c, true
}

func (s *ChatService) updateGauge() {
	if s.opts.Gauge != nil {
		s.opts.Gauge.Set(float64(s.sessions.ItemCount()))
	}
}
