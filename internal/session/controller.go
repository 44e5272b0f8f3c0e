package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"companion-ai/internal/model"
)

const DefaultHistoryLimit = 20

type Options struct {
	ID            string
	Authenticated bool

	Generator Generator
	Decoder   Decoder

	ResponseTimeout time.Duration
	HistoryLimit    int
	Greeting        string

	Notifier Notifier
	Recorder Recorder
	Logger   zerolog.Logger
	Now      func() time.Time
}

// State is a consistent read of a session at one instant.
type State struct {
	SessionID   string             `json:"session_id"`
	Pending     bool               `json:"pending"`
	Messages    []model.Message    `json:"messages"`
	Attachments []model.Attachment `json:"attachments"`
}

// Controller is the engine façade for one session. It owns the pending flag
// and is the only writer of its Timeline and Registry.
type Controller struct {
	id           string
	historyLimit int
	notifier     Notifier
	recorder     Recorder
	log          zerolog.Logger
	now          func() time.Time

	mu        sync.Mutex
	pending   atomic.Bool
	timeline  *Timeline
	registry  *Registry
	scheduler *Scheduler
	lastErr   error
}

func New(opts Options) (*Controller, error) {
	if !opts.Authenticated {
		return nil, ErrNotAuthenticated
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("session: generator is required")
	}
	if opts.Decoder == nil {
		return nil, fmt.Errorf("session: decoder is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	c := &Controller{
		id:           opts.ID,
		historyLimit: opts.HistoryLimit,
		notifier:     opts.Notifier,
		recorder:     opts.Recorder,
		log:          opts.Logger.With().Str("session_id", opts.ID).Logger(),
		now:          opts.Now,
		timeline:     NewTimeline(opts.Now),
		registry:     NewRegistry(opts.Decoder, opts.Now),
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}

	c.scheduler = NewScheduler(opts.Generator, opts.ResponseTimeout)
	c.scheduler.sessionID = c.id
	c.scheduler.notifier = c.notifier
	c.scheduler.recorder = c.recorder
	c.scheduler.log = c.log

	if greeting := strings.TrimSpace(opts.Greeting); greeting != "" {
		c.mu.Lock()
		c.appendLocked(model.SenderAssistant, greeting, nil)
		c.mu.Unlock()
	}
	return c, nil
}

func (c *Controller) ID() string {
	return c.id
}

// SubmitUserMessage appends a user turn and starts a response cycle. The turn
// references every attachment currently in the registry.
func (c *Controller) SubmitUserMessage(ctx context.Context, text string) (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending.Load() {
		return nil, ErrResponseAlreadyPending
	}
	if strings.TrimSpace(text) == "" {
		if c.registry.Len() == 0 {
			return nil, ErrEmptyInput
		}
		text = ""
	}

	user := c.appendLocked(model.SenderUser, text, c.registry.Refs())
	return c.startCycleLocked(ctx, user, TurnText, text, nil)
}

// SubmitAttachment ingests an upload and treats it as a conversational turn.
// Rejected uploads leave the registry and timeline untouched.
func (c *Controller) SubmitAttachment(ctx context.Context, file model.RawFile) (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending.Load() {
		return nil, ErrResponseAlreadyPending
	}

	doc, err := c.registry.Ingest(ctx, file)
	if err != nil {
		c.recorder.AttachmentRejected(rejectReason(err))
		c.log.Info().Err(err).Str("name", file.Name).Str("media_type", file.MediaType).Msg("upload rejected")
		return nil, err
	}
	c.recorder.AttachmentIngested(doc.MediaType)
	ref := doc.Ref()
	c.notifier.Notify(Event{Type: EventAttachmentAdded, SessionID: c.id, Attachment: &ref, At: c.now()})
	c.log.Info().Str("name", doc.Name).Str("media_type", doc.MediaType).Int64("size_bytes", doc.SizeBytes).Msg("attachment ingested")

	content := UploadAcknowledgement(doc.Name)
	user := c.appendLocked(model.SenderUser, content, []model.AttachmentRef{ref})
	return c.startCycleLocked(ctx, user, TurnUpload, content, &ref)
}

// DetachAttachment removes the first attachment with name. Messages that
// referenced it keep their reference as inert metadata.
func (c *Controller) DetachAttachment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if doc, ok := c.registry.Remove(name); ok {
		c.notifyDetachedLocked(doc)
	}
}

// DetachAttachmentAt removes the attachment at a registry position.
func (c *Controller) DetachAttachmentAt(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.registry.RemoveAt(index)
	if ok {
		c.notifyDetachedLocked(doc)
	}
	return ok
}

func (c *Controller) Pending() bool {
	return c.pending.Load()
}

func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline.All()
}

func (c *Controller) Attachments() []model.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.List()
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		SessionID:   c.id,
		Pending:     c.pending.Load(),
		Messages:    c.timeline.All(),
		Attachments: c.registry.List(),
	}
}

// LastError returns the most recent response failure, cleared by the next success.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) startCycleLocked(
	ctx context.Context,
	user model.Message,
	kind TurnKind,
	content string,
	upload *model.AttachmentRef,
) (*Turn, error) {
	req := GenerateRequest{
		SessionID:       c.id,
		Kind:            kind,
		Content:         content,
		AttachmentNames: c.registry.Names(),
		Documents:       c.registry.List(),
		Upload:          upload,
		History:         c.timeline.Recent(c.historyLimit),
	}
	return c.scheduler.RequestResponse(ctx, &c.pending, user, req, c.deliver)
}

// deliver runs on the scheduler goroutine with the pending flag still set.
func (c *Controller) deliver(reply string, err error) (model.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastErr = err
		c.notifier.Notify(Event{Type: EventResponseFailed, SessionID: c.id, Pending: true, Error: err.Error(), At: c.now()})
		return model.Message{}, err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "The model returned an empty response."
	}
	c.lastErr = nil
	return c.appendLocked(model.SenderAssistant, reply, nil), nil
}

func (c *Controller) appendLocked(sender model.Sender, content string, refs []model.AttachmentRef) model.Message {
	msg := c.timeline.Append(sender, content, refs)
	published := msg
	c.notifier.Notify(Event{Type: EventMessageAppended, SessionID: c.id, Message: &published, Pending: c.pending.Load(), At: c.now()})
	return msg
}

func (c *Controller) notifyDetachedLocked(doc model.Attachment) {
	ref := doc.Ref()
	c.notifier.Notify(Event{Type: EventAttachmentRemoved, SessionID: c.id, Attachment: &ref, At: c.now()})
	c.log.Info().Str("name", doc.Name).Msg("attachment detached")
}

// UploadAcknowledgement is the user-authored content recorded for an upload turn.
func UploadAcknowledgement(name string) string {
	return fmt.Sprintf("I've uploaded \"%s\" for analysis.", name)
}

func rejectReason(err error) string {
	if errors.Is(err, ErrUnsupportedMediaType) {
		return "unsupported_media_type"
	}
	return "decode_failed"
}
