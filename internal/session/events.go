package session

import (
	"time"

	"companion-ai/internal/model"
)

type EventType string

const (
	EventMessageAppended   EventType = "message.appended"
	EventPendingChanged    EventType = "pending.changed"
	EventAttachmentAdded   EventType = "attachment.added"
	EventAttachmentRemoved EventType = "attachment.removed"
	EventResponseFailed    EventType = "response.failed"
)

// Event describes one state change of a session. Events are advisory: the
// timeline stays the source of truth.
type Event struct {
	Type       EventType            `json:"type"`
	SessionID  string               `json:"session_id"`
	Message    *model.Message       `json:"message,omitempty"`
	Attachment *model.AttachmentRef `json:"attachment,omitempty"`
	Pending    bool                 `json:"pending"`
	Error      string               `json:"error,omitempty"`
	At         time.Time            `json:"at"`
}

// Notifier receives session events. Notify is called with the session lock
// held and must not call back into the Controller.
type Notifier interface {
	Notify(ev Event)
}

type NotifierFunc func(ev Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// MultiNotifier fans an event out to every non-nil notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ev)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// Recorder receives engine metrics.
type Recorder interface {
	CycleStarted()
	CycleFinished(outcome string, elapsed time.Duration)
	AttachmentIngested(mediaType string)
	AttachmentRejected(reason string)
}

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

type nopRecorder struct{}

func (nopRecorder) CycleStarted()                       {}
func (nopRecorder) CycleFinished(string, time.Duration) {}
func (nopRecorder) AttachmentIngested(string)           {}
func (nopRecorder) AttachmentRejected(string)           {}
