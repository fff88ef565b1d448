package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// EventKind names the inbound events the engine understands.
type EventKind string

const (
	EventStart         EventKind = "start"
	EventAdvance       EventKind = "advance"
	EventAnswer        EventKind = "answer"
	EventSkip          EventKind = "skip"
	EventHint          EventKind = "hint"
	EventSelectSkipped EventKind = "select_skipped"
	EventCollectField  EventKind = "collect_field"
	EventConfirm       EventKind = "confirm"
	EventPhoto         EventKind = "photo"
)

// Event is one inbound message already classified by the transport.
type Event struct {
	Kind     EventKind `json:"type"`
	Text     string    `json:"text,omitempty"`
	Yes      bool      `json:"yes,omitempty"`
	PhotoRef string    `json:"photoRef,omitempty"`
	Profile  Profile   `json:"profile"`
}

func StartEvent(p Profile) Event {
	return Event{Kind: EventStart, Profile: p}
}

func AdvanceEvent() Event {
	return Event{Kind: EventAdvance}
}

func AnswerEvent(text string) Event {
	return Event{Kind: EventAnswer, Text: text}
}

func SkipEvent() Event {
	return Event{Kind: EventSkip}
}

func HintEvent() Event {
	return Event{Kind: EventHint}
}

func SelectSkippedEvent(name string) Event {
	return Event{Kind: EventSelectSkipped, Text: name}
}

func CollectFieldEvent(text string) Event {
	return Event{Kind: EventCollectField, Text: text}
}

func ConfirmEvent(yes bool) Event {
	return Event{Kind: EventConfirm, Yes: yes}
}

func PhotoEvent(ref string) Event {
	return Event{Kind: EventPhoto, PhotoRef: ref}
}

// Validate rejects events the engine can never act on.
func (e Event) Validate() error {
	switch e.Kind {
	case EventStart, EventAdvance, EventSkip, EventHint, EventConfirm, EventAnswer, EventCollectField:
		return nil
	case EventSelectSkipped:
		if NormalizeAnswer(e.Text) == "" {
			return fmt.Errorf("%w: empty level name", ErrInvalidEvent)
		}
		return nil
	case EventPhoto:
		if e.PhotoRef == "" {
			return fmt.Errorf("%w: empty photo reference", ErrInvalidEvent)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
}

// NoticeKind classifies one-off feedback attached to a reply.
type NoticeKind string

const (
	NoticeCorrect          NoticeKind = "correct"
	NoticeIncorrect        NoticeKind = "incorrect"
	NoticeAlreadyCompleted NoticeKind = "already_completed"
	NoticeHint             NoticeKind = "hint"
	NoticeHintUnavailable  NoticeKind = "hint_unavailable"
	NoticeSkipped          NoticeKind = "skipped"
	NoticeInfoSaved        NoticeKind = "info_saved"
	NoticeInvalidInput     NoticeKind = "invalid_input"
	NoticeUnknownLevel     NoticeKind = "unknown_level"
	NoticePhotoAccepted    NoticeKind = "photo_accepted"
	NoticePhotoRejected    NoticeKind = "photo_rejected"
	NoticeUnexpectedEvent  NoticeKind = "unexpected_event"
	NoticeResumed          NoticeKind = "resumed"
	NoticeNoContent        NoticeKind = "no_content"
	NoticeRetryLater       NoticeKind = "retry_later"
)

// Notice is feedback about the event just handled.
type Notice struct {
	Kind   NoticeKind `json:"kind"`
	Reward int64      `json:"reward,omitempty"`
	Text   string     `json:"text,omitempty"`
}

// Prompt describes what the participant should be shown next. Wording and
// keyboards are left to the presentation layer.
type Prompt struct {
	LevelID       *uuid.UUID `json:"levelId,omitempty"`
	QuestionID    *uuid.UUID `json:"questionId,omitempty"`
	LevelName     string     `json:"levelName,omitempty"`
	Text          string     `json:"text,omitempty"`
	Media         string     `json:"media,omitempty"`
	HintAvailable bool       `json:"hintAvailable,omitempty"`
	CanSkip       bool       `json:"canSkip,omitempty"`
	Choices       []string   `json:"choices,omitempty"`
	UserInfo      *UserInfo  `json:"userInfo,omitempty"`
}

// Reply is the outcome of one handled event.
type Reply struct {
	State   State    `json:"state,omitempty"`
	Prompt  Prompt   `json:"prompt"`
	Notices []Notice `json:"notices,omitempty"`
	Balance int64    `json:"balance"`
}

// HasNotice reports whether the reply carries a notice of the given kind.
func (r Reply) HasNotice(kind NoticeKind) bool {
	for _, n := range r.Notices {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// RetryReply is the only thing a caller sees when handling fails.
func RetryReply() Reply {
	return Reply{Notices: []Notice{{Kind: NoticeRetryLater}}}
}
