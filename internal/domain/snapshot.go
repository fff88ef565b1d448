package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// State is the symbolic phase of the flow a participant is in.
type State string

const (
	StateIntro             State = "intro"
	StateAwaitingAdvance   State = "awaiting_advance"
	StateQuestion          State = "question"
	StateIntermediate      State = "intermediate"
	StateCollectName       State = "info.name"
	StateCollectCompany    State = "info.company"
	StateCollectPosition   State = "info.position"
	StateConfirmInfo       State = "info.confirm"
	StateObjectRecognition State = "object_recognition"
	StateReturnToSkipped   State = "return_to_skipped"
	StateCompleted         State = "completed"
)

// Valid reports whether s is a known state tag.
func (s State) Valid() bool {
	switch s {
	case StateIntro, StateAwaitingAdvance, StateQuestion, StateIntermediate,
		StateCollectName, StateCollectCompany, StateCollectPosition, StateConfirmInfo,
		StateObjectRecognition, StateReturnToSkipped, StateCompleted:
		return true
	}
	return false
}

// Collecting reports whether s is one of the info collection sub-steps.
func (s State) Collecting() bool {
	switch s {
	case StateCollectName, StateCollectCompany, StateCollectPosition, StateConfirmInfo:
		return true
	}
	return false
}

// UserInfo accumulates the fields asked for by an info collection level.
type UserInfo struct {
	Name     *string `json:"name,omitempty"`
	Company  *string `json:"company,omitempty"`
	Position *string `json:"position,omitempty"`
}

// Complete reports whether every field has been collected.
func (u UserInfo) Complete() bool {
	return u.Name != nil && u.Company != nil && u.Position != nil
}

// Payload is the structured part of a snapshot.
type Payload struct {
	CurrentLevelID       *uuid.UUID `json:"current_level_id"`
	CurrentQuestionID    *uuid.UUID `json:"current_question_id"`
	IntroLevelsCompleted int        `json:"intro_levels_completed"`
	QuizCompleted        bool       `json:"quiz_completed"`
	UserInfo             UserInfo   `json:"user_info"`
	PreviousState        State      `json:"previous_state,omitempty"`
	HintUsed             bool       `json:"hint_used,omitempty"`
}

// Snapshot is the persisted position of one participant in the flow.
type Snapshot struct {
	State   State
	Payload Payload
}

// Validate checks that the payload carries every reference the state needs.
func (s Snapshot) Validate() error {
	if !s.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrMalformedSnapshot, s.State)
	}
	if s.Payload.PreviousState != "" && !s.Payload.PreviousState.Valid() {
		return fmt.Errorf("%w: unknown previous state %q", ErrMalformedSnapshot, s.Payload.PreviousState)
	}
	if s.Payload.IntroLevelsCompleted < 0 {
		return fmt.Errorf("%w: negative intro counter", ErrMalformedSnapshot)
	}
	switch s.State {
	case StateReturnToSkipped, StateCompleted:
		return nil
	case StateQuestion:
		if s.Payload.CurrentQuestionID == nil {
			return fmt.Errorf("%w: %s without current_question_id", ErrMalformedSnapshot, s.State)
		}
	}
	if s.Payload.CurrentLevelID == nil {
		return fmt.Errorf("%w: %s without current_level_id", ErrMalformedSnapshot, s.State)
	}
	return nil
}

// EncodePayload serializes a payload into its stored form.
func EncodePayload(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

// DecodeSnapshot rebuilds a snapshot from its stored tag and payload. Unknown keys,
// trailing data and missing references are rejected with ErrMalformedSnapshot.
func DecodeSnapshot(state string, raw []byte) (Snapshot, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty payload", ErrMalformedSnapshot)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Snapshot{}, fmt.Errorf("%w: trailing data", ErrMalformedSnapshot)
	}

	snap := Snapshot{State: State(state), Payload: p}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
