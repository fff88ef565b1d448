package domain

import (
	"time"

	"github.com/google/uuid"
)

// LevelKind selects the interaction a level runs.
type LevelKind string

const (
	KindIntro             LevelKind = "intro"
	KindInfoCollection    LevelKind = "info_collection"
	KindObjectRecognition LevelKind = "object_recognition"
	KindQuestion          LevelKind = "question"
)

// Valid reports whether k is one of the known level kinds.
func (k LevelKind) Valid() bool {
	switch k {
	case KindIntro, KindInfoCollection, KindObjectRecognition, KindQuestion:
		return true
	}
	return false
}

// Participant is one remote user progressing through the quiz.
type Participant struct {
	ID             uuid.UUID
	IdentityKey    string
	Username       string
	FirstName      string
	LastName       string
	Company        string
	Position       string
	Balance        int64
	CurrentLevelID uuid.NullUUID
	CreatedAt      time.Time
}

// Profile carries the transport-supplied identity of a participant on first contact.
type Profile struct {
	IdentityKey string `json:"identityKey"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

// Level is an ordered unit of quiz content. Rank is unique and totally orders levels.
type Level struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Rank      int       `json:"rank" yaml:"rank"`
	Name      string    `json:"name" yaml:"name"`
	IntroText string    `json:"introText" yaml:"intro_text"`
	Media     string    `json:"media,omitempty" yaml:"media"`
	Reward    int64     `json:"reward" yaml:"reward"`
	Kind      LevelKind `json:"kind" yaml:"kind"`
}

// Question belongs to exactly one level.
type Question struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	LevelID   uuid.UUID `json:"levelId" yaml:"-"`
	Text      string    `json:"text" yaml:"text"`
	Hint      string    `json:"hint,omitempty" yaml:"hint"`
	Answer    string    `json:"answer" yaml:"answer"`
	Media     string    `json:"media,omitempty" yaml:"media"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
}

// HasHint reports whether the question carries a non-blank hint.
func (q Question) HasHint() bool {
	return NormalizeAnswer(q.Hint) != ""
}

// CompletionRecord marks that a participant finished a level.
type CompletionRecord struct {
	ParticipantID uuid.UUID
	LevelID       uuid.UUID
	UsedHint      bool
	CreatedAt     time.Time
}

// SkipRecord marks that a participant bypassed a level.
type SkipRecord struct {
	ParticipantID uuid.UUID
	LevelID       uuid.UUID
	CreatedAt     time.Time
}
