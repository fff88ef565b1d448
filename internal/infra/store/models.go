package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"quiz-progression/internal/domain"
)

type participantModel struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID             uuid.UUID     `bun:"id,pk,type:uuid"`
	IdentityKey    string        `bun:"identity_key,notnull,unique"`
	Username       string        `bun:"username,notnull"`
	FirstName      string        `bun:"first_name,notnull"`
	LastName       string        `bun:"last_name,notnull"`
	Company        string        `bun:"company,notnull"`
	Position       string        `bun:"position,notnull"`
	Balance        int64         `bun:"balance,notnull"`
	CurrentLevelID uuid.NullUUID `bun:"current_level_id,type:uuid"`
	CreatedAt      time.Time     `bun:"created_at,notnull"`
}

func (m participantModel) toDomain() domain.Participant {
	return domain.Participant{
		ID:             m.ID,
		IdentityKey:    m.IdentityKey,
		Username:       m.Username,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Company:        m.Company,
		Position:       m.Position,
		Balance:        m.Balance,
		CurrentLevelID: m.CurrentLevelID,
		CreatedAt:      m.CreatedAt,
	}
}

type levelModel struct {
	bun.BaseModel `bun:"table:levels,alias:l"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Rank      int       `bun:"rank,notnull,unique"`
	Name      string    `bun:"name,notnull,unique"`
	IntroText string    `bun:"intro_text,type:text,notnull"`
	Media     string    `bun:"media,notnull"`
	Reward    int64     `bun:"reward,notnull"`
	Kind      string    `bun:"kind,notnull"`
}

func newLevelModel(l domain.Level) levelModel {
	return levelModel{
		ID:        l.ID,
		Rank:      l.Rank,
		Name:      l.Name,
		IntroText: l.IntroText,
		Media:     l.Media,
		Reward:    l.Reward,
		Kind:      string(l.Kind),
	}
}

func (m levelModel) toDomain() domain.Level {
	return domain.Level{
		ID:        m.ID,
		Rank:      m.Rank,
		Name:      m.Name,
		IntroText: m.IntroText,
		Media:     m.Media,
		Reward:    m.Reward,
		Kind:      domain.LevelKind(m.Kind),
	}
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	LevelID   uuid.UUID `bun:"level_id,notnull,type:uuid"`
	Text      string    `bun:"text,type:text,notnull"`
	Hint      string    `bun:"hint,type:text,notnull"`
	Answer    string    `bun:"answer,notnull"`
	Media     string    `bun:"media,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func newQuestionModel(q domain.Question) questionModel {
	return questionModel{
		ID:        q.ID,
		LevelID:   q.LevelID,
		Text:      q.Text,
		Hint:      q.Hint,
		Answer:    q.Answer,
		Media:     q.Media,
		CreatedAt: q.CreatedAt.UTC(),
	}
}

func (m questionModel) toDomain() domain.Question {
	return domain.Question{
		ID:        m.ID,
		LevelID:   m.LevelID,
		Text:      m.Text,
		Hint:      m.Hint,
		Answer:    m.Answer,
		Media:     m.Media,
		CreatedAt: m.CreatedAt,
	}
}

type completionModel struct {
	bun.BaseModel `bun:"table:completion_records,alias:cr"`

	ParticipantID uuid.UUID `bun:"participant_id,pk,type:uuid"`
	LevelID       uuid.UUID `bun:"level_id,pk,type:uuid"`
	UsedHint      bool      `bun:"used_hint,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

type skipModel struct {
	bun.BaseModel `bun:"table:skip_records,alias:sr"`

	ParticipantID uuid.UUID `bun:"participant_id,pk,type:uuid"`
	LevelID       uuid.UUID `bun:"level_id,pk,type:uuid"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// snapshotModel keeps the payload as text so the encoded bytes come back unchanged.
type snapshotModel struct {
	bun.BaseModel `bun:"table:state_snapshots,alias:ss"`

	ParticipantID uuid.UUID `bun:"participant_id,pk,type:uuid"`
	State         string    `bun:"state,notnull"`
	Payload       string    `bun:"payload,type:text,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}
