package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogPrepare(t *testing.T) {
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	second := uuid.New()
	cat := Catalog{
		Levels: []Level{
			{ID: second, Rank: 20, Name: "Second"},
			{Rank: 10, Name: "First", Kind: KindIntro},
		},
		Questions: []Question{
			{LevelID: second, Text: "b"},
			{LevelID: second, Text: "a"},
		},
	}

	got, err := cat.Prepare(now)
	require.NoError(t, err)

	require.Len(t, got.Levels, 2)
	assert.Equal(t, "First", got.Levels[0].Name)
	assert.NotEqual(t, uuid.Nil, got.Levels[0].ID)
	assert.Equal(t, KindQuestion, got.Levels[1].Kind)

	qs := got.QuestionsFor(second)
	require.Len(t, qs, 2)
	assert.Equal(t, "b", qs[0].Text)
	assert.Equal(t, now, qs[0].CreatedAt)
	assert.Equal(t, now.Add(time.Millisecond), qs[1].CreatedAt)

	// the input is left untouched
	assert.Equal(t, uuid.Nil, cat.Levels[1].ID)

	l, ok := got.Level(second)
	require.True(t, ok)
	assert.Equal(t, 20, l.Rank)
	_, ok = got.Question(uuid.New())
	assert.False(t, ok)
}

func TestCatalogPrepareRejectsInvalidContent(t *testing.T) {
	orphan := uuid.New()
	cases := map[string]Catalog{
		"duplicate rank": {Levels: []Level{{Rank: 1, Name: "a"}, {Rank: 1, Name: "b"}}},
		"duplicate name": {Levels: []Level{{Rank: 1, Name: "Intro"}, {Rank: 2, Name: " intro "}}},
		"empty name":     {Levels: []Level{{Rank: 1}}},
		"unknown kind":   {Levels: []Level{{Rank: 1, Name: "a", Kind: "quiz"}}},
		"orphan":         {Levels: []Level{{Rank: 1, Name: "a"}}, Questions: []Question{{LevelID: orphan}}},
	}
	for name, cat := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := cat.Prepare(time.Now())
			assert.Error(t, err)
		})
	}
}
