package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Catalog is the read-mostly quiz content: levels in rank order plus their questions.
type Catalog struct {
	Levels    []Level    `json:"levels"`
	Questions []Question `json:"questions"`
}

// Level looks up a level by id.
func (c Catalog) Level(id uuid.UUID) (Level, bool) {
	for _, l := range c.Levels {
		if l.ID == id {
			return l, true
		}
	}
	return Level{}, false
}

// Question looks up a question by id.
func (c Catalog) Question(id uuid.UUID) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// QuestionsFor returns the questions of a level in creation order.
func (c Catalog) QuestionsFor(levelID uuid.UUID) []Question {
	var out []Question
	for _, q := range c.Questions {
		if q.LevelID == levelID {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Prepare validates the catalog and fills what operators may leave out: missing
// ids are generated and question creation times follow their listed order
// starting at now. Levels come back sorted by rank.
func (c Catalog) Prepare(now time.Time) (Catalog, error) {
	out := Catalog{
		Levels:    make([]Level, len(c.Levels)),
		Questions: make([]Question, len(c.Questions)),
	}
	copy(out.Levels, c.Levels)
	copy(out.Questions, c.Questions)

	ranks := make(map[int]string, len(out.Levels))
	names := make(map[string]int, len(out.Levels))
	ids := make(map[uuid.UUID]bool, len(out.Levels))
	for i := range out.Levels {
		l := &out.Levels[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.Kind == "" {
			l.Kind = KindQuestion
		}
		if !l.Kind.Valid() {
			return Catalog{}, fmt.Errorf("level %q: unknown kind %q", l.Name, l.Kind)
		}
		if l.Name == "" {
			return Catalog{}, fmt.Errorf("level with rank %d: empty name", l.Rank)
		}
		if other, dup := ranks[l.Rank]; dup {
			return Catalog{}, fmt.Errorf("levels %q and %q share rank %d", other, l.Name, l.Rank)
		}
		key := NormalizeAnswer(l.Name)
		if rank, dup := names[key]; dup {
			return Catalog{}, fmt.Errorf("level name %q used by ranks %d and %d", l.Name, rank, l.Rank)
		}
		ranks[l.Rank] = l.Name
		names[key] = l.Rank
		ids[l.ID] = true
	}
	sort.Slice(out.Levels, func(i, j int) bool { return out.Levels[i].Rank < out.Levels[j].Rank })

	for i := range out.Questions {
		q := &out.Questions[i]
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		if !ids[q.LevelID] {
			return Catalog{}, fmt.Errorf("question %q: unknown level %s", q.Text, q.LevelID)
		}
		if q.CreatedAt.IsZero() {
			q.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		}
	}
	return out, nil
}
