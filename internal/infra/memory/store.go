package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-progression/internal/app"
	"quiz-progression/internal/domain"
)

// Store is an in-memory implementation of app.UnitOfWork and app.ProgressRepository.
// A unit of work reads a private copy of the committed data and keeps a log of
// its writes, which is replayed onto the latest committed data at commit. The
// store lock is held only for the copy and the replay, so participants never
// wait on each other's units of work; ordering for one participant comes from
// app.Locker.
type Store struct {
	mu    sync.Mutex
	data  *progress
	clock func() time.Time

	contentMu sync.RWMutex
	content   domain.Catalog
}

type pair struct {
	participant uuid.UUID
	level       uuid.UUID
}

type storedSnapshot struct {
	state   string
	payload []byte
}

type progress struct {
	participants map[uuid.UUID]domain.Participant
	byIdentity   map[string]uuid.UUID
	completions  map[pair]domain.CompletionRecord
	skips        map[pair]domain.SkipRecord
	snapshots    map[uuid.UUID]storedSnapshot
}

func newProgress() *progress {
	return &progress{
		participants: make(map[uuid.UUID]domain.Participant),
		byIdentity:   make(map[string]uuid.UUID),
		completions:  make(map[pair]domain.CompletionRecord),
		skips:        make(map[pair]domain.SkipRecord),
		snapshots:    make(map[uuid.UUID]storedSnapshot),
	}
}

func (p *progress) clone() *progress {
	c := newProgress()
	for k, v := range p.participants {
		c.participants[k] = v
	}
	for k, v := range p.byIdentity {
		c.byIdentity[k] = v
	}
	for k, v := range p.completions {
		c.completions[k] = v
	}
	for k, v := range p.skips {
		c.skips[k] = v
	}
	for k, v := range p.snapshots {
		c.snapshots[k] = v
	}
	return c
}

func NewStore() *Store {
	return &Store{data: newProgress(), clock: time.Now}
}

// Seed replaces the quiz content.
func (s *Store) Seed(_ context.Context, catalog domain.Catalog) error {
	prepared, err := catalog.Prepare(s.clock())
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	s.contentMu.Lock()
	s.content = prepared
	s.contentMu.Unlock()
	return nil
}

// LoadCatalog implements the catalog loader used by the content caches.
func (s *Store) LoadCatalog(_ context.Context) (domain.Catalog, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	out := domain.Catalog{
		Levels:    append([]domain.Level(nil), s.content.Levels...),
		Questions: append([]domain.Question(nil), s.content.Questions...),
	}
	return out, nil
}

// Do runs fn against a private copy of the progress data and commits its
// writes when fn returns nil. A panic or error leaves the store untouched.
func (s *Store) Do(ctx context.Context, _ string, fn func(ctx context.Context, repo app.ProgressRepository) error) error {
	ctx, err := app.EnterScope(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	tx := &tx{store: s, data: s.data.clone()}
	s.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx.writes)
}

// commit replays writes onto the committed data. Constraint checks run again
// against what other units of work committed meanwhile; on failure nothing is
// applied.
func (s *Store) commit(writes []mutation) error {
	if len(writes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.clone()
	for _, m := range writes {
		if err := m(next); err != nil {
			return err
		}
	}
	s.data = next
	return nil
}

// mutation is one write of a unit of work. It runs once against the private
// copy and again against the committed data at commit.
type mutation func(*progress) error

// tx is the repository view handed to one unit of work.
type tx struct {
	store  *Store
	data   *progress
	writes []mutation
}

func (t *tx) write(m mutation) error {
	if err := m(t.data); err != nil {
		return err
	}
	t.writes = append(t.writes, m)
	return nil
}

func (t *tx) Participant(_ context.Context, identityKey string) (domain.Participant, bool, error) {
	id, ok := t.data.byIdentity[identityKey]
	if !ok {
		return domain.Participant{}, false, nil
	}
	return t.data.participants[id], true, nil
}

func (t *tx) CreateParticipant(_ context.Context, profile domain.Profile) (domain.Participant, error) {
	p := domain.Participant{
		ID:          uuid.New(),
		IdentityKey: profile.IdentityKey,
		Username:    profile.Username,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		CreatedAt:   t.store.clock(),
	}
	err := t.write(func(d *progress) error {
		if _, dup := d.byIdentity[p.IdentityKey]; dup {
			return fmt.Errorf("%w: identity key %q exists", domain.ErrConstraintViolation, p.IdentityKey)
		}
		d.participants[p.ID] = p
		d.byIdentity[p.IdentityKey] = p.ID
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return p, nil
}

// updateParticipant writes fn's change to one participant.
func (t *tx) updateParticipant(id uuid.UUID, fn func(*domain.Participant)) error {
	return t.write(func(d *progress) error {
		p, ok := d.participants[id]
		if !ok {
			return domain.ErrParticipantNotFound
		}
		fn(&p)
		d.participants[id] = p
		return nil
	})
}

func (t *tx) SaveProfile(_ context.Context, participantID uuid.UUID, info domain.UserInfo) error {
	return t.updateParticipant(participantID, func(p *domain.Participant) {
		if info.Name != nil {
			p.FirstName = *info.Name
		}
		if info.Company != nil {
			p.Company = *info.Company
		}
		if info.Position != nil {
			p.Position = *info.Position
		}
	})
}

// AdjustBalance is replayed as a delta, so concurrent adjustments add up.
func (t *tx) AdjustBalance(_ context.Context, participantID uuid.UUID, delta int64) (int64, error) {
	err := t.updateParticipant(participantID, func(p *domain.Participant) {
		p.Balance += delta
	})
	if err != nil {
		return 0, err
	}
	return t.data.participants[participantID].Balance, nil
}

func (t *tx) SetCurrentLevel(_ context.Context, participantID, levelID uuid.UUID) error {
	return t.updateParticipant(participantID, func(p *domain.Participant) {
		p.CurrentLevelID = uuid.NullUUID{UUID: levelID, Valid: true}
	})
}

func (t *tx) levels() []domain.Level {
	t.store.contentMu.RLock()
	defer t.store.contentMu.RUnlock()
	return t.store.content.Levels
}

func (t *tx) FirstLevel(_ context.Context) (domain.Level, bool, error) {
	levels := t.levels()
	if len(levels) == 0 {
		return domain.Level{}, false, nil
	}
	return levels[0], true, nil
}

func (t *tx) NextLevel(_ context.Context, currentLevelID, participantID uuid.UUID) (domain.Level, bool, error) {
	levels := t.levels()
	rank, found := 0, false
	for _, l := range levels {
		if l.ID == currentLevelID {
			rank, found = l.Rank, true
			break
		}
	}
	if !found {
		return domain.Level{}, false, nil
	}
	for _, l := range levels {
		if l.Rank <= rank {
			continue
		}
		key := pair{participant: participantID, level: l.ID}
		if _, done := t.data.completions[key]; done {
			continue
		}
		if _, skipped := t.data.skips[key]; skipped {
			continue
		}
		return l, true, nil
	}
	return domain.Level{}, false, nil
}

func (t *tx) Level(_ context.Context, id uuid.UUID) (domain.Level, bool, error) {
	for _, l := range t.levels() {
		if l.ID == id {
			return l, true, nil
		}
	}
	return domain.Level{}, false, nil
}

func (t *tx) CountLevels(_ context.Context) (int, error) {
	return len(t.levels()), nil
}

func (t *tx) QuestionsForLevel(_ context.Context, levelID uuid.UUID) ([]domain.Question, error) {
	t.store.contentMu.RLock()
	defer t.store.contentMu.RUnlock()
	return t.store.content.QuestionsFor(levelID), nil
}

func (t *tx) Question(_ context.Context, id uuid.UUID) (domain.Question, bool, error) {
	t.store.contentMu.RLock()
	defer t.store.contentMu.RUnlock()
	q, ok := t.store.content.Question(id)
	return q, ok, nil
}

func (t *tx) HasCompletion(_ context.Context, participantID, levelID uuid.UUID) (bool, error) {
	_, ok := t.data.completions[pair{participant: participantID, level: levelID}]
	return ok, nil
}

func (t *tx) RecordCompletion(_ context.Context, participantID, levelID uuid.UUID, usedHint bool) error {
	key := pair{participant: participantID, level: levelID}
	rec := domain.CompletionRecord{
		ParticipantID: participantID,
		LevelID:       levelID,
		UsedHint:      usedHint,
		CreatedAt:     t.store.clock(),
	}
	return t.write(func(d *progress) error {
		if _, dup := d.completions[key]; dup {
			return fmt.Errorf("%w: completion for level %s exists", domain.ErrConstraintViolation, levelID)
		}
		d.completions[key] = rec
		return nil
	})
}

func (t *tx) HasSkip(_ context.Context, participantID, levelID uuid.UUID) (bool, error) {
	_, ok := t.data.skips[pair{participant: participantID, level: levelID}]
	return ok, nil
}

func (t *tx) RecordSkip(_ context.Context, participantID, levelID uuid.UUID) error {
	key := pair{participant: participantID, level: levelID}
	rec := domain.SkipRecord{ParticipantID: participantID, LevelID: levelID, CreatedAt: t.store.clock()}
	return t.write(func(d *progress) error {
		if _, dup := d.skips[key]; dup {
			return fmt.Errorf("%w: skip for level %s exists", domain.ErrConstraintViolation, levelID)
		}
		d.skips[key] = rec
		return nil
	})
}

func (t *tx) RemoveSkip(_ context.Context, participantID, levelID uuid.UUID) error {
	key := pair{participant: participantID, level: levelID}
	return t.write(func(d *progress) error {
		delete(d.skips, key)
		return nil
	})
}

func (t *tx) ListSkipped(_ context.Context, participantID uuid.UUID) ([]domain.Level, error) {
	var out []domain.Level
	for _, l := range t.levels() {
		if _, ok := t.data.skips[pair{participant: participantID, level: l.ID}]; ok {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (t *tx) ReadSnapshot(_ context.Context, participantID uuid.UUID) (domain.Snapshot, bool, error) {
	stored, ok := t.data.snapshots[participantID]
	if !ok {
		return domain.Snapshot{}, false, nil
	}
	snap, err := domain.DecodeSnapshot(stored.state, stored.payload)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (t *tx) WriteSnapshot(_ context.Context, participantID uuid.UUID, snap domain.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	raw, err := domain.EncodePayload(snap.Payload)
	if err != nil {
		return err
	}
	stored := storedSnapshot{state: string(snap.State), payload: raw}
	return t.write(func(d *progress) error {
		d.snapshots[participantID] = stored
		return nil
	})
}
