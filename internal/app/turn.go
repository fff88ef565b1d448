package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"quiz-progression/internal/domain"
)

// turn is the state of one event being handled inside a unit of work.
type turn struct {
	engine *Engine
	repo   ProgressRepository

	participant domain.Participant
	snap        domain.Snapshot
	hasSnap     bool
	dirty       bool
	notices     []domain.Notice

	cat       *domain.Catalog
	noCatalog bool
	skipped   []domain.Level
}

func (t *turn) run(ctx context.Context, identityKey string, ev domain.Event) (domain.Reply, error) {
	p, ok, err := t.repo.Participant(ctx, identityKey)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("load participant: %w", err)
	}
	if !ok {
		profile := ev.Profile
		profile.IdentityKey = identityKey
		if p, err = t.repo.CreateParticipant(ctx, profile); err != nil {
			return domain.Reply{}, fmt.Errorf("create participant: %w", err)
		}
	}
	t.participant = p

	snap, ok, err := t.repo.ReadSnapshot(ctx, p.ID)
	switch {
	case err != nil && errors.Is(err, domain.ErrMalformedSnapshot) && ev.Kind == domain.EventStart:
		t.engine.log.WarnContext(ctx, "rebuilding malformed snapshot", slog.Any("error", err))
		err = t.rebuild(ctx)
	case err != nil:
		return domain.Reply{}, fmt.Errorf("read snapshot: %w", err)
	case !ok:
		err = t.begin(ctx)
	default:
		t.snap = snap
		t.hasSnap = true
		err = t.apply(ctx, ev)
	}
	if err != nil {
		return domain.Reply{}, err
	}

	if t.dirty {
		if err := t.repo.WriteSnapshot(ctx, p.ID, t.snap); err != nil {
			return domain.Reply{}, fmt.Errorf("write snapshot: %w", err)
		}
	}
	return t.reply(ctx)
}

// begin places a participant without a snapshot on the first level.
func (t *turn) begin(ctx context.Context) error {
	first, ok, err := t.repo.FirstLevel(ctx)
	if err != nil {
		return fmt.Errorf("first level: %w", err)
	}
	if !ok {
		t.engine.log.WarnContext(ctx, "no levels configured", slog.Any("error", domain.ErrNoLevels))
		t.notice(domain.NoticeNoContent)
		return nil
	}
	t.snap = domain.Snapshot{}
	t.hasSnap = true
	return t.dispatch(ctx, first)
}

// rebuild restarts the participant's current level after the stored snapshot
// failed validation.
func (t *turn) rebuild(ctx context.Context) error {
	if !t.participant.CurrentLevelID.Valid {
		return t.begin(ctx)
	}
	level, ok, err := t.level(ctx, t.participant.CurrentLevelID.UUID)
	if err != nil {
		return err
	}
	if !ok {
		return t.begin(ctx)
	}
	t.snap = domain.Snapshot{}
	t.hasSnap = true
	return t.dispatch(ctx, level)
}

func (t *turn) apply(ctx context.Context, ev domain.Event) error {
	if ev.Kind == domain.EventStart {
		t.notice(domain.NoticeResumed)
		return nil
	}

	switch t.snap.State {
	case domain.StateIntro:
		if ev.Kind == domain.EventAdvance {
			return t.leaveIntro(ctx)
		}
	case domain.StateAwaitingAdvance:
		if ev.Kind == domain.EventAdvance {
			level, err := t.currentLevel(ctx)
			if err != nil {
				return err
			}
			return t.dispatch(ctx, level)
		}
	case domain.StateQuestion:
		switch ev.Kind {
		case domain.EventAnswer:
			return t.answer(ctx, ev.Text)
		case domain.EventHint:
			return t.hint(ctx)
		case domain.EventSkip:
			return t.skip(ctx)
		}
	case domain.StateObjectRecognition:
		switch ev.Kind {
		case domain.EventPhoto:
			return t.photo(ctx, ev.PhotoRef)
		case domain.EventSkip:
			return t.skip(ctx)
		}
	case domain.StateIntermediate:
		if ev.Kind == domain.EventAdvance {
			return t.advanceFrom(ctx, *t.snap.Payload.CurrentLevelID)
		}
	case domain.StateCollectName, domain.StateCollectCompany, domain.StateCollectPosition:
		if ev.Kind == domain.EventCollectField {
			return t.collect(ev.Text)
		}
	case domain.StateConfirmInfo:
		if ev.Kind == domain.EventConfirm {
			return t.confirm(ctx, ev.Yes)
		}
	case domain.StateReturnToSkipped:
		switch ev.Kind {
		case domain.EventSelectSkipped:
			return t.resume(ctx, ev.Text)
		case domain.EventAdvance:
			return nil
		}
	}

	t.notice(domain.NoticeUnexpectedEvent)
	return nil
}

func (t *turn) leaveIntro(ctx context.Context) error {
	level, err := t.currentLevel(ctx)
	if err != nil {
		return err
	}
	if _, err := t.complete(ctx, level, false); err != nil {
		return err
	}
	t.snap.Payload.IntroLevelsCompleted++
	t.dirty = true

	next, ok, err := t.repo.NextLevel(ctx, level.ID, t.participant.ID)
	if err != nil {
		return fmt.Errorf("next level: %w", err)
	}
	if !ok {
		return t.finish(ctx)
	}
	if next.Kind == domain.KindIntro {
		return t.dispatch(ctx, next)
	}

	// Park on the first playable level until the participant asks to begin.
	if err := t.setCurrentLevel(ctx, next.ID); err != nil {
		return err
	}
	t.snap.Payload.CurrentQuestionID = nil
	t.transition(domain.StateAwaitingAdvance)
	return nil
}

func (t *turn) answer(ctx context.Context, text string) error {
	q, err := t.currentQuestion(ctx)
	if err != nil {
		return err
	}
	if !domain.AnswersMatch(text, q.Answer) {
		t.notice(domain.NoticeIncorrect)
		return nil
	}

	level, err := t.currentLevel(ctx)
	if err != nil {
		return err
	}
	granted, err := t.complete(ctx, level, t.snap.Payload.HintUsed)
	if err != nil {
		return err
	}
	if granted {
		t.notices = append(t.notices, domain.Notice{Kind: domain.NoticeCorrect, Reward: level.Reward})
	}
	t.snap.Payload.CurrentQuestionID = nil
	t.snap.Payload.HintUsed = false
	t.transition(domain.StateIntermediate)
	return nil
}

func (t *turn) hint(ctx context.Context) error {
	q, err := t.currentQuestion(ctx)
	if err != nil {
		return err
	}
	if !q.HasHint() {
		t.notice(domain.NoticeHintUnavailable)
		return nil
	}
	t.notices = append(t.notices, domain.Notice{Kind: domain.NoticeHint, Text: q.Hint})
	if !t.snap.Payload.HintUsed {
		t.snap.Payload.HintUsed = true
		t.dirty = true
	}
	return nil
}

func (t *turn) skip(ctx context.Context) error {
	level, err := t.currentLevel(ctx)
	if err != nil {
		return err
	}
	completed, err := t.repo.HasCompletion(ctx, t.participant.ID, level.ID)
	if err != nil {
		return fmt.Errorf("check completion: %w", err)
	}
	if !completed {
		skipped, err := t.repo.HasSkip(ctx, t.participant.ID, level.ID)
		if err != nil {
			return fmt.Errorf("check skip: %w", err)
		}
		if !skipped {
			if err := t.repo.RecordSkip(ctx, t.participant.ID, level.ID); err != nil {
				return fmt.Errorf("record skip: %w", err)
			}
			t.skipped = nil
		}
	}
	t.notice(domain.NoticeSkipped)
	return t.advanceFrom(ctx, level.ID)
}

func (t *turn) photo(ctx context.Context, ref string) error {
	level, err := t.currentLevel(ctx)
	if err != nil {
		return err
	}
	accepted := false
	if t.engine.recognizer != nil {
		if accepted, err = t.engine.recognizer.Recognize(ctx, level, ref); err != nil {
			return fmt.Errorf("recognize photo: %w", err)
		}
	}
	if !accepted {
		t.notice(domain.NoticePhotoRejected)
		return nil
	}

	t.notice(domain.NoticePhotoAccepted)
	granted, err := t.complete(ctx, level, false)
	if err != nil {
		return err
	}
	if granted && level.Reward != 0 {
		t.notices = append(t.notices, domain.Notice{Kind: domain.NoticeCorrect, Reward: level.Reward})
	}
	t.transition(domain.StateIntermediate)
	return nil
}

func (t *turn) collect(text string) error {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "/") {
		t.notice(domain.NoticeInvalidInput)
		return nil
	}

	info := &t.snap.Payload.UserInfo
	switch t.snap.State {
	case domain.StateCollectName:
		info.Name = &text
		t.transition(domain.StateCollectCompany)
	case domain.StateCollectCompany:
		info.Company = &text
		t.transition(domain.StateCollectPosition)
	case domain.StateCollectPosition:
		info.Position = &text
		t.transition(domain.StateConfirmInfo)
	}
	return nil
}

func (t *turn) confirm(ctx context.Context, yes bool) error {
	info := t.snap.Payload.UserInfo
	if !yes || !info.Complete() {
		if yes {
			t.notice(domain.NoticeInvalidInput)
		}
		t.snap.Payload.UserInfo = domain.UserInfo{}
		t.transition(domain.StateCollectName)
		return nil
	}

	level, err := t.currentLevel(ctx)
	if err != nil {
		return err
	}
	if err := t.repo.SaveProfile(ctx, t.participant.ID, info); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	t.notice(domain.NoticeInfoSaved)

	granted, err := t.complete(ctx, level, false)
	if err != nil {
		return err
	}
	if granted && level.Reward != 0 {
		t.notices = append(t.notices, domain.Notice{Kind: domain.NoticeCorrect, Reward: level.Reward})
	}
	return t.advanceFrom(ctx, level.ID)
}

// resume takes a level out of the skipped set and starts it again.
func (t *turn) resume(ctx context.Context, name string) error {
	skipped, err := t.listSkipped(ctx)
	if err != nil {
		return err
	}
	want := domain.NormalizeAnswer(name)
	for _, level := range skipped {
		if domain.NormalizeAnswer(level.Name) != want {
			continue
		}
		if err := t.repo.RemoveSkip(ctx, t.participant.ID, level.ID); err != nil {
			return fmt.Errorf("remove skip: %w", err)
		}
		t.skipped = nil
		return t.dispatch(ctx, level)
	}
	t.notice(domain.NoticeUnknownLevel)
	return nil
}

// complete grants the level reward and records the completion, once. It
// reports whether anything was granted.
func (t *turn) complete(ctx context.Context, level domain.Level, usedHint bool) (bool, error) {
	done, err := t.repo.HasCompletion(ctx, t.participant.ID, level.ID)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	if done {
		t.notice(domain.NoticeAlreadyCompleted)
		return false, nil
	}
	if level.Reward != 0 {
		balance, err := t.repo.AdjustBalance(ctx, t.participant.ID, level.Reward)
		if err != nil {
			return false, fmt.Errorf("adjust balance: %w", err)
		}
		t.participant.Balance = balance
	}
	if err := t.repo.RecordCompletion(ctx, t.participant.ID, level.ID, usedHint); err != nil {
		return false, fmt.Errorf("record completion: %w", err)
	}
	return true, nil
}

func (t *turn) transition(s domain.State) {
	if t.snap.State != "" && t.snap.State != s {
		t.snap.Payload.PreviousState = t.snap.State
	}
	t.snap.State = s
	t.dirty = true
}

func (t *turn) setCurrentLevel(ctx context.Context, levelID uuid.UUID) error {
	id := levelID
	t.snap.Payload.CurrentLevelID = &id
	cur := t.participant.CurrentLevelID
	if cur.Valid && cur.UUID == levelID {
		return nil
	}
	if err := t.repo.SetCurrentLevel(ctx, t.participant.ID, levelID); err != nil {
		return fmt.Errorf("set current level: %w", err)
	}
	t.participant.CurrentLevelID = uuid.NullUUID{UUID: levelID, Valid: true}
	return nil
}

func (t *turn) notice(kind domain.NoticeKind) {
	t.notices = append(t.notices, domain.Notice{Kind: kind})
}
