package app

import (
	"context"

	"quiz-progression/internal/domain"
)

func (t *turn) reply(ctx context.Context) (domain.Reply, error) {
	r := domain.Reply{
		State:   t.snap.State,
		Notices: t.notices,
		Balance: t.participant.Balance,
	}
	if !t.hasSnap {
		return r, nil
	}
	prompt, err := t.prompt(ctx)
	if err != nil {
		return domain.Reply{}, err
	}
	r.Prompt = prompt
	return r, nil
}

// prompt derives what to present from the snapshot alone, so a participant
// resuming after a restart sees exactly what they saw before.
func (t *turn) prompt(ctx context.Context) (domain.Prompt, error) {
	var out domain.Prompt
	switch t.snap.State {
	case domain.StateCompleted:
		return out, nil
	case domain.StateReturnToSkipped:
		skipped, err := t.listSkipped(ctx)
		if err != nil {
			return out, err
		}
		out.Choices = make([]string, 0, len(skipped))
		for _, l := range skipped {
			out.Choices = append(out.Choices, l.Name)
		}
		return out, nil
	}

	level, err := t.currentLevel(ctx)
	if err != nil {
		return out, err
	}
	id := level.ID
	out.LevelID = &id
	out.LevelName = level.Name

	switch t.snap.State {
	case domain.StateIntro:
		out.Text = level.IntroText
		out.Media = level.Media
	case domain.StateQuestion:
		q, err := t.currentQuestion(ctx)
		if err != nil {
			return out, err
		}
		qid := q.ID
		out.QuestionID = &qid
		out.Text = q.Text
		out.Media = q.Media
		out.HintAvailable = q.HasHint()
		out.CanSkip = true
	case domain.StateObjectRecognition:
		out.Text = level.IntroText
		out.Media = level.Media
		out.CanSkip = true
	case domain.StateConfirmInfo:
		info := t.snap.Payload.UserInfo
		out.UserInfo = &info
	}
	return out, nil
}
