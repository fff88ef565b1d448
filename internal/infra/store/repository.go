package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"quiz-progression/internal/domain"
)

// Repository implements app.ProgressRepository on the transaction opened by
// UnitOfWork.Do.
type Repository struct {
	db  bun.IDB
	now func() time.Time
}

func (r *Repository) Participant(ctx context.Context, identityKey string) (domain.Participant, bool, error) {
	var m participantModel
	err := r.db.NewSelect().Model(&m).Where("p.identity_key = ?", identityKey).Limit(1).Scan(ctx)
	if isNoRows(err) {
		return domain.Participant{}, false, nil
	}
	if err != nil {
		return domain.Participant{}, false, wrap("select participant", err)
	}
	return m.toDomain(), true, nil
}

func (r *Repository) CreateParticipant(ctx context.Context, profile domain.Profile) (domain.Participant, error) {
	m := participantModel{
		ID:          uuid.New(),
		IdentityKey: profile.IdentityKey,
		Username:    profile.Username,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		CreatedAt:   r.now().UTC(),
	}
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Participant{}, wrap("insert participant", err)
	}
	return m.toDomain(), nil
}

func (r *Repository) SaveProfile(ctx context.Context, participantID uuid.UUID, info domain.UserInfo) error {
	q := r.db.NewUpdate().Model((*participantModel)(nil)).Where("id = ?", participantID)
	set := false
	if info.Name != nil {
		q = q.Set("first_name = ?", *info.Name)
		set = true
	}
	if info.Company != nil {
		q = q.Set("company = ?", *info.Company)
		set = true
	}
	if info.Position != nil {
		q = q.Set("position = ?", *info.Position)
		set = true
	}
	if !set {
		return nil
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return wrap("save profile", err)
	}
	return expectRow(res, domain.ErrParticipantNotFound)
}

func (r *Repository) AdjustBalance(ctx context.Context, participantID uuid.UUID, delta int64) (int64, error) {
	res, err := r.db.NewUpdate().Model((*participantModel)(nil)).
		Set("balance = balance + ?", delta).
		Where("id = ?", participantID).
		Exec(ctx)
	if err != nil {
		return 0, wrap("adjust balance", err)
	}
	if err := expectRow(res, domain.ErrParticipantNotFound); err != nil {
		return 0, err
	}
	var balance int64
	err = r.db.NewSelect().Model((*participantModel)(nil)).
		Column("balance").
		Where("id = ?", participantID).
		Scan(ctx, &balance)
	if err != nil {
		return 0, wrap("read balance", err)
	}
	return balance, nil
}

func (r *Repository) SetCurrentLevel(ctx context.Context, participantID, levelID uuid.UUID) error {
	res, err := r.db.NewUpdate().Model((*participantModel)(nil)).
		Set("current_level_id = ?", levelID).
		Where("id = ?", participantID).
		Exec(ctx)
	if err != nil {
		return wrap("set current level", err)
	}
	return expectRow(res, domain.ErrParticipantNotFound)
}

func (r *Repository) FirstLevel(ctx context.Context) (domain.Level, bool, error) {
	return r.oneLevel(ctx, "first level", r.db.NewSelect())
}

// NextLevel returns the lowest-ranked level above the current one that the
// participant has neither completed nor skipped.
func (r *Repository) NextLevel(ctx context.Context, currentLevelID, participantID uuid.UUID) (domain.Level, bool, error) {
	q := r.db.NewSelect().
		Where("l.rank > (SELECT cur.rank FROM levels AS cur WHERE cur.id = ?)", currentLevelID).
		Where("l.id NOT IN (SELECT cr.level_id FROM completion_records AS cr WHERE cr.participant_id = ?)", participantID).
		Where("l.id NOT IN (SELECT sr.level_id FROM skip_records AS sr WHERE sr.participant_id = ?)", participantID)
	return r.oneLevel(ctx, "next level", q)
}

func (r *Repository) oneLevel(ctx context.Context, op string, q *bun.SelectQuery) (domain.Level, bool, error) {
	var m levelModel
	err := q.Model(&m).OrderExpr("l.rank ASC").Limit(1).Scan(ctx)
	if isNoRows(err) {
		return domain.Level{}, false, nil
	}
	if err != nil {
		return domain.Level{}, false, wrap(op, err)
	}
	return m.toDomain(), true, nil
}

func (r *Repository) Level(ctx context.Context, id uuid.UUID) (domain.Level, bool, error) {
	var m levelModel
	err := r.db.NewSelect().Model(&m).Where("l.id = ?", id).Scan(ctx)
	if isNoRows(err) {
		return domain.Level{}, false, nil
	}
	if err != nil {
		return domain.Level{}, false, wrap("select level", err)
	}
	return m.toDomain(), true, nil
}

func (r *Repository) CountLevels(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().Model((*levelModel)(nil)).Count(ctx)
	if err != nil {
		return 0, wrap("count levels", err)
	}
	return n, nil
}

func (r *Repository) QuestionsForLevel(ctx context.Context, levelID uuid.UUID) ([]domain.Question, error) {
	var rows []questionModel
	err := r.db.NewSelect().Model(&rows).
		Where("q.level_id = ?", levelID).
		OrderExpr("q.created_at ASC, q.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("select questions", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (r *Repository) Question(ctx context.Context, id uuid.UUID) (domain.Question, bool, error) {
	var m questionModel
	err := r.db.NewSelect().Model(&m).Where("q.id = ?", id).Scan(ctx)
	if isNoRows(err) {
		return domain.Question{}, false, nil
	}
	if err != nil {
		return domain.Question{}, false, wrap("select question", err)
	}
	return m.toDomain(), true, nil
}

func (r *Repository) HasCompletion(ctx context.Context, participantID, levelID uuid.UUID) (bool, error) {
	ok, err := r.db.NewSelect().Model((*completionModel)(nil)).
		Where("participant_id = ? AND level_id = ?", participantID, levelID).
		Exists(ctx)
	if err != nil {
		return false, wrap("check completion", err)
	}
	return ok, nil
}

func (r *Repository) RecordCompletion(ctx context.Context, participantID, levelID uuid.UUID, usedHint bool) error {
	m := completionModel{
		ParticipantID: participantID,
		LevelID:       levelID,
		UsedHint:      usedHint,
		CreatedAt:     r.now().UTC(),
	}
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	return wrap("insert completion", err)
}

func (r *Repository) HasSkip(ctx context.Context, participantID, levelID uuid.UUID) (bool, error) {
	ok, err := r.db.NewSelect().Model((*skipModel)(nil)).
		Where("participant_id = ? AND level_id = ?", participantID, levelID).
		Exists(ctx)
	if err != nil {
		return false, wrap("check skip", err)
	}
	return ok, nil
}

func (r *Repository) RecordSkip(ctx context.Context, participantID, levelID uuid.UUID) error {
	m := skipModel{ParticipantID: participantID, LevelID: levelID, CreatedAt: r.now().UTC()}
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	return wrap("insert skip", err)
}

func (r *Repository) RemoveSkip(ctx context.Context, participantID, levelID uuid.UUID) error {
	_, err := r.db.NewDelete().Model((*skipModel)(nil)).
		Where("participant_id = ? AND level_id = ?", participantID, levelID).
		Exec(ctx)
	return wrap("delete skip", err)
}

func (r *Repository) ListSkipped(ctx context.Context, participantID uuid.UUID) ([]domain.Level, error) {
	var rows []levelModel
	err := r.db.NewSelect().Model(&rows).
		Where("l.id IN (SELECT sr.level_id FROM skip_records AS sr WHERE sr.participant_id = ?)", participantID).
		OrderExpr("l.rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list skipped", err)
	}
	out := make([]domain.Level, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (r *Repository) ReadSnapshot(ctx context.Context, participantID uuid.UUID) (domain.Snapshot, bool, error) {
	var m snapshotModel
	err := r.db.NewSelect().Model(&m).Where("ss.participant_id = ?", participantID).Scan(ctx)
	if isNoRows(err) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, wrap("select snapshot", err)
	}
	snap, err := domain.DecodeSnapshot(m.State, []byte(m.Payload))
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, true, nil
}

// WriteSnapshot upserts the participant's single snapshot row.
func (r *Repository) WriteSnapshot(ctx context.Context, participantID uuid.UUID, snap domain.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	raw, err := domain.EncodePayload(snap.Payload)
	if err != nil {
		return err
	}
	m := snapshotModel{
		ParticipantID: participantID,
		State:         string(snap.State),
		Payload:       string(raw),
		UpdatedAt:     r.now().UTC(),
	}
	_, err = r.db.NewInsert().Model(&m).
		On("CONFLICT (participant_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return wrap("upsert snapshot", err)
}

func expectRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("rows affected", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
