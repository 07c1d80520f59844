package storage

import (
	"context"
	"database/sql"
	"errors"

	"nuclight.org/groupsync/internal/groups"
)

type ParticipantRepository struct {
	db *DB
}

func NewParticipantRepository(db *DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) ListParticipants(ctx context.Context, groupID int64) ([]*groups.Participant, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT group_id, user_id, is_active FROM participants
		WHERE group_id = ?
		ORDER BY user_id
	`, groupID)
	if err != nil {
		return nil, wrap("query participants", err)
	}
	defer rows.Close()

	var out []*groups.Participant
	for rows.Next() {
		var p groups.Participant
		if err := rows.Scan(&p.GroupID, &p.UserID, &p.Active); err != nil {
			return nil, wrap("scan participant", err)
		}
		out = append(out, &p)
	}
	return out, wrap("query participants", rows.Err())
}

func (r *ParticipantRepository) GetParticipant(ctx context.Context, groupID, userID int64) (*groups.Participant, error) {
	var p groups.Participant
	err := r.db.db.QueryRowContext(ctx, `
		SELECT group_id, user_id, is_active FROM participants
		WHERE group_id = ? AND user_id = ?
	`, groupID, userID).Scan(&p.GroupID, &p.UserID, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get participant", err)
	}
	return &p, nil
}

func (r *ParticipantRepository) CreateParticipants(ctx context.Context, ps []*groups.Participant) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO participants (group_id, user_id, is_active) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range ps {
			if _, err := stmt.ExecContext(ctx, p.GroupID, p.UserID, p.Active); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("insert participants", err)
}

func (r *ParticipantRepository) SetParticipantActive(ctx context.Context, groupID, userID int64, active bool) error {
	_, err := r.db.db.ExecContext(ctx, `
		UPDATE participants SET is_active = ? WHERE group_id = ? AND user_id = ?
	`, active, groupID, userID)
	return wrap("update participant", err)
}
