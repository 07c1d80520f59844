package storage

import (
	"context"
	"database/sql"
	"errors"

	"nuclight.org/groupsync/internal/groups"
)

type GroupRepository struct {
	db *DB
}

func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

const groupColumns = `id, name, description, term, admin_id, password_hash, notification_setting, is_deleted, modified_at`

func (r *GroupRepository) GetGroup(ctx context.Context, groupID int64) (*groups.Group, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM study_groups WHERE id = ?`, groupID)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get group", err)
	}
	return g, nil
}

func (r *GroupRepository) ListGroups(ctx context.Context) ([]*groups.Group, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM study_groups ORDER BY id`)
	if err != nil {
		return nil, wrap("query groups", err)
	}
	defer rows.Close()

	var out []*groups.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, wrap("scan group", err)
		}
		out = append(out, g)
	}
	return out, wrap("query groups", rows.Err())
}

func (r *GroupRepository) CreateGroup(ctx context.Context, g *groups.Group) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO study_groups (id, name, description, term, admin_id, password_hash, notification_setting, is_deleted, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.Name, g.Description, g.Term, g.AdminID, g.PasswordHash, g.NotificationSetting, g.Deleted, nullTime(g.ModifiedAt))
	return wrap("insert group", err)
}

func (r *GroupRepository) UpdateGroup(ctx context.Context, g *groups.Group) error {
	_, err := r.db.db.ExecContext(ctx, `
		UPDATE study_groups
		SET name = ?, description = ?, term = ?, admin_id = ?, password_hash = ?, notification_setting = ?, is_deleted = ?, modified_at = ?
		WHERE id = ?
	`, g.Name, g.Description, g.Term, g.AdminID, g.PasswordHash, g.NotificationSetting, g.Deleted, nullTime(g.ModifiedAt), g.ID)
	return wrap("update group", err)
}

func (r *GroupRepository) MarkGroupDeleted(ctx context.Context, groupID int64) error {
	_, err := r.db.db.ExecContext(ctx, `UPDATE study_groups SET is_deleted = 1 WHERE id = ?`, groupID)
	return wrap("mark group deleted", err)
}

func (r *GroupRepository) SetNotificationSetting(ctx context.Context, groupID int64, setting groups.NotificationSetting) error {
	_, err := r.db.db.ExecContext(ctx, `UPDATE study_groups SET notification_setting = ? WHERE id = ?`, setting, groupID)
	return wrap("set notification setting", err)
}

// DeleteGroup removes the group row. Participants, conversations and ballots
// cascade; it fails while any conversation of the group still has messages.
func (r *GroupRepository) DeleteGroup(ctx context.Context, groupID int64) error {
	_, err := r.db.db.ExecContext(ctx, `DELETE FROM study_groups WHERE id = ?`, groupID)
	return wrap("delete group", err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(s scanner) (*groups.Group, error) {
	var g groups.Group
	var modifiedAt sql.NullTime
	err := s.Scan(&g.ID, &g.Name, &g.Description, &g.Term, &g.AdminID, &g.PasswordHash,
		&g.NotificationSetting, &g.Deleted, &modifiedAt)
	if err != nil {
		return nil, err
	}
	g.ModifiedAt = modifiedAt.Time
	return &g, nil
}
