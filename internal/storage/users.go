package storage

import (
	"context"
	"database/sql"
	"errors"

	"nuclight.org/groupsync/internal/groups"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := r.db.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("check user", err)
	}
	return true, nil
}

// CreateUser inserts a user. An existing row with the same id is kept as is.
func (r *UserRepository) CreateUser(ctx context.Context, u *groups.User) error {
	_, err := r.db.db.ExecContext(ctx, `INSERT INTO users (id, name) VALUES (?, ?)`, u.ID, u.Name)
	if isUniqueConstraintError(err) {
		return nil
	}
	return wrap("insert user", err)
}
