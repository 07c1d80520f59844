package storage

import (
	"context"
	"database/sql"
	"errors"

	"nuclight.org/groupsync/internal/groups"
)

type VoteRepository struct {
	db *DB
}

func NewVoteRepository(db *DB) *VoteRepository {
	return &VoteRepository{db: db}
}

func (r *VoteRepository) ListVoters(ctx context.Context, optionID int64) ([]int64, error) {
	return r.queryIDs(ctx, "query voters", `
		SELECT user_id FROM votes WHERE option_id = ? ORDER BY user_id
	`, optionID)
}

func (r *VoteRepository) HasVote(ctx context.Context, optionID, userID int64) (bool, error) {
	var one int
	err := r.db.db.QueryRowContext(ctx, `
		SELECT 1 FROM votes WHERE option_id = ? AND user_id = ?
	`, optionID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("check vote", err)
	}
	return true, nil
}

// ListUserVotes returns the options of a ballot the user voted for.
func (r *VoteRepository) ListUserVotes(ctx context.Context, ballotID, userID int64) ([]int64, error) {
	return r.queryIDs(ctx, "query user votes", `
		SELECT v.option_id
		FROM votes v
		JOIN ballot_options o ON o.id = v.option_id
		WHERE o.ballot_id = ? AND v.user_id = ?
		ORDER BY v.option_id
	`, ballotID, userID)
}

// CreateVote records a vote. Recording an existing vote again is a no-op.
func (r *VoteRepository) CreateVote(ctx context.Context, v groups.Vote) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO votes (option_id, user_id) VALUES (?, ?)
		ON CONFLICT (option_id, user_id) DO NOTHING
	`, v.OptionID, v.UserID)
	return wrap("insert vote", err)
}

func (r *VoteRepository) DeleteVote(ctx context.Context, v groups.Vote) error {
	_, err := r.db.db.ExecContext(ctx, `
		DELETE FROM votes WHERE option_id = ? AND user_id = ?
	`, v.OptionID, v.UserID)
	return wrap("delete vote", err)
}

func (r *VoteRepository) queryIDs(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(op, err)
		}
		ids = append(ids, id)
	}
	return ids, wrap(op, rows.Err())
}
