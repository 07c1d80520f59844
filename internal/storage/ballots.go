package storage

import (
	"context"
	"database/sql"
	"errors"

	"nuclight.org/groupsync/internal/groups"
)

type BallotRepository struct {
	db *DB
}

func NewBallotRepository(db *DB) *BallotRepository {
	return &BallotRepository{db: db}
}

const ballotColumns = `id, group_id, admin_id, title, description, is_multiple_choice, is_closed`

// GetBallot returns the ballot fields without options.
func (r *BallotRepository) GetBallot(ctx context.Context, ballotID int64) (*groups.Ballot, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+ballotColumns+` FROM ballots WHERE id = ?`, ballotID)
	b, err := scanBallot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get ballot", err)
	}
	return b, nil
}

func (r *BallotRepository) ListBallots(ctx context.Context, groupID int64) ([]*groups.Ballot, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT `+ballotColumns+` FROM ballots
		WHERE group_id = ?
		ORDER BY id
	`, groupID)
	if err != nil {
		return nil, wrap("query ballots", err)
	}
	defer rows.Close()

	var out []*groups.Ballot
	for rows.Next() {
		b, err := scanBallot(rows)
		if err != nil {
			return nil, wrap("scan ballot", err)
		}
		out = append(out, b)
	}
	return out, wrap("query ballots", rows.Err())
}

// CreateBallot inserts the ballot, its options and their votes in one
// transaction.
func (r *BallotRepository) CreateBallot(ctx context.Context, b *groups.Ballot) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ballots (id, group_id, admin_id, title, description, is_multiple_choice, is_closed)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, b.ID, b.GroupID, b.AdminID, b.Title, b.Description, b.MultipleChoice, b.Closed)
		if err != nil {
			return err
		}
		for _, o := range b.Options {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ballot_options (id, ballot_id, text) VALUES (?, ?, ?)
			`, o.ID, b.ID, o.Text); err != nil {
				return err
			}
			for _, userID := range o.VoterIDs {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO votes (option_id, user_id) VALUES (?, ?)
					ON CONFLICT (option_id, user_id) DO NOTHING
				`, o.ID, userID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return wrap("insert ballot", err)
}

func (r *BallotRepository) UpdateBallot(ctx context.Context, b *groups.Ballot) error {
	_, err := r.db.db.ExecContext(ctx, `
		UPDATE ballots
		SET admin_id = ?, title = ?, description = ?, is_multiple_choice = ?, is_closed = ?
		WHERE id = ?
	`, b.AdminID, b.Title, b.Description, b.MultipleChoice, b.Closed, b.ID)
	return wrap("update ballot", err)
}

// DeleteBallot removes the ballot; options and votes cascade.
func (r *BallotRepository) DeleteBallot(ctx context.Context, ballotID int64) error {
	_, err := r.db.db.ExecContext(ctx, `DELETE FROM ballots WHERE id = ?`, ballotID)
	return wrap("delete ballot", err)
}

func scanBallot(s scanner) (*groups.Ballot, error) {
	var b groups.Ballot
	err := s.Scan(&b.ID, &b.GroupID, &b.AdminID, &b.Title, &b.Description, &b.MultipleChoice, &b.Closed)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

type OptionRepository struct {
	db *DB
}

func NewOptionRepository(db *DB) *OptionRepository {
	return &OptionRepository{db: db}
}

func (r *OptionRepository) ListOptions(ctx context.Context, ballotID int64) ([]*groups.Option, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT id, ballot_id, text FROM ballot_options
		WHERE ballot_id = ?
		ORDER BY id
	`, ballotID)
	if err != nil {
		return nil, wrap("query options", err)
	}
	defer rows.Close()

	var out []*groups.Option
	for rows.Next() {
		var o groups.Option
		if err := rows.Scan(&o.ID, &o.BallotID, &o.Text); err != nil {
			return nil, wrap("scan option", err)
		}
		out = append(out, &o)
	}
	return out, wrap("query options", rows.Err())
}

// CreateOption inserts the option row; VoterIDs are ignored.
func (r *OptionRepository) CreateOption(ctx context.Context, o *groups.Option) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO ballot_options (id, ballot_id, text) VALUES (?, ?, ?)
	`, o.ID, o.BallotID, o.Text)
	return wrap("insert option", err)
}

func (r *OptionRepository) UpdateOptionText(ctx context.Context, optionID int64, text string) error {
	_, err := r.db.db.ExecContext(ctx, `UPDATE ballot_options SET text = ? WHERE id = ?`, text, optionID)
	return wrap("update option", err)
}

func (r *OptionRepository) DeleteOption(ctx context.Context, optionID int64) error {
	_, err := r.db.db.ExecContext(ctx, `DELETE FROM ballot_options WHERE id = ?`, optionID)
	return wrap("delete option", err)
}
