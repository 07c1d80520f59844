package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"nuclight.org/groupsync/internal/groups"
)

type ConversationRepository struct {
	db *DB
}

func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetConversation(ctx context.Context, conversationID int64) (*groups.Conversation, error) {
	var c groups.Conversation
	err := r.db.db.QueryRowContext(ctx, `
		SELECT id, group_id, admin_id, title, is_closed FROM conversations WHERE id = ?
	`, conversationID).Scan(&c.ID, &c.GroupID, &c.AdminID, &c.Title, &c.Closed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get conversation", err)
	}
	return &c, nil
}

func (r *ConversationRepository) ListConversations(ctx context.Context, groupID int64) ([]*groups.Conversation, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT id, group_id, admin_id, title, is_closed FROM conversations
		WHERE group_id = ?
		ORDER BY id
	`, groupID)
	if err != nil {
		return nil, wrap("query conversations", err)
	}
	defer rows.Close()

	var out []*groups.Conversation
	for rows.Next() {
		var c groups.Conversation
		if err := rows.Scan(&c.ID, &c.GroupID, &c.AdminID, &c.Title, &c.Closed); err != nil {
			return nil, wrap("scan conversation", err)
		}
		out = append(out, &c)
	}
	return out, wrap("query conversations", rows.Err())
}

// CreateConversations inserts the conversation rows only; nested messages are
// stored separately.
func (r *ConversationRepository) CreateConversations(ctx context.Context, cs []*groups.Conversation) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO conversations (id, group_id, admin_id, title, is_closed) VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range cs {
			if _, err := stmt.ExecContext(ctx, c.ID, c.GroupID, c.AdminID, c.Title, c.Closed); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("insert conversations", err)
}

func (r *ConversationRepository) UpdateConversations(ctx context.Context, cs []*groups.Conversation) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE conversations SET title = ?, admin_id = ?, is_closed = ? WHERE id = ?
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range cs {
			if _, err := stmt.ExecContext(ctx, c.Title, c.AdminID, c.Closed, c.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("update conversations", err)
}

func (r *ConversationRepository) MarkConversationsClosed(ctx context.Context, conversationIDs []int64) error {
	if len(conversationIDs) == 0 {
		return nil
	}
	args := make([]any, len(conversationIDs))
	for i, id := range conversationIDs {
		args[i] = id
	}
	_, err := r.db.db.ExecContext(ctx,
		`UPDATE conversations SET is_closed = 1 WHERE id IN (`+placeholders(len(args))+`)`, args...)
	return wrap("close conversations", err)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
