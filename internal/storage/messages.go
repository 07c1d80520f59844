package storage

import (
	"context"
	"database/sql"

	"nuclight.org/groupsync/internal/groups"
)

type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, conversation_id, author_id, pending_author_id, number, text, priority, is_read, created_at`

func (r *MessageRepository) MaxMessageNumber(ctx context.Context, conversationID int64) (int, error) {
	var highest int
	err := r.db.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(number), 0) FROM messages WHERE conversation_id = ?
	`, conversationID).Scan(&highest)
	if err != nil {
		return 0, wrap("max message number", err)
	}
	return highest, nil
}

func (r *MessageRepository) ListMessages(ctx context.Context, conversationID int64) ([]*groups.Message, error) {
	return r.queryMessages(ctx, "query messages", `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ?
		ORDER BY number
	`, conversationID)
}

// CreateMessages inserts the batch in one transaction. A zero id lets the
// database assign one.
func (r *MessageRepository) CreateMessages(ctx context.Context, ms []*groups.Message) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (id, conversation_id, author_id, pending_author_id, number, text, priority, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, m := range ms {
			_, err := stmt.ExecContext(ctx, nullID(m.ID), m.ConversationID, m.AuthorID, m.PendingAuthorID,
				m.Number, m.Text, m.Priority, m.Read, nullTime(m.CreatedAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("insert messages", err)
}

func (r *MessageRepository) ListMessagesPendingAuthor(ctx context.Context, groupID int64) ([]*groups.Message, error) {
	return r.queryMessages(ctx, "query messages pending author", `
		SELECT m.id, m.conversation_id, m.author_id, m.pending_author_id, m.number, m.text, m.priority, m.is_read, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.group_id = ? AND m.author_id = ? AND m.pending_author_id != 0
		ORDER BY m.conversation_id, m.number
	`, groupID, groups.UnknownAuthor)
}

func (r *MessageRepository) SetMessageAuthor(ctx context.Context, messageID, authorID int64) error {
	_, err := r.db.db.ExecContext(ctx, `
		UPDATE messages SET author_id = ?, pending_author_id = 0 WHERE id = ?
	`, authorID, messageID)
	return wrap("set message author", err)
}

func (r *MessageRepository) DeleteMessagesOfConversation(ctx context.Context, conversationID int64) error {
	_, err := r.db.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return wrap("delete messages", err)
}

func (r *MessageRepository) queryMessages(ctx context.Context, op, query string, args ...any) ([]*groups.Message, error) {
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []*groups.Message
	for rows.Next() {
		var m groups.Message
		var createdAt sql.NullTime
		err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.PendingAuthorID, &m.Number,
			&m.Text, &m.Priority, &m.Read, &createdAt)
		if err != nil {
			return nil, wrap("scan message", err)
		}
		m.CreatedAt = createdAt.Time
		out = append(out, &m)
	}
	return out, wrap(op, rows.Err())
}
