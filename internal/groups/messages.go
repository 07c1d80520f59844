package groups

import (
	"context"
	"slices"

	"nuclight.org/groupsync/internal/session"
)

// StoreMessages stores the messages of a conversation that are newer than the
// highest message number already stored, so redelivered batches are ignored.
// Authors that are not participants of the group are replaced by
// UnknownAuthor and remembered for RepairMessageAuthors. It returns the number
// of messages inserted.
func (s *Service) StoreMessages(ctx context.Context, groupID, conversationID int64, msgs []*Message) (int, error) {
	highest, err := s.store.MaxMessageNumber(ctx, conversationID)
	if err != nil {
		return 0, storageErr("max message number", err)
	}

	seen := make(map[int]struct{}, len(msgs))
	var pending []*Message
	for _, m := range msgs {
		if m.Number <= highest {
			continue
		}
		if _, dup := seen[m.Number]; dup {
			continue
		}
		seen[m.Number] = struct{}{}

		stored := *m
		stored.ConversationID = conversationID
		known, err := s.isParticipant(ctx, groupID, m.AuthorID, false)
		if err != nil {
			return 0, err
		}
		if !known {
			stored.PendingAuthorID = m.AuthorID
			stored.AuthorID = UnknownAuthor
		}
		pending = append(pending, &stored)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slices.SortFunc(pending, func(a, b *Message) int { return a.Number - b.Number })
	if err := s.store.CreateMessages(ctx, pending); err != nil {
		return 0, storageErr("create messages", err)
	}
	return len(pending), nil
}

// StoreMessage stores a single newly arrived message. Unlike StoreMessages it
// never substitutes an unknown author: it returns NotStored instead, and the
// caller should resync participants first.
func (s *Service) StoreMessage(ctx context.Context, groupID int64, m *Message) (Outcome, error) {
	known, err := s.isParticipant(ctx, groupID, m.AuthorID, false)
	if err != nil {
		return NotStored, err
	}
	if !known {
		return NotStored, nil
	}

	highest, err := s.store.MaxMessageNumber(ctx, m.ConversationID)
	if err != nil {
		return NotStored, storageErr("max message number", err)
	}
	if m.Number <= highest {
		return NoAction, nil
	}

	if err := s.store.CreateMessages(ctx, []*Message{m}); err != nil {
		return NotStored, storageErr("create messages", err)
	}
	return Applied, nil
}

// SyncMessages pulls the messages newer than the highest one stored locally.
// A conversation the server no longer knows is marked closed.
func (s *Service) SyncMessages(ctx context.Context, groupID, conversationID int64) (int, error) {
	highest, err := s.store.MaxMessageNumber(ctx, conversationID)
	if err != nil {
		return 0, storageErr("max message number", err)
	}

	fetched, err := s.remote.FetchMessages(ctx, groupID, conversationID, highest)
	if IsNotFound(err) {
		return 0, s.markConversationClosed(ctx, conversationID)
	}
	if err != nil {
		return 0, err
	}
	return s.StoreMessages(ctx, groupID, conversationID, fetched)
}

// SendMessage posts a message as the current user.
//
// If the server numbered it anything but one above the highest local number,
// other participants wrote in between and every newer message is pulled
// instead of storing only this one.
func (s *Service) SendMessage(ctx context.Context, groupID, conversationID int64, text string, priority Priority) (*Message, error) {
	me, err := session.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := ValidateMessageText(text); err != nil {
		return nil, err
	}

	highest, err := s.store.MaxMessageNumber(ctx, conversationID)
	if err != nil {
		return nil, storageErr("max message number", err)
	}

	created, err := s.remote.CreateMessage(ctx, groupID, conversationID, &Message{
		ConversationID: conversationID,
		AuthorID:       me,
		Text:           text,
		Priority:       priority,
	})
	if err != nil {
		return nil, err
	}
	created.ConversationID = conversationID
	created.Read = true

	if created.Number != highest+1 {
		s.logger.Info("message numbering drift, pulling newer messages",
			"group_id", groupID,
			"conversation_id", conversationID,
			"expected", highest+1,
			"got", created.Number,
		)
		if _, err := s.SyncMessages(ctx, groupID, conversationID); err != nil {
			return created, err
		}
		return created, nil
	}

	outcome, err := s.StoreMessage(ctx, groupID, created)
	if err != nil {
		return created, err
	}
	if outcome == NotStored {
		if err := s.SyncParticipants(ctx, groupID); err != nil {
			return created, err
		}
		if _, err := s.StoreMessages(ctx, groupID, conversationID, []*Message{created}); err != nil {
			return created, err
		}
	}
	return created, nil
}

// RepairMessageAuthors points messages stored with UnknownAuthor at their
// real author once that author is a known participant of the group.
func (s *Service) RepairMessageAuthors(ctx context.Context, groupID int64) (int, error) {
	pending, err := s.store.ListMessagesPendingAuthor(ctx, groupID)
	if err != nil {
		return 0, storageErr("list messages pending author", err)
	}

	repaired := 0
	for _, m := range pending {
		if m.PendingAuthorID == UnknownAuthor {
			continue
		}
		known, err := s.isParticipant(ctx, groupID, m.PendingAuthorID, false)
		if err != nil {
			return repaired, err
		}
		if !known {
			continue
		}
		if err := s.store.SetMessageAuthor(ctx, m.ID, m.PendingAuthorID); err != nil {
			return repaired, storageErr("set message author", err)
		}
		repaired++
	}
	return repaired, nil
}
