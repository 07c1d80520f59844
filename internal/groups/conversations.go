package groups

import (
	"context"
	"errors"

	"nuclight.org/groupsync/internal/changeset"
	"nuclight.org/groupsync/internal/session"
)

// SyncConversations reconciles the conversations of a group and the messages
// nested in them. Conversations that disappeared from the server are marked
// closed, never deleted.
//
// New conversations whose admin is not an active participant are skipped and
// reported as *PreconditionError once the rest of the pass has been applied.
func (s *Service) SyncConversations(ctx context.Context, groupID int64) error {
	if err := s.SyncParticipants(ctx, groupID); err != nil {
		return err
	}

	fetched, err := s.remote.FetchConversations(ctx, groupID)
	if err != nil {
		return err
	}
	for _, c := range fetched {
		c.GroupID = groupID
	}

	local, err := s.store.ListConversations(ctx, groupID)
	if err != nil {
		return storageErr("list conversations", err)
	}

	diff := changeset.Compute(fetched, local, func(c *Conversation) int64 { return c.ID })

	var rejected []error
	var created []*Conversation
	for _, c := range diff.ToAdd {
		ok, err := s.isParticipant(ctx, groupID, c.AdminID, true)
		if err != nil {
			return err
		}
		if !ok {
			rejected = append(rejected, &PreconditionError{Entity: "conversation", ID: c.ID, MissingUsers: []int64{c.AdminID}})
			continue
		}
		created = append(created, c)
	}
	if len(created) > 0 {
		if err := s.store.CreateConversations(ctx, created); err != nil {
			return storageErr("create conversations", err)
		}
	}

	var changed []*Conversation
	for i, c := range diff.ToUpdate {
		if !syncedConversationFieldsEqual(c, diff.Previous[i]) {
			changed = append(changed, c)
		}
	}
	if len(changed) > 0 {
		if err := s.store.UpdateConversations(ctx, changed); err != nil {
			return storageErr("update conversations", err)
		}
	}

	var closed []int64
	for _, c := range diff.ToRemove {
		if !c.Closed {
			closed = append(closed, c.ID)
		}
	}
	if len(closed) > 0 {
		if err := s.store.MarkConversationsClosed(ctx, closed); err != nil {
			return storageErr("close conversations", err)
		}
	}

	for _, c := range append(created, diff.ToUpdate...) {
		if len(c.Messages) == 0 {
			continue
		}
		if _, err := s.StoreMessages(ctx, groupID, c.ID, c.Messages); err != nil {
			return err
		}
	}

	if _, err := s.RepairMessageAuthors(ctx, groupID); err != nil {
		return err
	}

	s.logger.Debug("conversations synced",
		"group_id", groupID,
		"created", len(created),
		"updated", len(changed),
		"closed", len(closed),
		"rejected", len(rejected),
	)
	return errors.Join(rejected...)
}

// SyncConversation reconciles a single conversation, e.g. after a push
// notification. A conversation the server no longer knows is marked closed.
func (s *Service) SyncConversation(ctx context.Context, groupID, conversationID int64) error {
	if err := s.SyncParticipants(ctx, groupID); err != nil {
		return err
	}

	fetched, err := s.remote.FetchConversation(ctx, groupID, conversationID)
	if IsNotFound(err) {
		return s.markConversationClosed(ctx, conversationID)
	}
	if err != nil {
		return err
	}
	fetched.GroupID = groupID

	local, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return storageErr("get conversation", err)
	}

	switch {
	case local == nil:
		ok, err := s.isParticipant(ctx, groupID, fetched.AdminID, true)
		if err != nil {
			return err
		}
		if !ok {
			return &PreconditionError{Entity: "conversation", ID: fetched.ID, MissingUsers: []int64{fetched.AdminID}}
		}
		if err := s.store.CreateConversations(ctx, []*Conversation{fetched}); err != nil {
			return storageErr("create conversations", err)
		}
	case !syncedConversationFieldsEqual(fetched, local):
		if err := s.store.UpdateConversations(ctx, []*Conversation{fetched}); err != nil {
			return storageErr("update conversations", err)
		}
	}

	if len(fetched.Messages) > 0 {
		if _, err := s.StoreMessages(ctx, groupID, conversationID, fetched.Messages); err != nil {
			return err
		}
	}
	_, err = s.RepairMessageAuthors(ctx, groupID)
	return err
}

// CreateConversation opens a new conversation administered by the current
// user.
func (s *Service) CreateConversation(ctx context.Context, groupID int64, title string) (*Conversation, error) {
	me, err := session.UserID(ctx)
	if err != nil {
		return nil, err
	}
	c := &Conversation{GroupID: groupID, AdminID: me, Title: title}
	if err := ValidateConversation(c); err != nil {
		return nil, err
	}

	created, err := s.remote.CreateConversation(ctx, groupID, c)
	if err != nil {
		return nil, err
	}
	created.GroupID = groupID

	ok, err := s.isParticipant(ctx, groupID, created.AdminID, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.SyncParticipants(ctx, groupID); err != nil {
			return nil, err
		}
		if ok, err = s.isParticipant(ctx, groupID, created.AdminID, true); err != nil {
			return nil, err
		}
		if !ok {
			return nil, &PreconditionError{Entity: "conversation", ID: created.ID, MissingUsers: []int64{created.AdminID}}
		}
	}

	if err := s.store.CreateConversations(ctx, []*Conversation{created}); err != nil {
		return nil, storageErr("create conversations", err)
	}
	return created, nil
}

// CloseConversation asks the server to close a conversation and closes it
// locally. A conversation the server no longer knows counts as closed.
func (s *Service) CloseConversation(ctx context.Context, groupID, conversationID int64) error {
	if err := s.remote.CloseConversation(ctx, groupID, conversationID); err != nil && !IsNotFound(err) {
		return err
	}
	return s.markConversationClosed(ctx, conversationID)
}

func (s *Service) markConversationClosed(ctx context.Context, conversationID int64) error {
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return storageErr("get conversation", err)
	}
	if c == nil || c.Closed {
		return nil
	}
	return storageErr("close conversations", s.store.MarkConversationsClosed(ctx, []int64{conversationID}))
}
