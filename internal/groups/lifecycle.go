package groups

import (
	"context"
	"errors"

	"nuclight.org/groupsync/internal/session"
)

// CreateGroup creates a group administered by the current user, stores it
// and adds the user as its first active participant.
func (s *Service) CreateGroup(ctx context.Context, ng NewGroup) (*Group, error) {
	sess, ok := session.FromContext(ctx)
	if !ok || sess.UserID <= 0 {
		return nil, session.ErrNoSession
	}
	if err := ValidateNewGroup(ng); err != nil {
		return nil, err
	}

	created, err := s.remote.CreateGroup(ctx, &Group{
		Name:         ng.Name,
		Description:  ng.Description,
		Term:         ng.Term,
		AdminID:      sess.UserID,
		PasswordHash: s.hashPassword(ng.Password),
	})
	if err != nil {
		return nil, err
	}

	// The admin must exist locally before the group row references it.
	if err := s.ensureUser(ctx, User{ID: sess.UserID, Name: sess.UserName}); err != nil {
		return nil, err
	}
	if err := s.store.CreateGroup(ctx, created); err != nil {
		return nil, storageErr("create group", err)
	}
	if err := s.addActiveParticipant(ctx, created.ID, sess.UserID); err != nil {
		return nil, err
	}
	return created, nil
}

// JoinGroup joins an existing group and stores it with its participants.
// Conversations and ballots are prefetched on a best-effort basis; a failure
// there is logged and left to the next sync.
func (s *Service) JoinGroup(ctx context.Context, groupID int64, password string) (*Group, error) {
	sess, ok := session.FromContext(ctx)
	if !ok || sess.UserID <= 0 {
		return nil, session.ErrNoSession
	}

	if err := s.remote.JoinGroup(ctx, groupID, s.hashPassword(password)); err != nil {
		return nil, err
	}

	g, err := s.remote.FetchGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.SyncParticipants(ctx, groupID); err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, User{ID: sess.UserID, Name: sess.UserName}); err != nil {
		return nil, err
	}
	if err := s.upsertGroup(ctx, g); err != nil {
		return nil, err
	}
	if err := s.addActiveParticipant(ctx, groupID, sess.UserID); err != nil {
		return nil, err
	}

	if err := s.SyncConversations(ctx, groupID); err != nil {
		s.logger.Warn("prefetch conversations failed", "group_id", groupID, "error", err)
	}
	if err := s.SyncBallots(ctx, groupID); err != nil {
		s.logger.Warn("prefetch ballots failed", "group_id", groupID, "error", err)
	}
	return g, nil
}

// UpdateGroup sends the fields of changes that differ from the stored group.
// Nothing is sent when nothing differs. If the server no longer knows the
// group it is marked deleted locally and ErrGroupDeleted is returned.
func (s *Service) UpdateGroup(ctx context.Context, groupID int64, changes GroupChanges) (*Group, error) {
	if err := ValidateGroupChanges(changes); err != nil {
		return nil, err
	}

	local, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storageErr("get group", err)
	}
	if local == nil {
		return nil, ErrUnknownGroup
	}

	delta := s.computeGroupDelta(local, changes)
	if delta.Empty() {
		return local, nil
	}

	if delta.AdminID != nil {
		exists, err := s.store.UserExists(ctx, *delta.AdminID)
		if err != nil {
			return nil, storageErr("check user", err)
		}
		if !exists {
			return nil, &PreconditionError{Entity: "group", ID: groupID, MissingUsers: []int64{*delta.AdminID}}
		}
	}

	updated, err := s.remote.UpdateGroup(ctx, groupID, delta)
	if IsNotFound(err) {
		if err := s.markGroupDeleted(ctx, groupID); err != nil {
			return nil, err
		}
		return nil, ErrGroupDeleted
	}
	if err != nil {
		return nil, err
	}

	delta.Apply(local)
	if updated != nil && !updated.ModifiedAt.IsZero() {
		local.ModifiedAt = updated.ModifiedAt
	}
	if err := s.store.UpdateGroup(ctx, local); err != nil {
		return nil, storageErr("update group", err)
	}
	return local, nil
}

func (s *Service) computeGroupDelta(g *Group, c GroupChanges) GroupDelta {
	var d GroupDelta
	if c.Name != "" && c.Name != g.Name {
		d.Name = &c.Name
	}
	if c.Description != "" && c.Description != g.Description {
		d.Description = &c.Description
	}
	if c.Term != "" && c.Term != g.Term {
		d.Term = &c.Term
	}
	if c.Password != "" {
		if hash := s.hashPassword(c.Password); hash != g.PasswordHash {
			d.PasswordHash = &hash
		}
	}
	if c.AdminID != 0 && c.AdminID != g.AdminID {
		d.AdminID = &c.AdminID
	}
	return d
}

// LeaveGroup removes the current user from a group.
//
// An admin hands the group over first: a successor is picked from the other
// active participants on the server, and the admin update is sent before the
// leave request. An admin who is the only active participant gets
// ErrAdminNotAllowedToExit.
func (s *Service) LeaveGroup(ctx context.Context, groupID int64) error {
	me, err := session.UserID(ctx)
	if err != nil {
		return err
	}

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return storageErr("get group", err)
	}
	if g == nil {
		if g, err = s.remote.FetchGroup(ctx, groupID); err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}
	}

	if g.AdminID == me {
		if err := s.handOverAdmin(ctx, groupID, me); err != nil {
			return err
		}
	}

	if err := s.remote.RemoveParticipant(ctx, groupID, me); err != nil && !IsNotFound(err) {
		return err
	}
	return s.deactivateParticipant(ctx, groupID, me)
}

func (s *Service) handOverAdmin(ctx context.Context, groupID, me int64) error {
	fetched, err := s.remote.FetchParticipants(ctx, groupID)
	if err != nil {
		return err
	}

	var candidates []int64
	users := make(map[int64]User, len(fetched))
	for _, p := range fetched {
		if p.Active && p.User.ID != me {
			candidates = append(candidates, p.User.ID)
			users[p.User.ID] = p.User
		}
	}
	if len(candidates) == 0 {
		return ErrAdminNotAllowedToExit
	}

	next := s.picker.Pick(candidates)
	if err := s.ensureUser(ctx, users[next]); err != nil {
		return err
	}
	if err := s.addActiveParticipant(ctx, groupID, next); err != nil {
		return err
	}

	s.logger.Info("handing over group admin", "group_id", groupID, "admin_id", next)
	_, err = s.UpdateGroup(ctx, groupID, GroupChanges{AdminID: next})
	if errors.Is(err, ErrUnknownGroup) {
		_, err = s.remote.UpdateGroup(ctx, groupID, GroupDelta{AdminID: &next})
	}
	return err
}

// DeleteGroup deletes a group remotely and purges it locally. A group the
// server no longer knows counts as deleted.
func (s *Service) DeleteGroup(ctx context.Context, groupID int64) error {
	if err := s.remote.DeleteGroup(ctx, groupID); err != nil && !IsNotFound(err) {
		return err
	}
	return s.purgeGroup(ctx, groupID)
}

// purgeGroup removes a group row. Messages do not cascade with their
// conversation, so they are deleted first.
func (s *Service) purgeGroup(ctx context.Context, groupID int64) error {
	convs, err := s.store.ListConversations(ctx, groupID)
	if err != nil {
		return storageErr("list conversations", err)
	}
	for _, c := range convs {
		if err := s.store.DeleteMessagesOfConversation(ctx, c.ID); err != nil {
			return storageErr("delete messages", err)
		}
	}
	return storageErr("delete group", s.store.DeleteGroup(ctx, groupID))
}

// SyncGroup refreshes the participants and fields of a group. A group the
// server no longer knows is marked deleted and ErrGroupDeleted is returned.
func (s *Service) SyncGroup(ctx context.Context, groupID int64) error {
	err := s.SyncParticipants(ctx, groupID)
	if err == nil {
		var g *Group
		g, err = s.remote.FetchGroup(ctx, groupID)
		if err == nil {
			return s.upsertGroup(ctx, g)
		}
	}
	if IsNotFound(err) {
		if err := s.markGroupDeleted(ctx, groupID); err != nil {
			return err
		}
		return ErrGroupDeleted
	}
	return err
}

// SetNotificationSetting changes the local-only notification preference.
func (s *Service) SetNotificationSetting(ctx context.Context, groupID int64, setting NotificationSetting) error {
	return storageErr("set notification setting", s.store.SetNotificationSetting(ctx, groupID, setting))
}

// upsertGroup stores the server copy of a group, keeping the local
// notification setting. The admin must already be stored as a user.
func (s *Service) upsertGroup(ctx context.Context, fetched *Group) error {
	local, err := s.store.GetGroup(ctx, fetched.ID)
	if err != nil {
		return storageErr("get group", err)
	}

	if local == nil {
		missing, err := s.missingUsers(ctx, []int64{fetched.AdminID})
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return &PreconditionError{Entity: "group", ID: fetched.ID, MissingUsers: missing}
		}
		return storageErr("create group", s.store.CreateGroup(ctx, fetched))
	}

	if syncedGroupFieldsEqual(fetched, local) {
		return nil
	}
	missing, err := s.missingUsers(ctx, []int64{fetched.AdminID})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &PreconditionError{Entity: "group", ID: fetched.ID, MissingUsers: missing}
	}
	updated := *fetched
	updated.NotificationSetting = local.NotificationSetting
	return storageErr("update group", s.store.UpdateGroup(ctx, &updated))
}

func (s *Service) markGroupDeleted(ctx context.Context, groupID int64) error {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return storageErr("get group", err)
	}
	if g == nil || g.Deleted {
		return nil
	}
	s.logger.Info("group deleted on server", "group_id", groupID)
	return storageErr("mark group deleted", s.store.MarkGroupDeleted(ctx, groupID))
}
