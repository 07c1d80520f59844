package groups

import (
	"context"

	"nuclight.org/groupsync/internal/changeset"
)

// SyncParticipants brings the local participants of a group in line with the
// server. Users are created if absent but never overwritten. Participants
// missing from the server list are left untouched; only explicit leave and
// remove flows take participants out of a group.
//
// A remote not-found is returned as is; the caller decides whether it means
// the group is gone.
func (s *Service) SyncParticipants(ctx context.Context, groupID int64) error {
	fetched, err := s.remote.FetchParticipants(ctx, groupID)
	if err != nil {
		return err
	}

	for _, rp := range fetched {
		if err := s.ensureUser(ctx, rp.User); err != nil {
			return err
		}
	}

	local, err := s.store.ListParticipants(ctx, groupID)
	if err != nil {
		return storageErr("list participants", err)
	}

	reference := make([]*Participant, 0, len(fetched))
	for _, rp := range fetched {
		reference = append(reference, &Participant{GroupID: groupID, UserID: rp.User.ID, Active: rp.Active})
	}

	diff := changeset.Compute(reference, local, func(p *Participant) int64 { return p.UserID })

	var added []*Participant
	for _, p := range diff.ToAdd {
		if p.Active {
			added = append(added, p)
		}
	}
	if len(added) > 0 {
		if err := s.store.CreateParticipants(ctx, added); err != nil {
			return storageErr("create participants", err)
		}
	}

	for i, p := range diff.ToUpdate {
		if diff.Previous[i].Active == p.Active {
			continue
		}
		if err := s.store.SetParticipantActive(ctx, groupID, p.UserID, p.Active); err != nil {
			return storageErr("update participant", err)
		}
	}

	s.logger.Debug("participants synced",
		"group_id", groupID,
		"fetched", len(fetched),
		"added", len(added),
	)
	return nil
}

// RemoveParticipant removes another user from the group. The local row is
// kept as inactive.
func (s *Service) RemoveParticipant(ctx context.Context, groupID, userID int64) error {
	if err := s.remote.RemoveParticipant(ctx, groupID, userID); err != nil && !IsNotFound(err) {
		return err
	}
	return s.deactivateParticipant(ctx, groupID, userID)
}

func (s *Service) deactivateParticipant(ctx context.Context, groupID, userID int64) error {
	p, err := s.store.GetParticipant(ctx, groupID, userID)
	if err != nil {
		return storageErr("get participant", err)
	}
	if p == nil || !p.Active {
		return nil
	}
	return storageErr("update participant", s.store.SetParticipantActive(ctx, groupID, userID, false))
}

// addActiveParticipant inserts or reactivates userID in the group.
func (s *Service) addActiveParticipant(ctx context.Context, groupID, userID int64) error {
	p, err := s.store.GetParticipant(ctx, groupID, userID)
	if err != nil {
		return storageErr("get participant", err)
	}
	if p == nil {
		return storageErr("create participants", s.store.CreateParticipants(ctx, []*Participant{
			{GroupID: groupID, UserID: userID, Active: true},
		}))
	}
	if p.Active {
		return nil
	}
	return storageErr("update participant", s.store.SetParticipantActive(ctx, groupID, userID, true))
}

func (s *Service) isParticipant(ctx context.Context, groupID, userID int64, activeOnly bool) (bool, error) {
	p, err := s.store.GetParticipant(ctx, groupID, userID)
	if err != nil {
		return false, storageErr("get participant", err)
	}
	if p == nil {
		return false, nil
	}
	return p.Active || !activeOnly, nil
}

func (s *Service) activeParticipants(ctx context.Context, groupID int64) ([]int64, error) {
	ps, err := s.store.ListParticipants(ctx, groupID)
	if err != nil {
		return nil, storageErr("list participants", err)
	}
	var ids []int64
	for _, p := range ps {
		if p.Active {
			ids = append(ids, p.UserID)
		}
	}
	return ids, nil
}

func (s *Service) ensureUser(ctx context.Context, u User) error {
	exists, err := s.store.UserExists(ctx, u.ID)
	if err != nil {
		return storageErr("check user", err)
	}
	if exists {
		return nil
	}
	return storageErr("create user", s.store.CreateUser(ctx, &u))
}

// missingUsers returns the ids in userIDs that are not stored locally.
func (s *Service) missingUsers(ctx context.Context, userIDs []int64) ([]int64, error) {
	var missing []int64
	for _, id := range userIDs {
		exists, err := s.store.UserExists(ctx, id)
		if err != nil {
			return nil, storageErr("check user", err)
		}
		if !exists {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
