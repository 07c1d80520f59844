package groups

import (
	"context"
	"errors"
	"slices"

	"nuclight.org/groupsync/internal/changeset"
	"nuclight.org/groupsync/internal/session"
)

// SyncBallots reconciles every ballot of a group, its options and their
// votes. Ballots missing on the server are deleted locally.
//
// New ballots referencing users that are unknown locally are not stored and
// are reported as *PreconditionError after the rest of the pass is applied.
func (s *Service) SyncBallots(ctx context.Context, groupID int64) error {
	if err := s.SyncParticipants(ctx, groupID); err != nil {
		return err
	}

	fetched, err := s.remote.FetchBallots(ctx, groupID)
	if err != nil {
		return err
	}
	for _, b := range fetched {
		normalizeBallot(groupID, b)
	}

	local, err := s.store.ListBallots(ctx, groupID)
	if err != nil {
		return storageErr("list ballots", err)
	}

	diff := changeset.Compute(fetched, local, func(b *Ballot) int64 { return b.ID })

	var rejected []error
	merged := make([]*Ballot, 0, len(fetched))
	for _, b := range diff.ToAdd {
		missing, err := s.storeBallot(ctx, b)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			rejected = append(rejected, &PreconditionError{Entity: "ballot", ID: b.ID, MissingUsers: missing})
			continue
		}
		merged = append(merged, b)
	}

	updated := 0
	for i, b := range diff.ToUpdate {
		merged = append(merged, b)
		if syncedBallotFieldsEqual(b, diff.Previous[i]) {
			continue
		}
		if err := s.store.UpdateBallot(ctx, b); err != nil {
			return storageErr("update ballot", err)
		}
		updated++
	}

	for _, b := range diff.ToRemove {
		if err := s.store.DeleteBallot(ctx, b.ID); err != nil {
			return storageErr("delete ballot", err)
		}
	}

	for _, b := range merged {
		err := s.SynchronizeLocalOptionsOfBallot(ctx, b.ID, b.Options)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrPrecondition) || errors.Is(err, ErrStorage) {
			return err
		}
		rejected = append(rejected, err)
	}

	s.logger.Debug("ballots synced",
		"group_id", groupID,
		"created", len(diff.ToAdd),
		"updated", updated,
		"deleted", len(diff.ToRemove),
		"rejected", len(rejected),
	)
	return errors.Join(rejected...)
}

// SyncBallot reconciles a single ballot. A ballot the server no longer knows
// is deleted locally.
func (s *Service) SyncBallot(ctx context.Context, groupID, ballotID int64) error {
	if err := s.SyncParticipants(ctx, groupID); err != nil {
		return err
	}

	fetched, err := s.remote.FetchBallot(ctx, groupID, ballotID)
	if IsNotFound(err) {
		return s.deleteLocalBallot(ctx, ballotID)
	}
	if err != nil {
		return err
	}
	normalizeBallot(groupID, fetched)

	local, err := s.store.GetBallot(ctx, ballotID)
	if err != nil {
		return storageErr("get ballot", err)
	}

	if local == nil {
		missing, err := s.storeBallot(ctx, fetched)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return &PreconditionError{Entity: "ballot", ID: fetched.ID, MissingUsers: missing}
		}
		return nil
	}

	if !syncedBallotFieldsEqual(fetched, local) {
		if err := s.store.UpdateBallot(ctx, fetched); err != nil {
			return storageErr("update ballot", err)
		}
	}
	return s.SynchronizeLocalOptionsOfBallot(ctx, ballotID, fetched.Options)
}

// StoreBallot inserts a ballot with its options and votes. It returns
// NotStored without writing anything if the admin or any voter is unknown
// locally, and NoAction if the ballot is already stored.
func (s *Service) StoreBallot(ctx context.Context, b *Ballot) (Outcome, error) {
	existing, err := s.store.GetBallot(ctx, b.ID)
	if err != nil {
		return NotStored, storageErr("get ballot", err)
	}
	if existing != nil {
		return NoAction, nil
	}
	missing, err := s.storeBallot(ctx, b)
	if err != nil {
		return NotStored, err
	}
	if len(missing) > 0 {
		return NotStored, nil
	}
	return Applied, nil
}

func (s *Service) storeBallot(ctx context.Context, b *Ballot) ([]int64, error) {
	missing, err := s.missingUsers(ctx, b.referencedUsers())
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return missing, nil
	}
	if err := s.store.CreateBallot(ctx, b); err != nil {
		return nil, storageErr("create ballot", err)
	}
	return nil, nil
}

// SynchronizeLocalOptionsOfBallot reconciles the options of a stored ballot
// by id, then the votes of every option.
func (s *Service) SynchronizeLocalOptionsOfBallot(ctx context.Context, ballotID int64, options []*Option) error {
	local, err := s.store.ListOptions(ctx, ballotID)
	if err != nil {
		return storageErr("list options", err)
	}

	diff := changeset.Compute(options, local, func(o *Option) int64 { return o.ID })

	for _, o := range diff.ToAdd {
		if err := s.store.CreateOption(ctx, &Option{ID: o.ID, BallotID: ballotID, Text: o.Text}); err != nil {
			return storageErr("create option", err)
		}
	}
	for i, o := range diff.ToUpdate {
		if o.Text == diff.Previous[i].Text {
			continue
		}
		if err := s.store.UpdateOptionText(ctx, o.ID, o.Text); err != nil {
			return storageErr("update option", err)
		}
	}
	for _, o := range diff.ToRemove {
		if err := s.store.DeleteOption(ctx, o.ID); err != nil {
			return storageErr("delete option", err)
		}
	}

	var rejected []error
	for _, o := range options {
		err := s.SynchronizeLocalVotesForOption(ctx, o.ID, o.VoterIDs)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrPrecondition) {
			return err
		}
		rejected = append(rejected, err)
	}
	return errors.Join(rejected...)
}

// SynchronizeLocalVotesForOption makes the stored voters of an option equal
// to voterIDs. Voters unknown locally are skipped and reported as
// *PreconditionError.
func (s *Service) SynchronizeLocalVotesForOption(ctx context.Context, optionID int64, voterIDs []int64) error {
	current, err := s.store.ListVoters(ctx, optionID)
	if err != nil {
		return storageErr("list voters", err)
	}

	toAdd, toRemove := changeset.Members(voterIDs, current)

	missing, err := s.missingUsers(ctx, toAdd)
	if err != nil {
		return err
	}
	skip := make(map[int64]struct{}, len(missing))
	for _, id := range missing {
		skip[id] = struct{}{}
	}

	for _, userID := range toAdd {
		if _, ok := skip[userID]; ok {
			continue
		}
		if err := s.store.CreateVote(ctx, Vote{OptionID: optionID, UserID: userID}); err != nil {
			return storageErr("create vote", err)
		}
	}
	for _, userID := range toRemove {
		if err := s.store.DeleteVote(ctx, Vote{OptionID: optionID, UserID: userID}); err != nil {
			return storageErr("delete vote", err)
		}
	}

	if len(missing) > 0 {
		return &PreconditionError{Entity: "option", ID: optionID, MissingUsers: missing}
	}
	return nil
}

// CreateBallot submits a new ballot administered by the current user and
// stores the server's copy.
func (s *Service) CreateBallot(ctx context.Context, groupID int64, b *Ballot) (*Ballot, error) {
	me, err := session.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := ValidateBallot(b); err != nil {
		return nil, err
	}
	b.GroupID = groupID
	b.AdminID = me
	b.Closed = false

	created, err := s.remote.CreateBallot(ctx, groupID, b)
	if err != nil {
		return nil, err
	}
	normalizeBallot(groupID, created)

	outcome, err := s.StoreBallot(ctx, created)
	if err != nil {
		return nil, err
	}
	if outcome != NotStored {
		return created, nil
	}

	if err := s.SyncParticipants(ctx, groupID); err != nil {
		return nil, err
	}
	missing, err := s.storeBallot(ctx, created)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, &PreconditionError{Entity: "ballot", ID: created.ID, MissingUsers: missing}
	}
	return created, nil
}

// CloseBallot asks the server to close a ballot. Closing is one-way; there is
// no way to reopen a ballot from the client.
func (s *Service) CloseBallot(ctx context.Context, groupID, ballotID int64) (Outcome, error) {
	local, err := s.store.GetBallot(ctx, ballotID)
	if err != nil {
		return NoAction, storageErr("get ballot", err)
	}
	if local != nil && local.Closed {
		return NoAction, nil
	}

	closed := true
	if _, err := s.remote.UpdateBallot(ctx, groupID, ballotID, BallotDelta{Closed: &closed}); err != nil {
		if IsNotFound(err) {
			if derr := s.deleteLocalBallot(ctx, ballotID); derr != nil {
				return NoAction, derr
			}
		}
		return NoAction, err
	}

	if local == nil {
		return Applied, nil
	}
	local.Closed = true
	if err := s.store.UpdateBallot(ctx, local); err != nil {
		return NoAction, storageErr("update ballot", err)
	}
	return Applied, nil
}

// DeleteBallot deletes a ballot remotely and locally. A ballot the server no
// longer knows counts as deleted.
func (s *Service) DeleteBallot(ctx context.Context, groupID, ballotID int64) error {
	if err := s.remote.DeleteBallot(ctx, groupID, ballotID); err != nil && !IsNotFound(err) {
		return err
	}
	return s.deleteLocalBallot(ctx, ballotID)
}

func (s *Service) deleteLocalBallot(ctx context.Context, ballotID int64) error {
	b, err := s.store.GetBallot(ctx, ballotID)
	if err != nil {
		return storageErr("get ballot", err)
	}
	if b == nil {
		return nil
	}
	return storageErr("delete ballot", s.store.DeleteBallot(ctx, ballotID))
}

// normalizeBallot fills in parent ids and drops repeated voter ids.
func normalizeBallot(groupID int64, b *Ballot) {
	b.GroupID = groupID
	for _, o := range b.Options {
		o.BallotID = b.ID
		seen := make(map[int64]bool, len(o.VoterIDs))
		o.VoterIDs = slices.DeleteFunc(o.VoterIDs, func(id int64) bool {
			if seen[id] {
				return true
			}
			seen[id] = true
			return false
		})
	}
}
