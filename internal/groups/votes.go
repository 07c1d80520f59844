package groups

import (
	"context"
	"errors"

	"nuclight.org/groupsync/internal/session"
)

// PlaceVote votes for an option as the current user.
//
// It returns NoAction without contacting the server when the vote is already
// stored. On a single-choice ballot every other vote of the user in that
// ballot is withdrawn first, one at a time, remotely and locally. A server
// reply of ErrAlreadyVoted counts as success.
func (s *Service) PlaceVote(ctx context.Context, groupID, ballotID, optionID int64) (Outcome, error) {
	me, err := session.UserID(ctx)
	if err != nil {
		return NoAction, err
	}

	voted, err := s.store.HasVote(ctx, optionID, me)
	if err != nil {
		return NoAction, storageErr("check vote", err)
	}
	if voted {
		return NoAction, nil
	}

	b, err := s.store.GetBallot(ctx, ballotID)
	if err != nil {
		return NoAction, storageErr("get ballot", err)
	}
	if b != nil && b.Closed {
		return NoAction, ErrBallotClosed
	}

	if b != nil && !b.MultipleChoice {
		prior, err := s.store.ListUserVotes(ctx, ballotID, me)
		if err != nil {
			return NoAction, storageErr("list user votes", err)
		}
		for _, other := range prior {
			if other == optionID {
				continue
			}
			if err := s.remote.RemoveVote(ctx, groupID, ballotID, other); err != nil {
				return NoAction, err
			}
			if err := s.store.DeleteVote(ctx, Vote{OptionID: other, UserID: me}); err != nil {
				return NoAction, storageErr("delete vote", err)
			}
		}
	}

	if err := s.remote.PlaceVote(ctx, groupID, ballotID, optionID); err != nil && !errors.Is(err, ErrAlreadyVoted) {
		return NoAction, err
	}

	b, err = s.store.GetBallot(ctx, ballotID)
	if err != nil {
		return NoAction, storageErr("get ballot", err)
	}
	if b == nil {
		return Applied, nil
	}
	if err := s.store.CreateVote(ctx, Vote{OptionID: optionID, UserID: me}); err != nil {
		return NoAction, storageErr("create vote", err)
	}
	return Applied, nil
}

// RemoveVote withdraws the current user's vote for an option. It returns
// NoAction without contacting the server when no such vote is stored.
func (s *Service) RemoveVote(ctx context.Context, groupID, ballotID, optionID int64) (Outcome, error) {
	me, err := session.UserID(ctx)
	if err != nil {
		return NoAction, err
	}

	voted, err := s.store.HasVote(ctx, optionID, me)
	if err != nil {
		return NoAction, storageErr("check vote", err)
	}
	if !voted {
		return NoAction, nil
	}

	if err := s.remote.RemoveVote(ctx, groupID, ballotID, optionID); err != nil {
		return NoAction, err
	}
	if err := s.store.DeleteVote(ctx, Vote{OptionID: optionID, UserID: me}); err != nil {
		return NoAction, storageErr("delete vote", err)
	}
	return Applied, nil
}
