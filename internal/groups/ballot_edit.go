package groups

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"nuclight.org/groupsync/internal/changeset"
)

// EditBallot applies a user edit of a ballot.
//
// Only changed ballot fields are sent; with no change the remote update is
// skipped. Options are matched by text against the stored options, because
// recreated options get new ids. Creations and deletions run as two
// concurrent batches. Every item is attempted, and the call fails with a
// *BatchError per batch that had failures.
func (s *Service) EditBallot(ctx context.Context, groupID int64, prev, next *Ballot) error {
	if err := ValidateBallot(next); err != nil {
		return err
	}
	if prev.Closed && !next.Closed {
		return &ValidationError{Problems: []FieldProblem{{Field: "closed", Kind: ValidationInvalid}}}
	}

	delta := ComputeBallotDelta(prev, next)
	if !delta.Empty() {
		if _, err := s.remote.UpdateBallot(ctx, groupID, prev.ID, delta); err != nil {
			if IsNotFound(err) {
				if derr := s.deleteLocalBallot(ctx, prev.ID); derr != nil {
					return derr
				}
			}
			return err
		}

		local, err := s.store.GetBallot(ctx, prev.ID)
		if err != nil {
			return storageErr("get ballot", err)
		}
		if local != nil {
			delta.Apply(local)
			if err := s.store.UpdateBallot(ctx, local); err != nil {
				return storageErr("update ballot", err)
			}
		}
	}

	current, err := s.store.ListOptions(ctx, prev.ID)
	if err != nil {
		return storageErr("list options", err)
	}
	diff := changeset.Compute(next.Options, current, func(o *Option) string {
		return strings.TrimSpace(o.Text)
	})
	if diff.Empty() {
		return nil
	}

	var createErr, deleteErr error
	var g errgroup.Group
	g.Go(func() error {
		createErr = s.createOptions(ctx, groupID, prev.ID, diff.ToAdd)
		return createErr
	})
	g.Go(func() error {
		deleteErr = s.deleteOptions(ctx, groupID, prev.ID, diff.ToRemove)
		return deleteErr
	})
	if err := g.Wait(); err != nil {
		return errors.Join(createErr, deleteErr)
	}
	return nil
}

func (s *Service) createOptions(ctx context.Context, groupID, ballotID int64, options []*Option) error {
	b := batch{op: "create options"}
	for _, o := range options {
		b.run(s.createOption(ctx, groupID, ballotID, strings.TrimSpace(o.Text)))
	}
	return b.Err()
}

func (s *Service) createOption(ctx context.Context, groupID, ballotID int64, text string) error {
	created, err := s.remote.CreateOption(ctx, groupID, ballotID, &Option{BallotID: ballotID, Text: text})
	if err != nil {
		return err
	}
	created.BallotID = ballotID
	return storageErr("create option", s.store.CreateOption(ctx, created))
}

func (s *Service) deleteOptions(ctx context.Context, groupID, ballotID int64, options []*Option) error {
	b := batch{op: "delete options"}
	for _, o := range options {
		b.run(s.deleteOption(ctx, groupID, ballotID, o.ID))
	}
	return b.Err()
}

func (s *Service) deleteOption(ctx context.Context, groupID, ballotID, optionID int64) error {
	if err := s.remote.DeleteOption(ctx, groupID, ballotID, optionID); err != nil && !IsNotFound(err) {
		return err
	}
	return storageErr("delete option", s.store.DeleteOption(ctx, optionID))
}
