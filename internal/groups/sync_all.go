package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"nuclight.org/groupsync/internal/changeset"
)

// SyncAll runs a full reconciliation pass over every group of the current
// user. Groups the server no longer lists are marked deleted. Each remaining
// group is synced on its own; a failing group does not stop the others and
// all failures are returned joined.
//
// The per-group passes are not serialized with a Dispatcher; use
// Dispatcher.SyncAll when events are handled at the same time.
func (s *Service) SyncAll(ctx context.Context) error {
	return s.syncAll(ctx, s.syncGroupContents)
}

func (s *Service) syncAll(ctx context.Context, syncGroup func(context.Context, int64) error) error {
	logger := s.logger.With("pass_id", uuid.NewString())

	fetched, err := s.remote.ListGroups(ctx)
	if err != nil {
		return err
	}

	stored, err := s.store.ListGroups(ctx)
	if err != nil {
		return storageErr("list groups", err)
	}
	live := stored[:0:0]
	for _, g := range stored {
		if !g.Deleted {
			live = append(live, g)
		}
	}

	diff := changeset.Compute(fetched, live, func(g *Group) int64 { return g.ID })
	for _, g := range diff.ToRemove {
		if err := s.markGroupDeleted(ctx, g.ID); err != nil {
			return err
		}
	}

	var errs []error
	for _, g := range fetched {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := syncGroup(ctx, g.ID); err != nil {
			logger.Warn("group sync failed", "group_id", g.ID, "error", err)
			errs = append(errs, fmt.Errorf("group %d: %w", g.ID, err))
		}
	}

	logger.Info("sync pass finished",
		"groups", len(fetched),
		"removed", len(diff.ToRemove),
		"failed", len(errs),
	)
	return errors.Join(errs...)
}

// syncGroupContents syncs the group row, its conversations and its ballots.
// The conversation and ballot passes run even if the other one failed.
func (s *Service) syncGroupContents(ctx context.Context, groupID int64) error {
	if err := s.SyncGroup(ctx, groupID); err != nil {
		if errors.Is(err, ErrGroupDeleted) {
			return nil
		}
		return err
	}

	var errs []error
	for _, step := range []func(context.Context, int64) error{s.SyncConversations, s.SyncBallots} {
		err := step(ctx, groupID)
		if IsNotFound(err) {
			return s.markGroupDeleted(ctx, groupID)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
