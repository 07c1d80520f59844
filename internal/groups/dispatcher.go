package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type EventKind string

const (
	EventGroupChanged        EventKind = "group_changed"
	EventGroupDeleted        EventKind = "group_deleted"
	EventParticipantChanged  EventKind = "participant_changed"
	EventConversationChanged EventKind = "conversation_changed"
	EventConversationDeleted EventKind = "conversation_deleted"
	EventMessageNew          EventKind = "conversation_message_new"
	EventBallotChanged       EventKind = "ballot_changed"
	EventBallotDeleted       EventKind = "ballot_deleted"
	EventOptionChanged       EventKind = "option_changed"
	EventVoteChanged         EventKind = "vote_changed"
)

// Event is a decoded "resource changed" notification. SecondaryID is the
// conversation or ballot id for kinds that address one.
type Event struct {
	Kind        EventKind
	GroupID     int64
	SecondaryID int64
}

func (e Event) key() string {
	return fmt.Sprintf("%s:%d:%d", e.Kind, e.GroupID, e.SecondaryID)
}

// Dispatcher routes notifications to the matching sync entry point. Passes
// for the same group never run concurrently. Identical events that arrive
// before the pass for the first one has started share that pass; an event
// arriving once a pass is running always gets a pass of its own.
//
// A started pass runs to completion even if its callers stop waiting.
type Dispatcher struct {
	svc     *Service
	logger  *slog.Logger
	flights singleflight.Group

	mu    sync.Mutex
	locks map[int64]*groupLock
}

// groupLock is dropped from the map once nobody holds or waits for it.
type groupLock struct {
	mu   sync.Mutex
	refs int
}

func NewDispatcher(svc *Service, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = svc.logger
	}
	return &Dispatcher{
		svc:    svc,
		logger: logger,
		locks:  make(map[int64]*groupLock),
	}
}

// Handle processes one event. Group-level not-found results are turned into a
// local tombstone and reported as ErrGroupDeleted.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	return d.run(ctx, ev.key(), ev.GroupID, func(ctx context.Context) error {
		return d.dispatch(ctx, ev)
	})
}

// SyncGroup runs a full pass over one group, serialized with event handling
// for that group.
func (d *Dispatcher) SyncGroup(ctx context.Context, groupID int64) error {
	return d.run(ctx, fmt.Sprintf("full:%d", groupID), groupID, func(ctx context.Context) error {
		return d.svc.syncGroupContents(ctx, groupID)
	})
}

// SyncAll is Service.SyncAll with every per-group pass serialized against
// event handling for that group.
func (d *Dispatcher) SyncAll(ctx context.Context) error {
	return d.svc.syncAll(ctx, d.SyncGroup)
}

func (d *Dispatcher) run(ctx context.Context, key string, groupID int64, pass func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	passCtx := context.WithoutCancel(ctx)
	ch := d.flights.DoChan(key, func() (any, error) {
		unlock := d.lock(groupID)
		defer unlock()
		// Callers arriving from here on get a pass of their own.
		d.flights.Forget(key)
		return nil, pass(passCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			d.logger.Debug("event coalesced", "key", key, "group_id", groupID)
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) lock(groupID int64) func() {
	d.mu.Lock()
	l, ok := d.locks[groupID]
	if !ok {
		l = &groupLock{}
		d.locks[groupID] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, groupID)
		}
		d.mu.Unlock()
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) error {
	logger := d.logger.With("pass_id", uuid.NewString(), "kind", ev.Kind, "group_id", ev.GroupID)

	var err error
	switch ev.Kind {
	case EventGroupChanged:
		err = d.svc.SyncGroup(ctx, ev.GroupID)
	case EventGroupDeleted:
		err = d.svc.markGroupDeleted(ctx, ev.GroupID)
	case EventParticipantChanged:
		err = d.svc.SyncParticipants(ctx, ev.GroupID)
	case EventConversationChanged:
		err = d.svc.SyncConversation(ctx, ev.GroupID, ev.SecondaryID)
	case EventConversationDeleted:
		err = d.svc.markConversationClosed(ctx, ev.SecondaryID)
	case EventMessageNew:
		_, err = d.svc.SyncMessages(ctx, ev.GroupID, ev.SecondaryID)
	case EventBallotChanged, EventOptionChanged, EventVoteChanged:
		err = d.svc.SyncBallot(ctx, ev.GroupID, ev.SecondaryID)
	case EventBallotDeleted:
		err = d.svc.deleteLocalBallot(ctx, ev.SecondaryID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}

	if IsNotFound(err) {
		if merr := d.svc.markGroupDeleted(ctx, ev.GroupID); merr != nil {
			return merr
		}
		err = ErrGroupDeleted
	}
	switch {
	case errors.Is(err, ErrGroupDeleted):
		logger.Info("group gone while handling event")
	case err != nil:
		logger.Error("event handling failed", "error", err)
	default:
		logger.Debug("event handled")
	}
	return err
}
