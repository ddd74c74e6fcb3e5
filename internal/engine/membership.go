package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/Ncn914491/groupsync/internal/auth"
	"github.com/Ncn914491/groupsync/internal/events"
	"github.com/Ncn914491/groupsync/internal/logging"
	"github.com/Ncn914491/groupsync/internal/models"
)

// IsMember reports whether the current user belongs to the group.
func (e *Engine) IsMember(groupID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.members[groupID]
	return ok
}

// Members returns the current membership set, sorted.
func (e *Engine) Members() []string {
	e.mu.Lock()
	out := make([]string, 0, len(e.members))
	for id := range e.members {
		out = append(out, id)
	}
	e.mu.Unlock()

	sort.Strings(out)
	return out
}

// Join adds the current user to a group. The registry is updated
// optimistically on success and a background catalog refresh reconciles
// member counts; the refresh takes a fresh staleness token, so a slower
// stale response cannot revert the update.
func (e *Engine) Join(ctx context.Context, groupID string) error {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return auth.ErrExpired
	}
	if _, ok := e.members[groupID]; ok {
		e.mu.Unlock()
		return &AlreadyMemberError{GroupID: groupID}
	}
	e.mu.Unlock()

	if err := e.gw.JoinGroup(ctx, groupID); err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return err
		}
		glog := logging.WithGroup(groupID)
		glog.Warn().Err(err).Msg("join failed")
		return &MembershipError{GroupID: groupID, Op: "join", Cause: err}
	}

	e.mu.Lock()
	e.members[groupID] = struct{}{}
	e.setMembershipFlagLocked(groupID, true)
	e.mu.Unlock()

	glog := logging.WithGroup(groupID)

	glog.Info().Msg("joined group")
	e.bus.Publish(ctx, events.New(models.EventTypeMembershipJoined, models.EntityTypeGroup, groupID, nil))

	// Reconcile member counts in the background.
	go func() { _ = e.Refresh(context.Background()) }()
	return nil
}

// Leave removes the current user from a group. If the group is currently
// open, its polling session is torn down synchronously before the network
// call is issued: a left group stops polling immediately. On failure the
// registry is left untouched.
func (e *Engine) Leave(ctx context.Context, groupID string) error {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return auth.ErrExpired
	}
	if _, ok := e.members[groupID]; !ok {
		e.mu.Unlock()
		return &NotMemberError{GroupID: groupID}
	}

	var closed string
	if e.open != nil && e.open.groupID == groupID {
		closed = e.closeSessionLocked()
	}
	e.mu.Unlock()

	if closed != "" {
		e.bus.Publish(ctx, events.New(models.EventTypeSessionClosed, models.EntityTypeSession, closed, nil))
	}

	if err := e.gw.LeaveGroup(ctx, groupID); err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return err
		}
		glog := logging.WithGroup(groupID)
		glog.Warn().Err(err).Msg("leave failed")
		return &MembershipError{GroupID: groupID, Op: "leave", Cause: err}
	}

	e.mu.Lock()
	delete(e.members, groupID)
	e.setMembershipFlagLocked(groupID, false)
	e.mu.Unlock()

	glog := logging.WithGroup(groupID)

	glog.Info().Msg("left group")
	e.bus.Publish(ctx, events.New(models.EventTypeMembershipLeft, models.EntityTypeGroup, groupID, nil))

	if e.cache != nil {
		if err := e.cache.DeleteFeed(context.Background(), groupID); err != nil {
			glog := logging.WithGroup(groupID)
			glog.Warn().Err(err).Msg("failed to drop cached feed")
		}
	}

	go func() { _ = e.Refresh(context.Background()) }()
	return nil
}

// setMembershipFlagLocked updates the catalog snapshot's membership flag
// so the catalog and registry agree between refreshes. Caller holds e.mu.
func (e *Engine) setMembershipFlagLocked(groupID string, isMember bool) {
	for i := range e.catalog {
		if e.catalog[i].ID == groupID {
			e.catalog[i].IsMember = isMember
			return
		}
	}
}
