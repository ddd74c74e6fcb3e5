package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ncn914491/groupsync/internal/auth"
	"github.com/Ncn914491/groupsync/internal/config"
	"github.com/Ncn914491/groupsync/internal/events"
	"github.com/Ncn914491/groupsync/internal/gateway"
	"github.com/Ncn914491/groupsync/internal/logging"
	"github.com/Ncn914491/groupsync/internal/models"
	"github.com/Ncn914491/groupsync/internal/store"
)

// SessionState is the open session's lifecycle state.
type SessionState string

const (
	// SessionClosed: no session active.
	SessionClosed SessionState = "closed"

	// SessionOpening: session created, first fetch not yet succeeded.
	SessionOpening SessionState = "opening"

	// SessionActive: first fetch succeeded, polling on the interval.
	SessionActive SessionState = "active"
)

// openSession is the polling session for the single open group. Results
// of in-flight fetches are applied only while the session is still the
// engine's current one; the pointer itself is the identity guard, so a
// rapid close/re-open of the same group cannot cross wires.
type openSession struct {
	id         string
	groupID    string
	state      SessionState
	messages   []models.Message
	lastSeenID string
	lastSync   error
	fetchBusy  bool
	sendBusy   bool
	cancel     context.CancelFunc
	done       chan struct{}
	logger     zerolog.Logger
}

// Open starts a polling session for the group. The previous session (if
// any) is torn down first; its timer is cancelled before the new session
// exists, so two timers never run concurrently. Opening a non-member
// group fails with NotMemberError and changes nothing. Opening the group
// that is already open is a no-op.
func (e *Engine) Open(groupID string) error {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return auth.ErrExpired
	}
	if _, ok := e.members[groupID]; !ok {
		e.mu.Unlock()
		return &NotMemberError{GroupID: groupID}
	}
	if e.open != nil && e.open.groupID == groupID {
		e.mu.Unlock()
		return nil
	}

	closed := e.closeSessionLocked()

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	s := &openSession{
		id:      id,
		groupID: groupID,
		state:   SessionOpening,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logging.WithSession(id).With().Str("group_id", groupID).Logger(),
	}
	e.open = s
	e.mu.Unlock()

	if closed != "" {
		e.bus.Publish(ctx, events.New(models.EventTypeSessionClosed, models.EntityTypeSession, closed, nil))
	}

	s.logger.Info().Msg("session opened")
	e.bus.Publish(ctx, events.New(models.EventTypeSessionOpened, models.EntityTypeSession, groupID, nil))

	go e.pollLoop(ctx, s)
	return nil
}

// CloseSession tears down the open session, if any. The pending timer is
// cancelled deterministically; an in-flight fetch is not hard-cancelled
// but its result is discarded by the session identity guard.
func (e *Engine) CloseSession() {
	e.mu.Lock()
	closed := e.closeSessionLocked()
	e.mu.Unlock()

	if closed != "" {
		e.bus.Publish(context.Background(), events.New(models.EventTypeSessionClosed, models.EntityTypeSession, closed, nil))
	}
}

// closeSessionLocked cancels the open session and detaches it from the
// engine. Caller holds e.mu. Returns the closed group's id, or "".
func (e *Engine) closeSessionLocked() string {
	s := e.open
	if s == nil {
		return ""
	}
	s.cancel()
	s.state = SessionClosed
	e.open = nil
	s.logger.Debug().Msg("session closed")
	return s.groupID
}

// OpenGroup returns the open group's id and session state, or ok=false
// when no session is active.
func (e *Engine) OpenGroup() (groupID string, state SessionState, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open == nil {
		return "", SessionClosed, false
	}
	return e.open.groupID, e.open.state, true
}

// Messages returns the open session's message list, pending entries
// included, or nil when no session is active.
func (e *Engine) Messages() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open == nil {
		return nil
	}
	return cloneMessages(e.open.messages)
}

// SyncErr returns the open session's latest tick error, nil after a
// successful tick or when no session is active.
func (e *Engine) SyncErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open == nil {
		return nil
	}
	return e.open.lastSync
}

// pollLoop drives the session: seed from cache, fetch immediately, then
// refetch on the fixed interval until the session context is cancelled.
func (e *Engine) pollLoop(ctx context.Context, s *openSession) {
	defer close(s.done)

	e.seedFeedFromCache(ctx, s)

	// First fetch is immediate, no initial delay.
	e.tick(ctx, s)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, s)
		}
	}
}

// seedFeedFromCache shows the last cached feed while the first fetch is
// in flight. Applied only while the session is still current and empty.
func (e *Engine) seedFeedFromCache(ctx context.Context, s *openSession) {
	if e.cache == nil {
		return
	}
	messages, err := e.cache.LoadFeed(ctx, s.groupID)
	if err != nil {
		if err != store.ErrNoSnapshot && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Msg("failed to seed feed from cache")
		}
		return
	}

	e.mu.Lock()
	if e.open == s && s.state == SessionOpening && len(s.messages) == 0 {
		s.messages = messages
	}
	e.mu.Unlock()
}

// tick performs one poll cycle: at most one fetch per session may be in
// flight, so a tick that finds one pending is skipped, not queued.
func (e *Engine) tick(ctx context.Context, s *openSession) {
	e.mu.Lock()
	if e.open != s || s.fetchBusy {
		e.mu.Unlock()
		return
	}
	s.fetchBusy = true

	var opts gateway.ListOptions
	if e.cfg.RefreshMode == config.RefreshModeIncremental && s.state == SessionActive {
		opts.AfterID = s.lastSeenID
	}
	e.mu.Unlock()

	messages, err := e.gw.ListMessages(ctx, s.groupID, opts)

	e.mu.Lock()
	if e.open != s {
		// Session was closed (or replaced) while the fetch was in
		// flight; discard the result.
		e.mu.Unlock()
		return
	}
	s.fetchBusy = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			e.mu.Unlock()
			return
		}
		syncErr := &SyncError{GroupID: s.groupID, Cause: err}
		s.lastSync = syncErr
		e.mu.Unlock()

		if errors.Is(err, auth.ErrExpired) {
			// The auth expiry signal tears the session down.
			return
		}
		s.logger.Warn().Err(err).Msg("poll tick failed, keeping schedule")
		e.bus.Publish(ctx, events.New(models.EventTypeSyncFailed, models.EntityTypeSession, s.groupID, nil))
		return
	}

	s.lastSync = nil
	if e.cfg.RefreshMode == config.RefreshModeIncremental && s.state == SessionActive {
		e.mergeFeedLocked(s, messages)
	} else {
		e.replaceFeedLocked(s, messages)
	}
	if s.state == SessionOpening {
		s.state = SessionActive
	}
	snapshot := cloneMessages(s.messages)
	count := len(snapshot)
	e.mu.Unlock()

	e.bus.Publish(ctx, events.New(models.EventTypeSyncRefreshed, models.EntityTypeSession, s.groupID, models.SyncRefreshedPayload{
		GroupID:      s.groupID,
		MessageCount: count,
	}))
	e.writeFeedSnapshot(s.groupID, snapshot)
}

// replaceFeedLocked applies a full-list refresh: the server snapshot
// replaces local state wholesale, except that client-authored entries the
// snapshot does not know yet survive. A pending entry whose echo already
// appears in the snapshot (same author and content, matched in feed
// order) is dropped in favor of the echo, so an in-flight send is never
// shown twice. Caller holds e.mu.
func (e *Engine) replaceFeedLocked(s *openSession, server []models.Message) {
	serverIDs := make(map[string]struct{}, len(server))
	for _, msg := range server {
		serverIDs[msg.ID] = struct{}{}
	}

	claimed := make(map[int]struct{})
	echoed := func(pending models.Message) bool {
		for i, msg := range server {
			if _, ok := claimed[i]; ok {
				continue
			}
			if msg.Author.ID == pending.Author.ID && msg.Content == pending.Content {
				claimed[i] = struct{}{}
				return true
			}
		}
		return false
	}

	var local []models.Message
	for _, msg := range s.messages {
		if msg.Pending {
			if !echoed(msg) {
				local = append(local, msg)
			}
			continue
		}
		if msg.LocalID != "" {
			if _, ok := serverIDs[msg.ID]; !ok {
				local = append(local, msg)
			}
		}
	}

	s.messages = append(cloneMessages(server), local...)
	if len(server) > 0 {
		s.lastSeenID = server[len(server)-1].ID
	}
}

// mergeFeedLocked applies an incremental refresh: new server messages are
// appended unless already present by id. Caller holds e.mu.
func (e *Engine) mergeFeedLocked(s *openSession, server []models.Message) {
	known := make(map[string]struct{}, len(s.messages))
	for _, msg := range s.messages {
		if msg.ID != "" {
			known[msg.ID] = struct{}{}
		}
	}

	for _, msg := range server {
		if _, ok := known[msg.ID]; ok {
			continue
		}
		s.messages = append(s.messages, msg)
		s.lastSeenID = msg.ID
	}
}

// writeFeedSnapshot persists a feed snapshot to the local cache. Best
// effort: failures are logged, never surfaced.
func (e *Engine) writeFeedSnapshot(groupID string, messages []models.Message) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SaveFeed(context.Background(), groupID, messages); err != nil {
		glog := logging.WithGroup(groupID)
		glog.Warn().Err(err).Msg("failed to write feed snapshot")
	}
}
