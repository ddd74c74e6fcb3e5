package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Ncn914491/groupsync/internal/auth"
	"github.com/Ncn914491/groupsync/internal/events"
	"github.com/Ncn914491/groupsync/internal/models"
)

// Send validates the draft, appends it to the open feed as a pending
// entry, and delivers it to the gateway. On confirmation the pending
// entry is replaced in place by the server's version; on failure it is
// removed and the draft restored verbatim for retry. At most one send
// per session may be in flight.
func (e *Engine) Send(ctx context.Context) error {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return auth.ErrExpired
	}
	s := e.open
	if s == nil {
		e.mu.Unlock()
		return ErrNoOpenSession
	}
	if s.sendBusy {
		e.mu.Unlock()
		return ErrSendInFlight
	}

	content := e.draft
	if err := models.ValidateContent(content, e.cfg.CharacterLimit); err != nil {
		e.mu.Unlock()
		return &SendError{GroupID: s.groupID, Cause: err}
	}

	pending := models.Message{
		LocalID:   uuid.New().String(),
		Content:   content,
		Author:    e.cfg.Self,
		CreatedAt: time.Now(),
		Pending:   true,
	}
	s.sendBusy = true
	e.draft = ""
	s.messages = append(s.messages, pending)
	groupID := s.groupID
	e.mu.Unlock()

	sent, err := e.gw.CreateMessage(ctx, groupID, content)

	e.mu.Lock()
	if e.open != s {
		// Session changed under the send (closed, replaced, or torn
		// down by auth expiry); the pending entry died with it and
		// there is no feed to roll back. A failed send still gets its
		// draft back: unsent text is never silently discarded.
		if err != nil && e.draft == "" {
			e.draft = content
		}
		e.mu.Unlock()
		if err != nil {
			if errors.Is(err, auth.ErrExpired) {
				return err
			}
			return &SendError{GroupID: groupID, Cause: err}
		}
		return nil
	}
	s.sendBusy = false

	if err != nil {
		e.removePendingLocked(s, pending.LocalID)
		// Restore the draft so the user can retry without retyping,
		// unless they started composing something else meanwhile.
		if e.draft == "" {
			e.draft = content
		}
		e.mu.Unlock()

		if errors.Is(err, auth.ErrExpired) {
			return err
		}
		e.logger.Warn().Err(err).Str("group_id", groupID).Msg("send failed, rolled back")
		e.bus.Publish(ctx, events.New(models.EventTypeMessageSendFailed, models.EntityTypeMessage, pending.LocalID, models.SendFailedPayload{
			GroupID: groupID,
			Error:   err.Error(),
		}))
		return &SendError{GroupID: groupID, Cause: err}
	}

	e.confirmPendingLocked(s, pending.LocalID, sent)
	e.mu.Unlock()

	e.logger.Debug().Str("group_id", groupID).Str("message_id", sent.ID).Msg("message sent")
	e.bus.Publish(ctx, events.New(models.EventTypeMessageSent, models.EntityTypeMessage, sent.ID, nil))
	return nil
}

// removePendingLocked drops the pending entry with the given local id.
// Caller holds e.mu.
func (e *Engine) removePendingLocked(s *openSession, localID string) {
	for i, msg := range s.messages {
		if msg.Pending && msg.LocalID == localID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// confirmPendingLocked swaps the pending entry for the server-confirmed
// message, keeping its feed position. If a poll already delivered the
// server's copy, the pending entry is dropped instead of duplicated.
// Caller holds e.mu.
func (e *Engine) confirmPendingLocked(s *openSession, localID string, sent models.Message) {
	alreadyKnown := false
	for _, msg := range s.messages {
		if !msg.Pending && msg.ID == sent.ID {
			alreadyKnown = true
			break
		}
	}

	for i, msg := range s.messages {
		if !msg.Pending || msg.LocalID != localID {
			continue
		}
		if alreadyKnown {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
		confirmed := sent
		confirmed.LocalID = localID
		confirmed.Pending = false
		s.messages[i] = confirmed
		return
	}
}
