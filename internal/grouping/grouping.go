// Package grouping clusters a message feed into visual runs for display.
//
// A run is a maximal consecutive subsequence of messages from one author
// where each message follows the previous within the proximity window.
// Header metadata (author name, timestamp) is rendered once per run, on
// the first message; the rest render content-only.
package grouping

import (
	"time"

	"github.com/Ncn914491/groupsync/internal/models"
)

// SameRunWindow is the maximum gap between two adjacent messages of the
// same author for them to share a run. The comparison is strict: a gap of
// exactly SameRunWindow starts a new run.
const SameRunWindow = 5 * time.Minute

// Run is a display cluster of consecutive same-author messages.
type Run struct {
	// Author is the run's author, attached once for the header slot.
	Author models.User

	// StartedAt is the timestamp of the run's first message.
	StartedAt time.Time

	// Messages holds the run's messages in feed order.
	Messages []models.Message
}

// Group clusters messages into runs. It is deterministic, allocates fresh
// slices, and never mutates its input; pending optimistic entries are
// clustered like any other message.
func Group(messages []models.Message) []Run {
	if len(messages) == 0 {
		return nil
	}

	runs := make([]Run, 0, len(messages))
	for _, msg := range messages {
		if n := len(runs); n > 0 && sameRun(&runs[n-1], msg) {
			runs[n-1].Messages = append(runs[n-1].Messages, msg)
			continue
		}
		runs = append(runs, Run{
			Author:    msg.Author,
			StartedAt: msg.CreatedAt,
			Messages:  []models.Message{msg},
		})
	}
	return runs
}

// sameRun reports whether msg extends run: same author and within the
// proximity window of the run's last message.
func sameRun(run *Run, msg models.Message) bool {
	if run.Author.ID != msg.Author.ID {
		return false
	}
	last := run.Messages[len(run.Messages)-1]
	gap := msg.CreatedAt.Sub(last.CreatedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap < SameRunWindow
}
