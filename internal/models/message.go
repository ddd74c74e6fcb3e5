package models

import (
	"strings"
	"time"
	"unicode/utf16"
)

// MaxMessageLength is the maximum message content length in UTF-16 code
// units, matching the limit the portal enforces server-side.
const MaxMessageLength = 500

// User identifies a message author.
type User struct {
	// ID is the server-assigned user identifier.
	ID string `json:"id"`

	// DisplayName is the name shown alongside the user's messages.
	DisplayName string `json:"display_name"`
}

// Message is a single group chat message.
//
// A pending message exists only locally, between optimistic append and
// server confirmation: it has a LocalID but no server ID, and is either
// replaced by the server-returned copy or removed on rejection.
type Message struct {
	// ID is the server-assigned message identifier. Empty while pending.
	ID string `json:"id"`

	// LocalID correlates an optimistic entry with its eventual server
	// echo. Only set on client-authored messages.
	LocalID string `json:"-"`

	// Content is the message body.
	Content string `json:"content"`

	// Author is the user that sent the message.
	Author User `json:"author"`

	// CreatedAt is the server-assigned creation time. For a pending
	// message it holds the local append time until confirmation.
	CreatedAt time.Time `json:"created_at"`

	// Pending is true for an optimistic entry awaiting confirmation.
	Pending bool `json:"-"`
}

// Validate checks that a message received from the server is usable.
func (m *Message) Validate() error {
	validation := &ValidationErrors{}
	if m.ID == "" {
		validation.AddMessage("id", "message id is required")
	}
	if m.Author.ID == "" {
		validation.AddMessage("author.id", "message author id is required")
	}
	if m.CreatedAt.IsZero() {
		validation.AddMessage("created_at", "message timestamp is required")
	}
	return validation.Err()
}

// ContentLength returns the length of s in UTF-16 code units, which is the
// unit the portal's character limit is defined in.
func ContentLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// ValidateContent checks outbound message content against the compose
// rules: non-empty after trimming and at most limit code units. A limit of
// zero falls back to MaxMessageLength.
func ValidateContent(content string, limit int) error {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	validation := &ValidationErrors{}
	if strings.TrimSpace(content) == "" {
		validation.AddMessage("content", "message content is empty")
	}
	if ContentLength(content) > limit {
		validation.AddMessage("content", "message content exceeds character limit")
	}
	return validation.Err()
}
