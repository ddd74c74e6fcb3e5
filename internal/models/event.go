package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes engine events.
type EventType string

const (
	// Catalog events
	EventTypeCatalogRefreshed EventType = "catalog.refreshed"
	EventTypeCatalogFailed    EventType = "catalog.failed"

	// Membership events
	EventTypeMembershipJoined EventType = "membership.joined"
	EventTypeMembershipLeft   EventType = "membership.left"

	// Session events
	EventTypeSessionOpened EventType = "session.opened"
	EventTypeSessionClosed EventType = "session.closed"

	// Sync events
	EventTypeSyncRefreshed EventType = "sync.refreshed"
	EventTypeSyncFailed    EventType = "sync.failed"

	// Send events
	EventTypeMessageSent       EventType = "message.sent"
	EventTypeMessageSendFailed EventType = "message.send_failed"

	// Auth events
	EventTypeAuthExpired EventType = "auth.expired"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeCatalog EntityType = "catalog"
	EntityTypeGroup   EntityType = "group"
	EntityTypeMessage EntityType = "message"
	EntityTypeSession EntityType = "session"
)

// Event is a notification emitted by the engine when observable state
// changes. Presentation layers subscribe to these rather than polling the
// engine's accessors.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity (group ID for group,
	// session and sync events, message ID for send events).
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SyncRefreshedPayload is the payload for sync.refreshed events.
type SyncRefreshedPayload struct {
	GroupID      string `json:"group_id"`
	MessageCount int    `json:"message_count"`
}

// SendFailedPayload is the payload for message.send_failed events.
type SendFailedPayload struct {
	GroupID string `json:"group_id"`
	Error   string `json:"error"`
}

// AuthExpiredPayload is the payload for auth.expired events.
type AuthExpiredPayload struct {
	Reason string `json:"reason,omitempty"`
}
