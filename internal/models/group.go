// Package models defines the core data types shared across groupsync.
package models

// Group is a read-only snapshot of a chat group as reported by the portal.
// Snapshots are replaced wholesale on each catalog fetch, never merged.
type Group struct {
	// ID is the server-assigned group identifier.
	ID string `json:"id"`

	// Name is the display name of the group.
	Name string `json:"name"`

	// Description is the optional group description.
	Description string `json:"description,omitempty"`

	// MemberIDs lists member user IDs. The server may omit or truncate
	// this list, so it must never be used to derive membership.
	MemberIDs []string `json:"member_ids,omitempty"`

	// IsMember is the server-computed membership flag for the current
	// user. This is the only authoritative membership signal.
	IsMember bool `json:"is_member"`

	// MemberCount is the server-reported member count.
	MemberCount int `json:"member_count"`
}

// Validate checks that a group snapshot received from the server is usable.
func (g *Group) Validate() error {
	validation := &ValidationErrors{}
	if g.ID == "" {
		validation.AddMessage("id", "group id is required")
	}
	if g.Name == "" {
		validation.AddMessage("name", "group name is required")
	}
	return validation.Err()
}
