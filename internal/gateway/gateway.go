// Package gateway defines the remote portal gateway consumed by the
// engine, and an HTTP implementation of it. Operation names mirror the
// portal's group-chat API; the engine depends only on the interface.
package gateway

import (
	"context"
	"fmt"

	"github.com/Ncn914491/groupsync/internal/models"
)

// Client is the remote gateway the sync engine talks to. All operations
// attach the current bearer credential and return typed failures.
type Client interface {
	// ListGroups returns the full group catalog with per-group
	// membership flags for the current user.
	ListGroups(ctx context.Context) ([]models.Group, error)

	// JoinGroup adds the current user to a group.
	JoinGroup(ctx context.Context, groupID string) error

	// LeaveGroup removes the current user from a group.
	LeaveGroup(ctx context.Context, groupID string) error

	// ListMessages returns a group's message feed in creation order.
	ListMessages(ctx context.Context, groupID string, opts ListOptions) ([]models.Message, error)

	// CreateMessage posts a message and returns the server copy with
	// its authoritative id and timestamp.
	CreateMessage(ctx context.Context, groupID, content string) (models.Message, error)
}

// ListOptions narrows a ListMessages call.
type ListOptions struct {
	// AfterID, when set, asks only for messages created after the given
	// message id (incremental refresh mode).
	AfterID string
}

// Credentials supplies the bearer token for gateway calls and accepts the
// server's verdict that it has expired.
type Credentials interface {
	// Token returns the current bearer credential.
	Token() (string, error)

	// MarkExpired records that the server rejected the credential.
	MarkExpired()
}

// StatusError is a non-auth HTTP failure from the portal.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("portal returned status %d: %s", e.StatusCode, e.Message)
}

// PayloadError indicates the server response did not match the expected
// shape and was rejected at the boundary.
type PayloadError struct {
	Operation string
	Cause     error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.Operation, e.Cause)
}

func (e *PayloadError) Unwrap() error {
	return e.Cause
}
