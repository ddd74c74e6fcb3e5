package engine

import (
	"errors"
	"fmt"
)

// Precondition errors. These are caller bugs, rejected synchronously and
// never retried; they never reach the network layer.
var (
	// ErrNoOpenSession indicates a send with no group open.
	ErrNoOpenSession = errors.New("no open group session")

	// ErrSendInFlight indicates a send was attempted while another send
	// for the same session is still pending.
	ErrSendInFlight = errors.New("a send is already in flight")
)

// NotMemberError indicates an operation that requires membership was
// attempted on a group the user does not belong to.
type NotMemberError struct {
	GroupID string
}

func (e *NotMemberError) Error() string {
	return fmt.Sprintf("not a member of group %s", e.GroupID)
}

// AlreadyMemberError indicates a join was attempted on a group the user
// already belongs to.
type AlreadyMemberError struct {
	GroupID string
}

func (e *AlreadyMemberError) Error() string {
	return fmt.Sprintf("already a member of group %s", e.GroupID)
}

// CatalogError indicates a catalog load failed. The last good snapshot is
// preserved.
type CatalogError struct {
	Cause error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog load failed: %v", e.Cause)
}

func (e *CatalogError) Unwrap() error {
	return e.Cause
}

// MembershipError indicates a join/leave mutation failed. The membership
// registry is left untouched.
type MembershipError struct {
	GroupID string
	Op      string
	Cause   error
}

func (e *MembershipError) Error() string {
	return fmt.Sprintf("%s group %s failed: %v", e.Op, e.GroupID, e.Cause)
}

func (e *MembershipError) Unwrap() error {
	return e.Cause
}

// SyncError indicates a poll tick failed. Polling continues on the
// existing schedule; the error is visible but non-blocking.
type SyncError struct {
	GroupID string
	Cause   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed for group %s: %v", e.GroupID, e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// SendError indicates a send failed after the optimistic append. The
// entry has been rolled back and the compose draft restored.
type SendError struct {
	GroupID string
	Cause   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to group %s failed: %v", e.GroupID, e.Cause)
}

func (e *SendError) Unwrap() error {
	return e.Cause
}
