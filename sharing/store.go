package sharing

import (
	"context"
	"fmt"
)

// ErrorType represents the type of sharing error
type ErrorType string

const (
	// ErrStorage indicates the backing invite store failed.
	ErrStorage ErrorType = "storage"
)

// Error represents a sharing-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store persists the invites of one shared collection.
//
// Both UserID and UID are unique within a store; AddOrUpdateRecord upserts
// by UserID, replacing every field of an existing row including its UID.
// Implementations must serialize writers themselves (a single write
// connection, a mutex, ...); the coordinator relies on that and adds no
// locking of its own. Readers may observe the last committed state while a
// writer runs.
type Store interface {
	// Create initializes the backing storage. It is idempotent and
	// records the schema version for future migration.
	Create(ctx context.Context) error

	// Remove closes and deletes all backing storage for the collection.
	Remove(ctx context.Context) error

	// AllRecords returns every invite ordered by UserID ascending.
	AllRecords(ctx context.Context) ([]Invite, error)

	// RecordForUserID returns the invite for the user, or nil if absent.
	RecordForUserID(ctx context.Context, userID string) (*Invite, error)

	// RecordForInviteUID returns the invite with the UID, or nil if
	// absent.
	RecordForInviteUID(ctx context.Context, uid string) (*Invite, error)

	// AddOrUpdateRecord upserts an invite keyed by UserID.
	AddOrUpdateRecord(ctx context.Context, invite Invite) error

	// RemoveRecordForUserID deletes the invite for the user. Removing an
	// absent record is a no-op, not an error.
	RemoveRecordForUserID(ctx context.Context, userID string) error

	// RemoveRecordForInviteUID deletes the invite with the UID, no-op if
	// absent.
	RemoveRecordForInviteUID(ctx context.Context, uid string) error
}

// Shareable is the capability a collection resource implements to take
// part in sharing. The shared-owner and virtual-share markers are
// independent views: the owner side sees SharedOwner, an invitee's
// reference sees Shared, never both for one viewer.
type Shareable interface {
	// IsShared reports whether this collection carries the shared-owner
	// marker.
	IsShared() bool

	// IsVirtualShare reports whether this collection is a shared
	// reference seen by an invitee.
	IsVirtualShare() bool

	// MarkShared adds the shared-owner marker.
	MarkShared()

	// UnmarkShared removes the shared-owner marker.
	UnmarkShared()

	// InviteStore returns the collection's invite store, initializing it
	// on first use.
	InviteStore() (Store, error)

	// DiscardInviteStore drops the cached store handle after the backing
	// storage has been removed.
	DiscardInviteStore()
}
