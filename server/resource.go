package server

import (
	"sync"

	"github.com/emersion/go-ical"

	"github.com/greatdennis/ccs-calendarserver/access"
	"github.com/greatdennis/ccs-calendarserver/sharing"
)

// Resource type markers on a collection. SharedOwner appears on the owner's
// collection, Shared on the reference an invitee sees; a single viewer
// never carries both.
const (
	ResourceTypeCollection  = "collection"
	ResourceTypeCalendar    = "calendar"
	ResourceTypeSharedOwner = "shared-owner"
	ResourceTypeShared      = "shared"
)

// StoreFactory creates the invite store for a collection.
type StoreFactory func(c *Collection) (sharing.Store, error)

// Collection is a calendar collection resource that can be shared. It
// implements sharing.Shareable and access.Resource.
type Collection struct {
	// Path is the collection's URL path, e.g. "/calendars/alice/work/".
	Path string

	// OwnerURL is the owner's principal URL, exposed as the owner
	// property for access control.
	OwnerURL string

	// CalendarData holds the collection's VCALENDAR properties (name,
	// description, color).
	CalendarData *ical.Calendar

	// ACL holds the collection's own access-control entries; the default
	// ACL applies when empty.
	ACL access.ACL

	// ParentResource is the containing resource for ACL inheritance.
	ParentResource access.Resource

	// NewStore creates the backing invite store; required before any
	// sharing operation.
	NewStore StoreFactory

	mu           sync.Mutex
	sharedOwner  bool
	virtualShare bool
	store        sharing.Store
}

// ResourceTypes returns the collection's resource type set including the
// sharing markers currently present.
func (c *Collection) ResourceTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := []string{ResourceTypeCollection, ResourceTypeCalendar}
	if c.sharedOwner {
		types = append(types, ResourceTypeSharedOwner)
	}
	if c.virtualShare {
		types = append(types, ResourceTypeShared)
	}
	return types
}

// IsShared implements sharing.Shareable
func (c *Collection) IsShared() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sharedOwner
}

// IsVirtualShare implements sharing.Shareable
func (c *Collection) IsVirtualShare() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.virtualShare
}

// MarkShared implements sharing.Shareable
func (c *Collection) MarkShared() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sharedOwner = true
}

// UnmarkShared implements sharing.Shareable
func (c *Collection) UnmarkShared() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sharedOwner = false
}

// MarkVirtualShare flags this collection as an invitee-side reference to
// someone else's share.
func (c *Collection) MarkVirtualShare() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.virtualShare = true
}

// InviteStore implements sharing.Shareable. The handle is created once and
// cached on the collection.
func (c *Collection) InviteStore() (sharing.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store, nil
	}
	store, err := c.NewStore(c)
	if err != nil {
		return nil, err
	}
	c.store = store
	return c.store, nil
}

// DiscardInviteStore implements sharing.Shareable
func (c *Collection) DiscardInviteStore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = nil
}

// AccessControlList implements access.Resource
func (c *Collection) AccessControlList() access.ACL {
	if len(c.ACL) > 0 {
		return c.ACL
	}
	return access.DefaultACL()
}

// Parent implements access.Resource
func (c *Collection) Parent() access.Resource {
	return c.ParentResource
}

// PrincipalProperty implements access.PropertySource, exposing the owner
// for property-matched access control entries.
func (c *Collection) PrincipalProperty(name string) (string, bool) {
	if name == "owner" && c.OwnerURL != "" {
		return c.OwnerURL, true
	}
	return "", false
}
