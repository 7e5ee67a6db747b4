package principal

import (
	"fmt"

	"github.com/greatdennis/ccs-calendarserver/access"
	"github.com/greatdennis/ccs-calendarserver/directory"
)

// Resource is the principal resource for one directory record. It is a
// stateless view: everything it exposes derives from the record and the
// resource's position in the hierarchy.
type Resource struct {
	prov   *Provisioning
	record directory.Record
}

// Record returns the underlying directory record.
func (r *Resource) Record() directory.Record {
	return r.record
}

// PrincipalURL returns the canonical URL of this principal: the hierarchy
// root plus record type plus short name, without trailing slash.
func (r *Resource) PrincipalURL() string {
	return r.prov.url + string(r.record.Type) + "/" + r.record.ShortName
}

// PrincipalUID returns the principal's identifier, its short name.
func (r *Resource) PrincipalUID() string {
	return r.record.ShortName
}

// PrincipalCollectionURL returns the hierarchy root URL.
func (r *Resource) PrincipalCollectionURL() string {
	return r.prov.url
}

// DisplayName returns the record's full name, falling back to the short
// name.
func (r *Resource) DisplayName() string {
	if r.record.FullName != "" {
		return r.record.FullName
	}
	return r.record.ShortName
}

// CalendarUserAddresses returns every address this principal is known by:
// its principal URL, its urn:uuid: form, and the addresses on its record.
func (r *Resource) CalendarUserAddresses() []string {
	addresses := []string{r.PrincipalURL()}
	if r.record.UID != "" {
		addresses = append(addresses, "urn:uuid:"+r.record.UID)
	}
	addresses = append(addresses, r.record.CalendarUserAddresses...)
	return addresses
}

// GroupMembers resolves the principals this group contains.
func (r *Resource) GroupMembers() ([]*Resource, error) {
	return r.resolveUIDs(r.record.MemberUIDs)
}

// GroupMemberships resolves the group principals containing this
// principal.
func (r *Resource) GroupMemberships() ([]*Resource, error) {
	return r.resolveUIDs(r.record.GroupUIDs)
}

func (r *Resource) resolveUIDs(uids []string) ([]*Resource, error) {
	members := make([]*Resource, 0, len(uids))
	for _, uid := range uids {
		rec, err := r.prov.dir.RecordWithUID(uid)
		if err != nil {
			return nil, fmt.Errorf("directory lookup failed for uid %s: %w", uid, err)
		}
		if rec == nil {
			// Stale membership reference; skip rather than fail.
			continue
		}
		members = append(members, r.prov.PrincipalForRecord(rec))
	}
	return members, nil
}

// CalendarHomeURL returns the principal's calendar home collection URL, or
// empty when no home provisioner is attached.
func (r *Resource) CalendarHomeURL() string {
	if r.prov.homes == nil {
		return ""
	}
	return r.prov.homes.HomeURL(&r.record)
}

// ScheduleInboxURL returns the schedule inbox URL, or empty without a home
// provisioner.
func (r *Resource) ScheduleInboxURL() string {
	if r.prov.homes == nil {
		return ""
	}
	return r.prov.homes.ScheduleInboxURL(&r.record)
}

// ScheduleOutboxURL returns the schedule outbox URL, or empty without a
// home provisioner.
func (r *Resource) ScheduleOutboxURL() string {
	if r.prov.homes == nil {
		return ""
	}
	return r.prov.homes.ScheduleOutboxURL(&r.record)
}

// AccessControlList implements access.Resource
func (r *Resource) AccessControlList() access.ACL {
	return access.DefaultACL()
}

// Parent implements access.Resource; a principal's parent is its type
// collection.
func (r *Resource) Parent() access.Resource {
	return &TypeCollection{prov: r.prov, recordType: r.record.Type}
}
