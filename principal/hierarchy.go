// Package principal exposes directory records as an addressable principal
// hierarchy: a provisioning root containing one collection per record type,
// each containing one principal resource per directory record.
package principal

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/mo"

	"github.com/greatdennis/ccs-calendarserver/access"
	"github.com/greatdennis/ccs-calendarserver/directory"
)

// Provisioning is the root of the principal hierarchy for one directory
// service. It is a pure read-through projection: child listings always
// reflect the live directory.
type Provisioning struct {
	url    string
	dir    directory.Service
	homes  *HomeProvisioning
	logger *slog.Logger
}

// NewProvisioning creates the hierarchy root mounted at url.
func NewProvisioning(url string, dir directory.Service, opts ...Option) *Provisioning {
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	if !strings.HasSuffix(url, "/") {
		url = url + "/"
	}
	p := &Provisioning{
		url:    url,
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option represents a configuration option for Provisioning
type Option func(*Provisioning)

// WithLogger sets the logger for the hierarchy
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioning) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHomeProvisioning attaches a calendar-home provisioner; without one,
// principals have no calendar home or schedule URLs.
func WithHomeProvisioning(homes *HomeProvisioning) Option {
	return func(p *Provisioning) {
		p.homes = homes
	}
}

// URL returns the hierarchy root URL, with trailing slash.
func (p *Provisioning) URL() string {
	return p.url
}

// PrincipalCollectionURL returns the root URL. Every node in the hierarchy
// reports the root, not its own URL, as its principal collection.
func (p *Provisioning) PrincipalCollectionURL() string {
	return p.url
}

// ListChildNames returns the record types the directory provides.
func (p *Provisioning) ListChildNames() []string {
	types := p.dir.RecordTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return names
}

// Child looks up the type collection for the named record type.
func (p *Provisioning) Child(name string) mo.Option[*TypeCollection] {
	for _, t := range p.dir.RecordTypes() {
		if string(t) == name {
			return mo.Some(&TypeCollection{prov: p, recordType: t})
		}
	}
	return mo.None[*TypeCollection]()
}

// PrincipalForRecord returns the principal resource for a directory record.
// It is position-derived and needs no directory lookup.
func (p *Provisioning) PrincipalForRecord(rec *directory.Record) *Resource {
	return &Resource{prov: p, record: *rec}
}

// PrincipalForShortName resolves a principal by record type and short name.
func (p *Provisioning) PrincipalForShortName(recordType directory.RecordType, shortName string) (mo.Option[*Resource], error) {
	rec, err := p.dir.RecordWithShortName(recordType, shortName)
	if err != nil {
		return mo.None[*Resource](), fmt.Errorf("directory lookup failed for %s/%s: %w", recordType, shortName, err)
	}
	if rec == nil {
		return mo.None[*Resource](), nil
	}
	return mo.Some(p.PrincipalForRecord(rec)), nil
}

// PrincipalForUser resolves a principal against the user record type only.
func (p *Provisioning) PrincipalForUser(shortName string) (mo.Option[*Resource], error) {
	return p.PrincipalForShortName(directory.RecordTypeUser, shortName)
}

// PrincipalForCalendarUserAddress resolves any address a principal is known
// by: its principal URL, a urn:uuid: form of its UID, or a calendar user
// address listed on its record.
func (p *Provisioning) PrincipalForCalendarUserAddress(address string) (mo.Option[*Resource], error) {
	if strings.HasPrefix(address, p.url) {
		recordType, shortName, err := p.parsePrincipalPath(address)
		if err != nil {
			return mo.None[*Resource](), nil
		}
		return p.PrincipalForShortName(recordType, shortName)
	}

	if uid, ok := strings.CutPrefix(address, "urn:uuid:"); ok {
		rec, err := p.dir.RecordWithUID(uid)
		if err != nil {
			return mo.None[*Resource](), fmt.Errorf("directory lookup failed for uid %s: %w", uid, err)
		}
		if rec == nil {
			return mo.None[*Resource](), nil
		}
		return mo.Some(p.PrincipalForRecord(rec)), nil
	}

	rec, err := p.dir.RecordWithCalendarUserAddress(address)
	if err != nil {
		return mo.None[*Resource](), fmt.Errorf("directory lookup failed for address %s: %w", address, err)
	}
	if rec == nil {
		return mo.None[*Resource](), nil
	}
	return mo.Some(p.PrincipalForRecord(rec)), nil
}

// PrincipalURLForUserAddress resolves an address to the matching
// principal's canonical URL. This is the normalization step sharing uses
// for invitee identities.
func (p *Provisioning) PrincipalURLForUserAddress(address string) (mo.Option[string], error) {
	res, err := p.PrincipalForCalendarUserAddress(address)
	if err != nil {
		return mo.None[string](), err
	}
	if principal, ok := res.Get(); ok {
		return mo.Some(principal.PrincipalURL()), nil
	}
	return mo.None[string](), nil
}

// parsePrincipalPath maps a principal URL under the root back to its
// (recordType, shortName) position.
func (p *Provisioning) parsePrincipalPath(url string) (directory.RecordType, string, error) {
	rest := strings.TrimPrefix(url, p.url)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid principal path: %s", url)
	}
	return directory.RecordType(parts[0]), parts[1], nil
}

// AccessControlList implements access.Resource
func (p *Provisioning) AccessControlList() access.ACL {
	return access.DefaultACL()
}

// Parent implements access.Resource; the provisioning root has no parent.
func (p *Provisioning) Parent() access.Resource {
	return nil
}

// TypeCollection is the second hierarchy level: one collection per record
// type, containing a principal resource per short name.
type TypeCollection struct {
	prov       *Provisioning
	recordType directory.RecordType
}

// RecordType returns the record type this collection exposes.
func (tc *TypeCollection) RecordType() directory.RecordType {
	return tc.recordType
}

// URL returns the collection URL, with trailing slash.
func (tc *TypeCollection) URL() string {
	return tc.prov.url + string(tc.recordType) + "/"
}

// PrincipalCollectionURL returns the hierarchy root URL, not the
// collection's own URL.
func (tc *TypeCollection) PrincipalCollectionURL() string {
	return tc.prov.url
}

// ListChildNames enumerates the short names currently in the directory for
// this record type.
func (tc *TypeCollection) ListChildNames() ([]string, error) {
	records, err := tc.prov.dir.ListRecords(tc.recordType)
	if err != nil {
		return nil, fmt.Errorf("directory enumeration failed for %s: %w", tc.recordType, err)
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.ShortName)
	}
	return names, nil
}

// Child looks up the principal resource for the given short name.
func (tc *TypeCollection) Child(shortName string) (mo.Option[*Resource], error) {
	return tc.prov.PrincipalForShortName(tc.recordType, shortName)
}

// AccessControlList implements access.Resource
func (tc *TypeCollection) AccessControlList() access.ACL {
	return access.DefaultACL()
}

// Parent implements access.Resource
func (tc *TypeCollection) Parent() access.Resource {
	return tc.prov
}

// HomeProvisioning derives calendar home and schedule URLs for principals
// under a calendar-home root.
type HomeProvisioning struct {
	URL string
}

// HomeURL returns the calendar home collection URL for a record.
func (h *HomeProvisioning) HomeURL(rec *directory.Record) string {
	root := h.URL
	if !strings.HasSuffix(root, "/") {
		root = root + "/"
	}
	return root + rec.ShortName + "/"
}

// ScheduleInboxURL returns the schedule inbox collection URL.
func (h *HomeProvisioning) ScheduleInboxURL(rec *directory.Record) string {
	return h.HomeURL(rec) + "inbox/"
}

// ScheduleOutboxURL returns the schedule outbox collection URL.
func (h *HomeProvisioning) ScheduleOutboxURL(rec *directory.Record) string {
	return h.HomeURL(rec) + "outbox/"
}
