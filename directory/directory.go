// Package directory defines the read-only identity model consumed by the
// principal hierarchy. Backends (file, LDAP, ...) implement Service; the
// rest of the server never mutates directory state.
package directory

// RecordType identifies the kind of entity a directory record describes.
type RecordType string

const (
	RecordTypeUser     RecordType = "user"
	RecordTypeGroup    RecordType = "group"
	RecordTypeLocation RecordType = "location"
	RecordTypeResource RecordType = "resource"
)

// Record is a single directory entry. ShortName is unique within its
// record type for a given service.
type Record struct {
	Type      RecordType
	ShortName string
	UID       string
	FullName  string

	// MemberUIDs lists the UIDs of records this record contains
	// (meaningful for groups).
	MemberUIDs []string

	// GroupUIDs lists the UIDs of groups containing this record.
	GroupUIDs []string

	// CalendarUserAddresses holds the URIs (mailto:, urn:uuid:, ...)
	// this record is addressable by in scheduling.
	CalendarUserAddresses []string

	Enabled bool
}

// Service is the directory backend boundary. Lookup methods return
// (nil, nil) when no record matches; errors are reserved for backend
// failures.
type Service interface {
	// RecordTypes returns the record types this directory provides.
	RecordTypes() []RecordType

	// ListRecords enumerates all records of the given type. The result
	// reflects the directory at call time.
	ListRecords(recordType RecordType) ([]Record, error)

	// RecordWithShortName finds a record by type and short name.
	RecordWithShortName(recordType RecordType, shortName string) (*Record, error)

	// RecordWithUID finds a record of any type by its UID.
	RecordWithUID(uid string) (*Record, error)

	// RecordWithCalendarUserAddress finds the record advertising the
	// given calendar user address.
	RecordWithCalendarUserAddress(address string) (*Record, error)
}
