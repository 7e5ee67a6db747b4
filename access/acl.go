// Package access implements WebDAV-style access control: privileges,
// access-control entries, and the evaluation algorithm deciding whether a
// principal may perform an operation on a resource.
package access

// Privilege identifies a controlled operation class.
type Privilege int

const (
	PrivilegeRead Privilege = iota
	PrivilegeWrite
	PrivilegeReadACL
	PrivilegeWriteACL
	// PrivilegeAll aggregates every other privilege.
	PrivilegeAll
)

// String returns the DAV element name of the privilege.
func (p Privilege) String() string {
	switch p {
	case PrivilegeRead:
		return "read"
	case PrivilegeWrite:
		return "write"
	case PrivilegeReadACL:
		return "read-acl"
	case PrivilegeWriteACL:
		return "write-acl"
	case PrivilegeAll:
		return "all"
	default:
		return "unknown"
	}
}

// MatcherKind selects how an ACE's principal matcher is interpreted.
type MatcherKind int

const (
	// MatchPrincipal matches exactly the principal named by PrincipalURL.
	MatchPrincipal MatcherKind = iota
	// MatchAuthenticated matches any authenticated principal.
	MatchAuthenticated
	// MatchUnauthenticated matches only requests with no principal.
	MatchUnauthenticated
	// MatchAll matches every request.
	MatchAll
	// MatchProperty matches the principal whose URL is the value of the
	// named property on the resource being evaluated (e.g. "owner").
	MatchProperty
)

// Matcher is the principal selector of an ACE.
type Matcher struct {
	Kind MatcherKind

	// PrincipalURL names the principal for MatchPrincipal.
	PrincipalURL string

	// Property names the resource property for MatchProperty.
	Property string
}

// ACE is a single grant-or-deny rule.
type ACE struct {
	Matcher    Matcher
	Privileges []Privilege

	// Deny makes this a deny entry; earlier entries pre-empt later ones,
	// so a deny placed before a grant wins.
	Deny bool

	// Protected entries may not be removed by clients.
	Protected bool

	// LocalOnly entries apply to their own resource only and are skipped
	// when an ACL is inherited by descendants.
	LocalOnly bool
}

// ACL is an ordered list of entries. Order is significant: the first entry
// whose matcher and privilege set apply decides the outcome.
type ACL []ACE

// covers reports whether the entry's privilege set includes the requested
// privilege. An entry carrying PrivilegeAll covers everything.
func (e ACE) covers(p Privilege) bool {
	for _, have := range e.Privileges {
		if have == p || have == PrivilegeAll {
			return true
		}
	}
	return false
}

// DefaultACL is the ACL applied to every principal and provisioning
// resource at creation: authenticated users may read, nothing else is
// granted. Combined with default-deny this yields read-only access for
// authenticated principals and no access for anyone else.
func DefaultACL() ACL {
	return ACL{
		{
			Matcher:    Matcher{Kind: MatchAuthenticated},
			Privileges: []Privilege{PrivilegeRead},
			Protected:  true,
		},
	}
}

// Principal identifies the authenticated requester. A nil *Principal means
// the request is unauthenticated.
type Principal struct {
	// URL is the principal's canonical principal URL.
	URL string
}

// Resource is what the evaluator inspects: its own ACL and its parent for
// ACL inheritance. Parent returns nil at the hierarchy root.
type Resource interface {
	AccessControlList() ACL
	Parent() Resource
}

// PropertySource is implemented by resources exposing principal-valued
// properties for MatchProperty entries.
type PropertySource interface {
	// PrincipalProperty returns the principal URL stored under the named
	// property, if any.
	PrincipalProperty(name string) (string, bool)
}
