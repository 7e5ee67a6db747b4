// Package sharing implements invitation-based sharing of calendar and
// address book collections: the persisted invite model, the store contract,
// and the coordinator reconciling batches of invite operations.
package sharing

import (
	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/greatdennis/ccs-calendarserver/internal/xml"
)

// Access is the level of access granted by an invite.
type Access string

const (
	ReadOnlyAccess  Access = "read-only"
	ReadWriteAccess Access = "read-write"
)

// State is the lifecycle state of an invite. New invites start as
// NeedsAction; invitees move them to Accepted or Declined; validation
// sweeps move unresolvable invitees to Invalid.
type State string

const (
	StateNeedsAction State = "NEEDS-ACTION"
	StateAccepted    State = "ACCEPTED"
	StateDeclined    State = "DECLINED"
	StateDeleted     State = "DELETED"
	StateInvalid     State = "INVALID"
)

// Wire-name lookup tables, bidirectional, initialized once.
var (
	accessWireNames = map[Access]string{
		ReadOnlyAccess:  xml.TagReadAccess,
		ReadWriteAccess: xml.TagReadWriteAccess,
	}
	accessFromWireNames = make(map[string]Access, len(accessWireNames))

	stateWireNames = map[State]string{
		StateNeedsAction: "invite-noresponse",
		StateAccepted:    "invite-accepted",
		StateDeclined:    "invite-declined",
		StateDeleted:     "invite-deleted",
		StateInvalid:     "invite-invalid",
	}
	stateFromWireNames = make(map[string]State, len(stateWireNames))
)

func init() {
	for access, name := range accessWireNames {
		accessFromWireNames[name] = access
	}
	for state, name := range stateWireNames {
		stateFromWireNames[name] = state
	}
}

// WireName returns the element name the access level is encoded as.
func (a Access) WireName() string {
	return accessWireNames[a]
}

// ParseAccessWireName decodes an access element name.
func ParseAccessWireName(name string) (Access, bool) {
	a, ok := accessFromWireNames[name]
	return a, ok
}

// WireName returns the element name the state is encoded as.
func (s State) WireName() string {
	return stateWireNames[s]
}

// ParseStateWireName decodes a state element name.
func ParseStateWireName(name string) (State, bool) {
	s, ok := stateFromWireNames[name]
	return s, ok
}

// Invite is one persisted sharing grant: one row per invited user per
// shared collection. UserID is a normalized principal URL and is the
// reconciliation key; at most one live row exists per UserID.
type Invite struct {
	UID     string
	UserID  string
	Access  Access
	State   State
	Summary string
}

// NewInvite creates an invite in the initial NEEDS-ACTION state with a
// fresh UID.
func NewInvite(userID string, access Access, summary string) Invite {
	return Invite{
		UID:     uuid.NewString(),
		UserID:  userID,
		Access:  access,
		State:   StateNeedsAction,
		Summary: summary,
	}
}

// WireUser returns the invite as a CS:user row for property rendering.
func (i Invite) WireUser() xml.InviteUser {
	return xml.InviteUser{
		UID:    i.UID,
		Href:   i.UserID,
		Access: i.Access.WireName(),
		Status: i.State.WireName(),
	}
}

// PropertyElement renders the invite as a CS:user element for the
// CS:invite property.
func (i Invite) PropertyElement() *etree.Element {
	return xml.InviteUserElement(i.WireUser())
}
