package xml

import (
	"fmt"

	"github.com/beevik/etree"
)

// Common XML tag names used in sharing documents
const (
	TagShare       = "share"
	TagSet         = "set"
	TagRemove      = "remove"
	TagHref        = "href"
	TagSummary     = "summary"
	TagMultistatus = "multistatus"
	TagResponse    = "response"
	TagStatus      = "status"
	TagInvite      = "invite"
	TagUser        = "user"
	TagUID         = "uid"
	TagAccess      = "access"

	// Access wire names, children of a set/remove element
	TagReadAccess      = "read"
	TagReadWriteAccess = "read-write"
)

// Preconditions reported on parse failures
const (
	PreconditionValidContent     = "valid-request-content"
	PreconditionValidContentType = "valid-request-content-type"
)

// ParseError reports a malformed sharing request. It is fatal: the request
// is rejected before any mutation happens.
type ParseError struct {
	Precondition string
	Message      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed sharing request (%s): %s", e.Precondition, e.Message)
}

// InviteSet is one set operation in a share document. All three fields are
// mandatory on the wire.
type InviteSet struct {
	UserID  string
	Access  string
	Summary string
}

// InviteRemove is one remove operation. Access is optional and restricts
// the removal to invites at the listed access levels.
type InviteRemove struct {
	UserID string
	Access []string
}

// InviteShareRequest represents a CS:share POST body.
type InviteShareRequest struct {
	Sets    []InviteSet
	Removes []InviteRemove
}

// Parse parses a share request from an XML document
func (r *InviteShareRequest) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return &ParseError{Precondition: PreconditionValidContent, Message: "empty document"}
	}

	root := doc.Root()
	if root.Tag != TagShare {
		return &ParseError{Precondition: PreconditionValidContent, Message: "invalid root tag: " + root.Tag}
	}

	// Reset the request fields
	r.Sets = nil
	r.Removes = nil

	for _, child := range root.ChildElements() {
		switch child.Tag {
		case TagSet:
			set, err := parseInviteSet(child)
			if err != nil {
				return err
			}
			r.Sets = append(r.Sets, set)
		case TagRemove:
			remove, err := parseInviteRemove(child)
			if err != nil {
				return err
			}
			r.Removes = append(r.Removes, remove)
		}
	}

	return nil
}

func parseInviteSet(elem *etree.Element) (InviteSet, error) {
	var set InviteSet
	for _, item := range elem.ChildElements() {
		switch item.Tag {
		case TagHref:
			set.UserID = item.Text()
		case TagSummary:
			set.Summary = item.Text()
		case TagReadAccess, TagReadWriteAccess:
			set.Access = item.Tag
		}
	}

	if set.UserID == "" {
		return set, &ParseError{Precondition: PreconditionValidContentType, Message: "missing href in set"}
	}
	if set.Access == "" {
		return set, &ParseError{Precondition: PreconditionValidContentType, Message: "missing access in set"}
	}
	if set.Summary == "" {
		return set, &ParseError{Precondition: PreconditionValidContentType, Message: "missing summary in set"}
	}
	return set, nil
}

func parseInviteRemove(elem *etree.Element) (InviteRemove, error) {
	var remove InviteRemove
	for _, item := range elem.ChildElements() {
		switch item.Tag {
		case TagHref:
			remove.UserID = item.Text()
		case TagReadAccess, TagReadWriteAccess:
			remove.Access = append(remove.Access, item.Tag)
		}
	}

	if remove.UserID == "" {
		return remove, &ParseError{Precondition: PreconditionValidContentType, Message: "missing href in remove"}
	}
	return remove, nil
}

// ToXML converts an InviteShareRequest to an XML document
func (r *InviteShareRequest) ToXML() *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("CS:" + TagShare)
	AddNamespaces(doc)

	for _, set := range r.Sets {
		elem := root.CreateElement("CS:" + TagSet)
		href := elem.CreateElement("D:" + TagHref)
		href.SetText(set.UserID)
		elem.CreateElement("CS:" + set.Access)
		summary := elem.CreateElement("CS:" + TagSummary)
		summary.SetText(set.Summary)
	}

	for _, remove := range r.Removes {
		elem := root.CreateElement("CS:" + TagRemove)
		href := elem.CreateElement("D:" + TagHref)
		href.SetText(remove.UserID)
		for _, a := range remove.Access {
			elem.CreateElement("CS:" + a)
		}
	}

	return doc
}
