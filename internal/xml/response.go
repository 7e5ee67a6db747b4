package xml

import (
	"fmt"

	"github.com/beevik/etree"
)

// HTTP status lines used in multistatus reports
const (
	StatusOK        = "HTTP/1.1 200 OK"
	StatusForbidden = "HTTP/1.1 403 Forbidden"
)

// StatusResponse is one href/status pair in a multistatus report.
type StatusResponse struct {
	Href   string
	Status string
}

// MultistatusResponse represents a multistatus response carrying per-href
// status lines.
type MultistatusResponse struct {
	Responses []StatusResponse
}

// ToXML converts a MultistatusResponse to an XML document
func (m *MultistatusResponse) ToXML() *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("D:" + TagMultistatus)
	AddNamespaces(doc)

	for _, resp := range m.Responses {
		response := root.CreateElement("D:" + TagResponse)
		href := response.CreateElement("D:" + TagHref)
		href.SetText(resp.Href)
		status := response.CreateElement("D:" + TagStatus)
		status.SetText(resp.Status)
	}

	return doc
}

// Parse parses a multistatus response from an XML document
func (m *MultistatusResponse) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return fmt.Errorf("empty document")
	}

	root := doc.Root()
	if root.Tag != TagMultistatus {
		return fmt.Errorf("invalid root tag: %s", root.Tag)
	}

	m.Responses = nil

	for _, respElem := range root.ChildElements() {
		if respElem.Tag != TagResponse {
			continue
		}
		resp := StatusResponse{}
		for _, child := range respElem.ChildElements() {
			switch child.Tag {
			case TagHref:
				resp.Href = child.Text()
			case TagStatus:
				resp.Status = child.Text()
			}
		}
		m.Responses = append(m.Responses, resp)
	}

	return nil
}

// InviteUser describes one invite row for CS:invite property rendering.
// Access and Status carry wire names.
type InviteUser struct {
	UID    string
	Href   string
	Access string
	Status string
}

// InviteUserElement renders a single CS:user element.
func InviteUserElement(user InviteUser) *etree.Element {
	elem := etree.NewElement("CS:" + TagUser)

	uid := elem.CreateElement("CS:" + TagUID)
	uid.SetText(user.UID)

	href := elem.CreateElement("D:" + TagHref)
	href.SetText(user.Href)

	accessElem := elem.CreateElement("CS:" + TagAccess)
	accessElem.CreateElement("CS:" + user.Access)

	elem.CreateElement("CS:" + user.Status)

	return elem
}

// InviteProperty renders the CS:invite property document from the given
// invite rows.
func InviteProperty(users []InviteUser) *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("CS:" + TagInvite)
	AddNamespaces(doc)

	for _, user := range users {
		root.AddChild(InviteUserElement(user))
	}

	return doc
}
