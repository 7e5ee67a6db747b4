package server

import (
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/beevik/etree"

	"github.com/greatdennis/ccs-calendarserver/access"
	"github.com/greatdennis/ccs-calendarserver/config"
	"github.com/greatdennis/ccs-calendarserver/internal/xml"
	"github.com/greatdennis/ccs-calendarserver/sharing"
)

const (
	headerContentType = "Content-Type"

	mimeTypeXML = "application/xml; charset=utf-8"
)

// postContentTypes are the media types accepted for sharing POSTs.
var postContentTypes = map[string]bool{
	"application/xml": true,
	"text/xml":        true,
}

// Handler serves sharing requests against collection resources.
type Handler struct {
	cfg         config.Config
	coordinator *sharing.Coordinator
	evaluator   *access.Evaluator
	logger      *slog.Logger
}

// NewHandler creates a sharing request handler.
func NewHandler(cfg config.Config, coordinator *sharing.Coordinator, opts ...HandlerOption) *Handler {
	h := &Handler{
		cfg:         cfg,
		coordinator: coordinator,
		evaluator:   access.NewEvaluator(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger for the handler
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithEvaluator sets the privilege evaluator for the handler
func WithEvaluator(evaluator *access.Evaluator) HandlerOption {
	return func(h *Handler) {
		if evaluator != nil {
			h.evaluator = evaluator
		}
	}
}

// HandleSharePost processes a sharing POST against a collection: privilege
// check, then content-type precondition, then body parsing, then batch
// reconciliation, in that order. Nothing is mutated before parsing
// succeeds. The response is a multistatus report when any user failed,
// otherwise a plain 200.
func (h *Handler) HandleSharePost(w http.ResponseWriter, r *http.Request, col *Collection, principal *access.Principal) {
	// Sharing a collection requires both read and write on it.
	for _, privilege := range []access.Privilege{access.PrivilegeRead, access.PrivilegeWrite} {
		if err := h.evaluator.Check(col, principal, privilege); err != nil {
			h.logger.Warn("sharing request denied",
				"path", col.Path,
				"error", err)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get(headerContentType))
	if err != nil || !postContentTypes[mediaType] {
		h.writeError(w, http.StatusForbidden, xml.PreconditionValidContentType)
		return
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r.Body); err != nil {
		h.writeError(w, http.StatusForbidden, xml.PreconditionValidContent)
		return
	}

	var req xml.InviteShareRequest
	if err := req.Parse(doc); err != nil {
		precondition := xml.PreconditionValidContent
		if parseErr, ok := err.(*xml.ParseError); ok {
			precondition = parseErr.Precondition
		}
		h.logger.Warn("malformed sharing request",
			"path", col.Path,
			"error", err)
		h.writeError(w, http.StatusForbidden, precondition)
		return
	}

	// Decode the parsed operations before mutating anything, so every
	// rejection of a bad request leaves the collection untouched.
	sets := make(map[string]sharing.SetOperation, len(req.Sets))
	for _, set := range req.Sets {
		accessLevel, ok := sharing.ParseAccessWireName(set.Access)
		if !ok {
			h.writeError(w, http.StatusForbidden, xml.PreconditionValidContent)
			return
		}
		sets[set.UserID] = sharing.SetOperation{
			UserID:  set.UserID,
			Access:  accessLevel,
			Summary: set.Summary,
		}
	}

	removes := make(map[string]sharing.RemoveOperation, len(req.Removes))
	for _, remove := range req.Removes {
		op := sharing.RemoveOperation{UserID: remove.UserID}
		for _, name := range remove.Access {
			if accessLevel, ok := sharing.ParseAccessWireName(name); ok {
				op.Access = append(op.Access, accessLevel)
			}
		}
		removes[remove.UserID] = op
	}

	// First sharing request against a plain collection upgrades it.
	if !col.IsShared() {
		if err := h.coordinator.UpgradeToShare(r.Context(), col); err != nil {
			h.logger.Error("failed to upgrade collection to shared",
				"path", col.Path,
				"error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	result, err := h.coordinator.ReconcileBatch(r.Context(), col, sets, removes)
	if err != nil {
		h.logger.Error("failed to reconcile sharing batch",
			"path", col.Path,
			"error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(result.BadUsers) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Multistatus report, needed only when some users failed: ok entries
	// first, then bad, each group in ascending user id order.
	response := &xml.MultistatusResponse{}
	for _, userID := range result.OKUsers {
		response.Responses = append(response.Responses, xml.StatusResponse{
			Href:   userID,
			Status: xml.StatusOK,
		})
	}
	for _, userID := range result.BadUsers {
		response.Responses = append(response.Responses, xml.StatusResponse{
			Href:   userID,
			Status: xml.StatusForbidden,
		})
	}

	w.Header().Set(headerContentType, mimeTypeXML)
	w.WriteHeader(http.StatusMultiStatus)
	response.ToXML().WriteTo(w)
}

// InviteProperty renders the collection's CS:invite property from the live
// invite store, after a validation sweep. It returns nil when sharing is
// disabled or the collection is not a shared owner collection.
func (h *Handler) InviteProperty(r *http.Request, col *Collection) (*etree.Document, error) {
	if !h.cfg.SharingEnabled || !col.IsShared() {
		return nil, nil
	}

	store, err := col.InviteStore()
	if err != nil {
		return nil, err
	}
	if err := h.coordinator.ValidateInvites(r.Context(), store); err != nil {
		return nil, err
	}
	records, err := store.AllRecords(r.Context())
	if err != nil {
		return nil, err
	}

	users := make([]xml.InviteUser, 0, len(records))
	for _, record := range records {
		users = append(users, record.WireUser())
	}
	return xml.InviteProperty(users), nil
}

// writeError sends a DAV:error response naming the failed precondition.
func (h *Handler) writeError(w http.ResponseWriter, status int, precondition string) {
	doc := etree.NewDocument()
	root := doc.CreateElement("D:error")
	xml.AddNamespaces(doc)
	root.CreateElement("CS:" + precondition)

	w.Header().Set(headerContentType, mimeTypeXML)
	w.WriteHeader(status)
	doc.WriteTo(w)
}
