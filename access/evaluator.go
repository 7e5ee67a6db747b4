package access

import (
	"fmt"
	"io"
	"log/slog"
)

// ErrorType represents the type of access control error
type ErrorType string

const (
	ErrAccessDenied ErrorType = "access_denied"
)

// Error represents an access control failure. It is returned, not panicked;
// callers surface it as an authorization failure when enforcement is
// mandatory.
type Error struct {
	Type      ErrorType
	Principal string
	Privilege Privilege
	Message   string
}

func (e *Error) Error() string {
	if e.Principal == "" {
		return fmt.Sprintf("%s: unauthenticated principal denied %s: %s", e.Type, e.Privilege, e.Message)
	}
	return fmt.Sprintf("%s: %s denied %s: %s", e.Type, e.Principal, e.Privilege, e.Message)
}

// IsAccessDenied reports whether err is an access-denied error.
func IsAccessDenied(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrAccessDenied
}

// Evaluator decides privilege checks against resource ACLs.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates a privilege evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger sets the logger for the evaluator
func WithLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Check evaluates whether principal holds the requested privilege on the
// resource. The resource's own entries are scanned first, then each
// ancestor's in order, skipping entries marked LocalOnly on ancestors. The
// first entry whose matcher applies and whose privilege set covers the
// request decides: grant allows, deny refuses. No matching entry means
// denied.
//
// Check is read-only and safe for concurrent use.
func (e *Evaluator) Check(res Resource, principal *Principal, privilege Privilege) error {
	for _, entry := range gatherEntries(res) {
		if !e.matches(entry.Matcher, principal, res) {
			continue
		}
		if !entry.covers(privilege) {
			continue
		}
		if entry.Deny {
			e.logger.Debug("privilege denied by entry",
				"principal", principalURL(principal),
				"privilege", privilege.String())
			return e.denied(principal, privilege, "denied by access control entry")
		}
		return nil
	}

	// Default-deny: nothing matched.
	e.logger.Debug("privilege denied by default",
		"principal", principalURL(principal),
		"privilege", privilege.String())
	return e.denied(principal, privilege, "no matching access control entry")
}

// gatherEntries collects the effective ACL: own entries followed by each
// ancestor's inheritable entries, nearest ancestor first.
func gatherEntries(res Resource) []ACE {
	entries := append([]ACE(nil), res.AccessControlList()...)
	for parent := res.Parent(); parent != nil; parent = parent.Parent() {
		for _, entry := range parent.AccessControlList() {
			if entry.LocalOnly {
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries
}

func (e *Evaluator) matches(m Matcher, principal *Principal, res Resource) bool {
	switch m.Kind {
	case MatchPrincipal:
		return principal != nil && principal.URL == m.PrincipalURL
	case MatchAuthenticated:
		return principal != nil
	case MatchUnauthenticated:
		return principal == nil
	case MatchAll:
		return true
	case MatchProperty:
		if principal == nil {
			return false
		}
		src, ok := res.(PropertySource)
		if !ok {
			return false
		}
		url, ok := src.PrincipalProperty(m.Property)
		return ok && url == principal.URL
	default:
		return false
	}
}

func (e *Evaluator) denied(principal *Principal, privilege Privilege, message string) error {
	return &Error{
		Type:      ErrAccessDenied,
		Principal: principalURL(principal),
		Privilege: privilege,
		Message:   message,
	}
}

func principalURL(p *Principal) string {
	if p == nil {
		return ""
	}
	return p.URL
}
