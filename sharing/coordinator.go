package sharing

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/samber/mo"
)

// PrincipalResolver normalizes invitee identities. Implemented by the
// principal hierarchy.
type PrincipalResolver interface {
	// PrincipalURLForUserAddress resolves a calendar user address to the
	// matching principal's canonical URL, or absent when the address does
	// not resolve.
	PrincipalURLForUserAddress(address string) (mo.Option[string], error)
}

// SetOperation creates or replaces the invite for a user.
type SetOperation struct {
	UserID  string
	Access  Access
	Summary string
}

// RemoveOperation deletes the invite for a user. Access optionally limits
// which access levels are eligible; nil means any.
type RemoveOperation struct {
	UserID string
	Access []Access
}

// BatchResult reports per-user outcomes of a reconciled batch. Each user id
// appears in exactly one slice; both are sorted ascending.
type BatchResult struct {
	OKUsers  []string
	BadUsers []string
}

// Coordinator orchestrates collection sharing: upgrades and downgrades,
// invitee validation, and batch reconciliation of invite operations.
type Coordinator struct {
	resolver PrincipalResolver
	logger   *slog.Logger
}

// NewCoordinator creates a sharing coordinator using the given resolver for
// invitee identities.
func NewCoordinator(resolver PrincipalResolver, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		resolver: resolver,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger for the coordinator
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// UpgradeToShare marks the collection as a shared owner collection and
// creates its invite store. Callers guard against redundant upgrades; the
// store creation itself is idempotent.
func (c *Coordinator) UpgradeToShare(ctx context.Context, collection Shareable) error {
	collection.MarkShared()

	store, err := collection.InviteStore()
	if err != nil {
		return err
	}
	if err := store.Create(ctx); err != nil {
		return err
	}

	c.logger.Info("collection upgraded to shared")
	return nil
}

// DowngradeFromShare removes the shared-owner marker and discards the
// invite store, rows and backing file included.
//
// TODO: notify invitees that the share went away.
func (c *Coordinator) DowngradeFromShare(ctx context.Context, collection Shareable) error {
	collection.UnmarkShared()

	store, err := collection.InviteStore()
	if err != nil {
		return err
	}
	if err := store.Remove(ctx); err != nil {
		return err
	}
	collection.DiscardInviteStore()

	c.logger.Info("collection downgraded from shared")
	return nil
}

// ValidUserID resolves a raw invitee identity (mailto:, urn:uuid:,
// principal URL) to a normalized principal URL, or absent when the id does
// not identify a local principal. It is deterministic and side-effect-free.
//
// External (non-local) invitees are not supported, so unresolvable ids are
// rejected regardless of configuration.
func (c *Coordinator) ValidUserID(userID string) (mo.Option[string], error) {
	return c.resolver.PrincipalURLForUserAddress(userID)
}

// ValidateInvites re-validates every stored invite and marks those whose
// user id no longer resolves as INVALID. It is idempotent and safe to call
// at any time; invites that resolve, and invites already INVALID, are left
// untouched. Resolution errors leave the record unchanged so a directory
// outage cannot invalidate live invites.
func (c *Coordinator) ValidateInvites(ctx context.Context, store Store) error {
	records, err := store.AllRecords(ctx)
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.State == StateInvalid {
			continue
		}
		normalized, err := c.ValidUserID(record.UserID)
		if err != nil {
			c.logger.Warn("skipping invite validation, resolver failed",
				"user_id", record.UserID,
				"error", err)
			continue
		}
		if normalized.IsPresent() {
			continue
		}
		record.State = StateInvalid
		if err := store.AddOrUpdateRecord(ctx, record); err != nil {
			return err
		}
		c.logger.Info("invite marked invalid",
			"user_id", record.UserID,
			"invite_uid", record.UID)
	}

	return nil
}

// ReconcileBatch applies one request's set and remove operations to the
// collection's invite store and reports per-user outcomes. The argument
// maps are read-only inputs and are left untouched.
//
// A user id present in both maps is collapsed into a single update before
// anything is applied. Removals go first and do not require the id to
// validate, so clients can clear invites that have gone stale; a removal
// listing access levels applies only when the stored invite carries one of
// them. Sets and updates require validation; ids that do not resolve are
// reported bad without touching storage. Storage failures are isolated per
// user: one user's failure never aborts the rest of the batch, and
// mutations already applied stand even if the caller gives up mid-batch. A
// final validation sweep runs regardless of outcomes.
func (c *Coordinator) ReconcileBatch(ctx context.Context, collection Shareable, sets map[string]SetOperation, removes map[string]RemoveOperation) (*BatchResult, error) {
	store, err := collection.InviteStore()
	if err != nil {
		return nil, err
	}

	// Collapse a remove+set for the same user into one update.
	updates := make(map[string]SetOperation)
	for userID := range removes {
		if set, ok := sets[userID]; ok {
			updates[userID] = set
		}
	}

	okUsers := make([]string, 0, len(sets)+len(removes))
	badUsers := make([]string, 0)

	for userID, op := range removes {
		if _, collapsed := updates[userID]; collapsed {
			continue
		}
		if c.uninviteUser(ctx, store, op) {
			okUsers = append(okUsers, userID)
		} else {
			badUsers = append(badUsers, userID)
		}
	}

	for userID, op := range sets {
		if _, collapsed := updates[userID]; collapsed {
			continue
		}
		if c.inviteUser(ctx, store, userID, op) {
			okUsers = append(okUsers, userID)
		} else {
			badUsers = append(badUsers, userID)
		}
	}

	for userID, op := range updates {
		if c.inviteUser(ctx, store, userID, op) {
			okUsers = append(okUsers, userID)
		} else {
			badUsers = append(badUsers, userID)
		}
	}

	// Final validation of the entire invite set, regardless of outcomes.
	if err := c.ValidateInvites(ctx, store); err != nil {
		return nil, err
	}

	sort.Strings(okUsers)
	sort.Strings(badUsers)

	return &BatchResult{OKUsers: okUsers, BadUsers: badUsers}, nil
}

// inviteUser creates or replaces the invite for one user. The id must
// resolve to a principal; the stored row is keyed by the normalized URL and
// reset to NEEDS-ACTION.
func (c *Coordinator) inviteUser(ctx context.Context, store Store, userID string, op SetOperation) bool {
	normalized, err := c.ValidUserID(userID)
	if err != nil {
		c.logger.Warn("invite failed, resolver error",
			"user_id", userID,
			"error", err)
		return false
	}
	url, ok := normalized.Get()
	if !ok {
		c.logger.Info("invite rejected, user id does not resolve",
			"user_id", userID)
		return false
	}

	invite := NewInvite(url, op.Access, op.Summary)
	if err := store.AddOrUpdateRecord(ctx, invite); err != nil {
		c.logger.Error("invite failed, store error",
			"user_id", userID,
			"error", err)
		return false
	}
	return true
}

// uninviteUser removes the invite for one user. The id is normalized when
// it still resolves, but removal never requires validation: already
// invalid ids must remain removable. When the operation lists access
// levels, an invite at a level not listed is left in place.
func (c *Coordinator) uninviteUser(ctx context.Context, store Store, op RemoveOperation) bool {
	target := op.UserID
	if normalized, err := c.ValidUserID(op.UserID); err == nil {
		if url, ok := normalized.Get(); ok {
			target = url
		}
	}

	if len(op.Access) > 0 {
		record, err := store.RecordForUserID(ctx, target)
		if err != nil {
			c.logger.Error("uninvite failed, store error",
				"user_id", op.UserID,
				"error", err)
			return false
		}
		if record == nil {
			return true
		}
		if !slices.Contains(op.Access, record.Access) {
			return true
		}
	}

	if err := store.RemoveRecordForUserID(ctx, target); err != nil {
		c.logger.Error("uninvite failed, store error",
			"user_id", op.UserID,
			"error", err)
		return false
	}
	return true
}
