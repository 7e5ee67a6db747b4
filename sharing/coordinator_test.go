package sharing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greatdennis/ccs-calendarserver/directory"
	dirmemory "github.com/greatdennis/ccs-calendarserver/directory/memory"
	"github.com/greatdennis/ccs-calendarserver/principal"
	"github.com/greatdennis/ccs-calendarserver/sharing"
	"github.com/greatdennis/ccs-calendarserver/sharing/memory"
)

// testCollection is a minimal Shareable backed by the in-memory store.
type testCollection struct {
	shared bool
	store  sharing.Store
}

func (c *testCollection) IsShared() bool { return c.shared }

func (c *testCollection) IsVirtualShare() bool { return false }

func (c *testCollection) MarkShared() { c.shared = true }

func (c *testCollection) UnmarkShared() { c.shared = false }

func (c *testCollection) InviteStore() (sharing.Store, error) {
	if c.store == nil {
		c.store = memory.New()
	}
	return c.store, nil
}

func (c *testCollection) DiscardInviteStore() { c.store = nil }

type failingResolver struct{}

func (failingResolver) PrincipalURLForUserAddress(string) (mo.Option[string], error) {
	return mo.None[string](), errors.New("directory unavailable")
}

func testCoordinator(t *testing.T) (*sharing.Coordinator, *dirmemory.Service) {
	t.Helper()
	dir := dirmemory.New()

	records := []directory.Record{
		{
			Type:                  directory.RecordTypeUser,
			ShortName:             "alice",
			UID:                   "A1B2C3",
			CalendarUserAddresses: []string{"mailto:alice@example.com"},
			Enabled:               true,
		},
		{
			Type:                  directory.RecordTypeUser,
			ShortName:             "bob",
			UID:                   "D4E5F6",
			CalendarUserAddresses: []string{"mailto:bob@example.com"},
			Enabled:               true,
		},
	}
	for _, rec := range records {
		require.NoError(t, dir.AddRecord(rec))
	}

	prov := principal.NewProvisioning("/principals/", dir)
	return sharing.NewCoordinator(prov), dir
}

func TestUpgradeAndDowngrade(t *testing.T) {
	ctx := context.Background()
	coordinator, _ := testCoordinator(t)
	col := &testCollection{}

	require.NoError(t, coordinator.UpgradeToShare(ctx, col))
	assert.True(t, col.IsShared())

	store, err := col.InviteStore()
	require.NoError(t, err)
	require.NoError(t, store.AddOrUpdateRecord(ctx,
		sharing.NewInvite("/principals/user/alice", sharing.ReadOnlyAccess, "work")))

	require.NoError(t, coordinator.DowngradeFromShare(ctx, col))
	assert.False(t, col.IsShared())

	// Re-upgrading yields a fresh, empty store.
	require.NoError(t, coordinator.UpgradeToShare(ctx, col))
	store, err = col.InviteStore()
	require.NoError(t, err)
	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestValidUserID(t *testing.T) {
	coordinator, _ := testCoordinator(t)

	tests := []struct {
		name    string
		userID  string
		wantURL string
	}{
		{"mailto address", "mailto:alice@example.com", "/principals/user/alice"},
		{"uid urn", "urn:uuid:D4E5F6", "/principals/user/bob"},
		{"principal url", "/principals/user/alice", "/principals/user/alice"},
		{"unknown address", "mailto:ghost@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := coordinator.ValidUserID(tt.userID)
			require.NoError(t, err)
			url, ok := res.Get()
			if tt.wantURL == "" {
				assert.False(t, ok)
			} else {
				require.True(t, ok)
				assert.Equal(t, tt.wantURL, url)
			}
		})
	}
}

func TestReconcileBatchInviteAndRemove(t *testing.T) {
	ctx := context.Background()
	coordinator, _ := testCoordinator(t)
	col := &testCollection{}
	require.NoError(t, coordinator.UpgradeToShare(ctx, col))

	result, err := coordinator.ReconcileBatch(ctx, col,
		map[string]sharing.SetOperation{
			"mailto:alice@example.com": {
				UserID:  "mailto:alice@example.com",
				Access:  sharing.ReadWriteAccess,
				Summary: "team calendar",
			},
		},
		map[string]sharing.RemoveOperation{
			// Removing a user who was never invited still succeeds.
			"mailto:bob@example.com": {UserID: "mailto:bob@example.com"},
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"mailto:alice@example.com", "mailto:bob@example.com"}, result.OKUsers)
	assert.Empty(t, result.BadUsers)

	store, err := col.InviteStore()
	require.NoError(t, err)
	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// The row is keyed by the normalized principal URL, not the raw address.
	invite := records[0]
	assert.Equal(t, "/principals/user/alice", invite.UserID)
	assert.Equal(t, sharing.ReadWriteAccess, invite.Access)
	assert.Equal(t, sharing.StateNeedsAction, invite.State)
	assert.Equal(t, "team calendar", invite.Summary)
	assert.NotEmpty(t, invite.UID)
}

func TestReconcileBatchUnknownUser(t *testing.T) {
	ctx := context.Background()
	coordinator, _ := testCoordinator(t)
	col := &testCollection{}
	require.NoError(t, coordinator.UpgradeToShare(ctx, col))

	result, err := coordinator.ReconcileBatch(ctx, col,
		map[string]sharing.SetOperation{
			"mailto:ghost@example.com": {
				UserID: "mailto:ghost@example.com",
				Access: sharing.ReadOnlyAccess,
			},
		}, nil)
	require.NoError(t, err)

	assert.Empty(t, result.OKUsers)
	assert.Equal(t, []string{"mailto:ghost@example.com"}, result.BadUsers)

	store, err := col.InviteStore()
	require.NoError(t, err)
	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReconcileBatchCollapsesSetAndRemove(t *testing.T) {
	ctx := context.Background()
	coordinator, _ := testCoordinator(t)
	col := &testCollection{}
	require.NoError(t, coordinator.UpgradeToShare(ctx, col))

	store, err := col.InviteStore()
	require.NoError(t, err)
	existing := sharing.NewInvite("/principals/user/alice", sharing.ReadOnlyAccess, "old")
	existing.State = sharing.StateAccepted
	require.NoError(t, store.AddOrUpdateRecord(ctx, existing))

	sets := map[string]sharing.SetOperation{
		"mailto:alice@example.com": {
			UserID:  "mailto:alice@example.com",
			Access:  sharing.ReadWriteAccess,
			Summary: "new",
		},
	}
	removes := map[string]sharing.RemoveOperation{
		"mailto:alice@example.com": {UserID: "mailto:alice@example.com"},
	}
	result, err := coordinator.ReconcileBatch(ctx, col, sets, removes)
	require.NoError(t, err)

	// The pair collapses into a single update reported once.
	assert.Equal(t, []string{"mailto:alice@example.com"}, result.OKUsers)
	assert.Empty(t, result.BadUsers)

	// The caller's operation maps are left untouched.
	assert.Len(t, sets, 1)
	assert.Len(t, removes, 1)

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sharing.ReadWriteAccess, records[0].Access)
	assert.Equal(t, "new", records[0].Summary)
	assert.Equal(t, sharing.StateNeedsAction, records[0].State)
}

func TestReconcileBatchIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	coordinator, _ := testCoordinator(t)
	col := &testCollection{}
	require.NoError(t, coordinator.UpgradeToShare(ctx, col))

	sets := func() map[string]sharing.SetOperation {
		return map[string]sharing.SetOperation{
			"mailto:alice@example.com": {
				UserID:  "mailto:alice@example.com",
				Access:  sharing.ReadOnlyAccess,
				Summary: "work",
			},
		}
	}

	for i := 0; i < 2; i++ {
		result, err := coordinator.ReconcileBatch(ctx, col, sets(), nil)
		require.NoError(t, err)
		assert.Empty(t, result.BadUsers)
	}

	store, err := col.InviteStore()
	require.NoError(t, err)
	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sharing.StateNeedsAction, records[0].State)
}

func TestReconcileBatchOrdering(t *testing.T) {
	ctx := context.Background()
	coordinator, _ := testCoordinator(t)
	col := &testCollection{}
	require.NoError(t, coordinator.UpgradeToShare(ctx, col))

	result, err := coordinator.ReconcileBatch(ctx, col,
		map[string]sharing.SetOperation{
			"mailto:bob@example.com":   {UserID: "mailto:bob@example.com", Access: sharing.ReadOnlyAccess},
			"mailto:alice@example.com": {UserID: "mailto:alice@example.com", Access: sharing.ReadOnlyAccess},
			"mailto:zelda@example.com": {UserID: "mailto:zelda@example.com", Access: sharing.ReadOnlyAccess},
			"mailto:carol@example.com": {UserID: "mailto:carol@example.com", Access: sharing.ReadOnlyAccess},
		}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"mailto:alice@example.com", "mailto:bob@example.com"}, result.OKUsers)
	assert.Equal(t, []string{"mailto:carol@example.com", "mailto:zelda@example.com"}, result.BadUsers)
}

func TestReconcileBatchRemovesStaleInvite(t *testing.T) {
	ctx := context.Background()
	coordinator, dir := testCoordinator(t)
	col := &testCollection{}
	require.NoError(t, coordinator.UpgradeToShare(ctx, col))

	store, err := col.InviteStore()
	require.NoError(t, err)
	require.NoError(t, store.AddOrUpdateRecord(ctx,
		sharing.NewInvite("/principals/user/bob", sharing.ReadOnlyAccess, "work")))

	// Bob leaves the directory; removal by principal URL must still work.
	dir.RemoveRecord(directory.RecordTypeUser, "bob")

	result, err := coordinator.ReconcileBatch(ctx, col, nil,
		map[string]sharing.RemoveOperation{
			"/principals/user/bob": {UserID: "/principals/user/bob"},
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"/principals/user/bob"}, result.OKUsers)

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// flakyStore fails upserts for a single user id, passing everything else
// through.
type flakyStore struct {
	sharing.Store
	failUserID string
}

func (s *flakyStore) AddOrUpdateRecord(ctx context.Context, invite sharing.Invite) error {
	if invite.UserID == s.failUserID {
		return &sharing.Error{Type: sharing.ErrStorage, Message: "disk full"}
	}
	return s.Store.AddOrUpdateRecord(ctx, invite)
}

func TestReconcileBatchIsolatesStoreFailure(t *testing.T) {
	ctx := context.Background()
	coordinator, _ := testCoordinator(t)
	col := &testCollection{store: &flakyStore{
		Store:      memory.New(),
		failUserID: "/principals/user/alice",
	}}

	result, err := coordinator.ReconcileBatch(ctx, col,
		map[string]sharing.SetOperation{
			"mailto:alice@example.com": {
				UserID:  "mailto:alice@example.com",
				Access:  sharing.ReadOnlyAccess,
				Summary: "work",
			},
			"mailto:bob@example.com": {
				UserID:  "mailto:bob@example.com",
				Access:  sharing.ReadOnlyAccess,
				Summary: "work",
			},
		}, nil)
	require.NoError(t, err)

	// One user's storage failure never aborts the rest of the batch.
	assert.Equal(t, []string{"mailto:bob@example.com"}, result.OKUsers)
	assert.Equal(t, []string{"mailto:alice@example.com"}, result.BadUsers)

	store, err := col.InviteStore()
	require.NoError(t, err)
	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/principals/user/bob", records[0].UserID)
}

func TestReconcileBatchRemoveAccessFilter(t *testing.T) {
	ctx := context.Background()
	coordinator, _ := testCoordinator(t)
	col := &testCollection{}
	require.NoError(t, coordinator.UpgradeToShare(ctx, col))

	store, err := col.InviteStore()
	require.NoError(t, err)
	require.NoError(t, store.AddOrUpdateRecord(ctx,
		sharing.NewInvite("/principals/user/alice", sharing.ReadWriteAccess, "work")))

	// A removal scoped to a different access level leaves the invite alone.
	result, err := coordinator.ReconcileBatch(ctx, col, nil,
		map[string]sharing.RemoveOperation{
			"mailto:alice@example.com": {
				UserID: "mailto:alice@example.com",
				Access: []sharing.Access{sharing.ReadOnlyAccess},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:alice@example.com"}, result.OKUsers)

	got, err := store.RecordForUserID(ctx, "/principals/user/alice")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Scoped to the matching level, the removal applies.
	result, err = coordinator.ReconcileBatch(ctx, col, nil,
		map[string]sharing.RemoveOperation{
			"mailto:alice@example.com": {
				UserID: "mailto:alice@example.com",
				Access: []sharing.Access{sharing.ReadWriteAccess},
			},
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:alice@example.com"}, result.OKUsers)

	got, err = store.RecordForUserID(ctx, "/principals/user/alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidateInvites(t *testing.T) {
	ctx := context.Background()
	coordinator, dir := testCoordinator(t)
	store := memory.New()

	alive := sharing.NewInvite("/principals/user/alice", sharing.ReadOnlyAccess, "work")
	gone := sharing.NewInvite("/principals/user/bob", sharing.ReadWriteAccess, "work")
	require.NoError(t, store.AddOrUpdateRecord(ctx, alive))
	require.NoError(t, store.AddOrUpdateRecord(ctx, gone))

	dir.RemoveRecord(directory.RecordTypeUser, "bob")

	require.NoError(t, coordinator.ValidateInvites(ctx, store))

	got, err := store.RecordForUserID(ctx, "/principals/user/alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sharing.StateNeedsAction, got.State)

	got, err = store.RecordForUserID(ctx, "/principals/user/bob")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sharing.StateInvalid, got.State)
	// Invalidation flips the state only; identity and terms survive.
	assert.Equal(t, gone.UID, got.UID)
	assert.Equal(t, sharing.ReadWriteAccess, got.Access)

	// The sweep is idempotent.
	require.NoError(t, coordinator.ValidateInvites(ctx, store))
	got, err = store.RecordForUserID(ctx, "/principals/user/bob")
	require.NoError(t, err)
	assert.Equal(t, sharing.StateInvalid, got.State)
}

func TestValidateInvitesResolverOutage(t *testing.T) {
	ctx := context.Background()
	coordinator := sharing.NewCoordinator(failingResolver{})
	store := memory.New()

	invite := sharing.NewInvite("/principals/user/alice", sharing.ReadOnlyAccess, "work")
	require.NoError(t, store.AddOrUpdateRecord(ctx, invite))

	// A resolver failure must not invalidate live invites.
	require.NoError(t, coordinator.ValidateInvites(ctx, store))

	got, err := store.RecordForUserID(ctx, "/principals/user/alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sharing.StateNeedsAction, got.State)
}
