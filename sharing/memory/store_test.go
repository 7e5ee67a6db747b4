package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greatdennis/ccs-calendarserver/sharing"
)

func TestAddOrUpdateRecord(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.Create(ctx))

	invite := sharing.Invite{
		UID:     "uid-1",
		UserID:  "/principals/user/alice",
		Access:  sharing.ReadOnlyAccess,
		State:   sharing.StateNeedsAction,
		Summary: "work",
	}
	require.NoError(t, store.AddOrUpdateRecord(ctx, invite))

	got, err := store.RecordForUserID(ctx, invite.UserID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, invite, *got)

	got, err = store.RecordForInviteUID(ctx, "uid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, invite, *got)

	// Upserting the same user replaces every field, the UID included.
	invite.UID = "uid-2"
	invite.Access = sharing.ReadWriteAccess
	require.NoError(t, store.AddOrUpdateRecord(ctx, invite))

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "uid-2", records[0].UID)
	assert.Equal(t, sharing.ReadWriteAccess, records[0].Access)

	// The displaced UID no longer resolves.
	got, err = store.RecordForInviteUID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddOrUpdateRecordDisplacesUIDConflict(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.AddOrUpdateRecord(ctx, sharing.Invite{
		UID: "uid-1", UserID: "/principals/user/alice",
	}))
	require.NoError(t, store.AddOrUpdateRecord(ctx, sharing.Invite{
		UID: "uid-1", UserID: "/principals/user/bob",
	}))

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/principals/user/bob", records[0].UserID)
}

func TestAllRecordsOrdered(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, userID := range []string{
		"/principals/user/zelda",
		"/principals/user/alice",
		"/principals/user/bob",
	} {
		require.NoError(t, store.AddOrUpdateRecord(ctx,
			sharing.NewInvite(userID, sharing.ReadOnlyAccess, "work")))
	}

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "/principals/user/alice", records[0].UserID)
	assert.Equal(t, "/principals/user/bob", records[1].UserID)
	assert.Equal(t, "/principals/user/zelda", records[2].UserID)
}

func TestRemoveRecords(t *testing.T) {
	ctx := context.Background()
	store := New()

	invite := sharing.Invite{UID: "uid-1", UserID: "/principals/user/alice"}
	require.NoError(t, store.AddOrUpdateRecord(ctx, invite))

	// Removing an absent record is a no-op.
	require.NoError(t, store.RemoveRecordForUserID(ctx, "/principals/user/ghost"))
	require.NoError(t, store.RemoveRecordForInviteUID(ctx, "no-such-uid"))

	require.NoError(t, store.RemoveRecordForUserID(ctx, invite.UserID))
	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.AddOrUpdateRecord(ctx, invite))
	require.NoError(t, store.RemoveRecordForInviteUID(ctx, invite.UID))
	got, err := store.RecordForUserID(ctx, invite.UserID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveClearsStore(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.AddOrUpdateRecord(ctx,
		sharing.Invite{UID: "uid-1", UserID: "/principals/user/alice"}))
	require.NoError(t, store.Remove(ctx))

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
