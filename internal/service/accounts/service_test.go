package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := New(st, access.Moderator("Admin"), nil)
	require.NoError(t, svc.SeedModerator(context.Background(), "root-pass"))
	return svc, st
}

func TestSeedModeratorIsIdempotent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedModerator(ctx, "other"))

	user, err := st.GetUser(ctx, "Admin")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(user.PasswordHash, "root-pass"))
}

func TestSignupQueueApproveAndReject(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, "bob", "pw"))
	require.NoError(t, svc.Signup(ctx, "carol", "pw"))

	assert.ErrorIs(t, svc.Signup(ctx, "BOB", "pw"), ErrSignupPending)
	assert.ErrorIs(t, svc.Signup(ctx, "admin", "pw"), ErrUserExists)
	assert.ErrorIs(t, svc.Signup(ctx, "", "pw"), auth.ErrInvalidUsername)

	assert.Equal(t, []string{"bob", "carol"}, svc.Pending())

	assert.ErrorIs(t, svc.Approve(ctx, "Bob"), ErrNoPendingSignup)
	require.NoError(t, svc.Approve(ctx, "bob"))
	require.NoError(t, svc.Reject("carol"))
	assert.ErrorIs(t, svc.Reject("carol"), ErrNoPendingSignup)
	assert.Empty(t, svc.Pending())

	user, err := st.GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(user.PasswordHash, "pw"))

	assert.ErrorIs(t, svc.Signup(ctx, "bob", "pw"), ErrUserExists)
}

func TestApproveWhenNameTakenMeanwhile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, "dave", "pw"))
	require.NoError(t, svc.AddUser(ctx, "Dave", "pw2"))

	assert.ErrorIs(t, svc.Approve(ctx, "dave"), ErrUserExists)
	assert.Empty(t, svc.Pending())
}

func TestAddDeleteAndListUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddUser(ctx, "zoe", "pw"))
	require.NoError(t, svc.AddUser(ctx, "alice", "pw"))
	assert.ErrorIs(t, svc.AddUser(ctx, "ALICE", "pw"), ErrUserExists)

	names, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "zoe"}, names)

	assert.ErrorIs(t, svc.DeleteUser(ctx, "admin"), ErrProtectedAccount)
	assert.ErrorIs(t, svc.DeleteUser(ctx, "nobody"), ErrUserNotFound)
	require.NoError(t, svc.DeleteUser(ctx, "ZOE"))

	names, err = svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names)
}
