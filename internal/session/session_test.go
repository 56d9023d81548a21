package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(time.Hour)

	id, err := st.Create(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	user, err := st.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	require.NoError(t, st.Invalidate(ctx, id))
	_, err = st.Lookup(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Invalidate(ctx, "unknown"))
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(time.Minute)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	id, err := st.Create(ctx, "bob")
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = st.Lookup(ctx, id)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = st.Lookup(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreLifecycle(t *testing.T) {
	url := os.Getenv("ROOMCHAT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ROOMCHAT_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	st, err := NewRedisStore(ctx, url, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	id, err := st.Create(ctx, "alice")
	require.NoError(t, err)

	user, err := st.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	require.NoError(t, st.Invalidate(ctx, id))
	_, err = st.Lookup(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}
