package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	c := New()
	ctx := context.Background()

	got, err := c.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, c.SetSession(ctx, "tok", "u1", time.Minute))
	got, err = c.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", got)

	require.NoError(t, c.DeleteSession(ctx, "tok"))
	got, err = c.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionExpiry(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.SetSession(ctx, "tok", "u1", -time.Second))
	got, err := c.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoginRateLimit(t *testing.T) {
	c := New()
	ctx := context.Background()

	for i := 0; i < loginRateLimitMax; i++ {
		allowed, err := c.CheckLoginRateLimit(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := c.CheckLoginRateLimit(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)

	// лимит считается на username
	allowed, err = c.CheckLoginRateLimit(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPushSubscriptions(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.AddPushSubscription(ctx, `{"endpoint":"a"}`))
	require.NoError(t, c.AddPushSubscription(ctx, `{"endpoint":"a"}`))
	require.NoError(t, c.AddPushSubscription(ctx, `{"endpoint":"b"}`))

	subs, err := c.ListPushSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	require.NoError(t, c.RemovePushSubscription(ctx, `{"endpoint":"a"}`))
	subs, err = c.ListPushSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"endpoint":"b"}`}, subs)
}
