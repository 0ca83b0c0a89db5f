package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestDistributedLock_AcquireRelease(t *testing.T) {
	client, mr := newClient(t)
	ctx := context.Background()

	l := NewRedisDistributedLock(client, "fleetwatch:lock:test")
	acquired, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, l.IsHeld())
	assert.True(t, mr.Exists("fleetwatch:lock:test"))

	require.NoError(t, l.Unlock(ctx))
	assert.False(t, l.IsHeld())
	assert.False(t, mr.Exists("fleetwatch:lock:test"))
}

func TestDistributedLock_Exclusive(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	first := NewRedisDistributedLock(client, "fleetwatch:lock:shared")
	second := NewRedisDistributedLock(client, "fleetwatch:lock:shared")

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not acquire a held lock")

	// releasing a lock it never held must not delete the owner's key
	require.NoError(t, second.Unlock(ctx))
	assert.True(t, first.IsHeld())

	require.NoError(t, first.Unlock(ctx))
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(ctx))
}

func TestDistributedLock_ExpiresWithoutOwner(t *testing.T) {
	client, mr := newClient(t)
	ctx := context.Background()

	first := NewRedisDistributedLock(client, "fleetwatch:lock:expire")
	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(lockTTL + time.Second)

	second := NewRedisDistributedLock(client, "fleetwatch:lock:expire")
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// the expired owner releasing late leaves the new owner's key alone
	require.NoError(t, first.Unlock(ctx))
	assert.True(t, mr.Exists("fleetwatch:lock:expire"))
	require.NoError(t, second.Unlock(ctx))
}

func TestDistributedLock_RepeatedCycles(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()
	l := NewRedisDistributedLock(client, "fleetwatch:lock:cycle")

	for i := 0; i < 3; i++ {
		ok, err := l.TryLock(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, l.Unlock(ctx))
	}
}

func TestDistributedLock_SingleInstanceMode(t *testing.T) {
	l := NewRedisDistributedLock(nil, "fleetwatch:lock:none")
	ok, err := l.TryLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, l.Unlock(context.Background()))
}

func TestWithLock(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	holder := NewRedisDistributedLock(client, "fleetwatch:lock:job")
	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ran := false
	skipped, err := WithLock(ctx, NewRedisDistributedLock(client, "fleetwatch:lock:job"), func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.False(t, ran)

	require.NoError(t, holder.Unlock(ctx))

	boom := errors.New("boom")
	skipped, err = WithLock(ctx, NewRedisDistributedLock(client, "fleetwatch:lock:job"), func(context.Context) error {
		ran = true
		return boom
	})
	assert.False(t, skipped)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran)
}
