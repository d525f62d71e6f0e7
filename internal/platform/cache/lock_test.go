package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, ttl), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	locker, _ := newLocker(t, time.Minute)
	key := CompanyLockKey(uuid.New())

	lease, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	require.Equal(t, key, lease.Key())

	_, err = locker.Acquire(ctx, key)
	require.True(t, errors.Is(err, ErrLockHeld))

	require.NoError(t, lease.Release(ctx))
	again, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLockExpires(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t, time.Minute)
	key := CompanyLockKey(uuid.New())

	_, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	lease, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestStaleLeaseDoesNotReleaseNewOwner(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t, time.Minute)
	key := CompanyLockKey(uuid.New())

	stale, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	current, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	require.True(t, mr.Exists(key))

	require.NoError(t, current.Release(ctx))
	require.False(t, mr.Exists(key))
}

func TestNewLockerDefaultsTTL(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t, 0)
	key := CompanyLockKey(uuid.New())

	_, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	require.Equal(t, DefaultLockTTL, mr.TTL(key))
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), addr)
	require.Error(t, err)
}
