package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/giveline/donation-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupRunLock(t *testing.T) (*RunLock, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() { _ = client.Close() })

	adapter := redis.NewRedisAdapterFromClient("ledger-test", client)
	return NewRunLock(adapter, RunLockConfig{Key: "reconcile:run-lock", TTL: time.Minute}), mr
}

func TestRunLock_AcquireAndRelease(t *testing.T) {
	lock, _ := setupRunLock(t)
	ctx := context.Background()

	lease, err := lock.Acquire(ctx)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)

	lease.Release()

	lease2, err := lock.Acquire(ctx)
	require.NoError(t, err)
	lease2.Release()
}

func TestRunLock_ReleaseIsIdempotent(t *testing.T) {
	lock, _ := setupRunLock(t)

	lease, err := lock.Acquire(context.Background())
	require.NoError(t, err)

	lease.Release()
	lease.Release()

	_, err = lock.Acquire(context.Background())
	require.NoError(t, err)
}

func TestRunLock_TTLExpiryFreesTheLock(t *testing.T) {
	lock, mr := setupRunLock(t)
	ctx := context.Background()

	_, err := lock.Acquire(ctx)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx)
	require.ErrorIs(t, err, ErrRunInProgress)

	mr.FastForward(2 * time.Minute)

	lease, err := lock.Acquire(ctx)
	require.NoError(t, err)
	lease.Release()
}

func TestService_Reconcile_HonorsRunLock(t *testing.T) {
	lock, _ := setupRunLock(t)

	store := new(mockStore)
	processor := new(mockProcessor)
	svc := NewService(store, processor, lock, Config{Workers: 2})

	held, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	_, err = svc.Reconcile(context.Background(), time.Time{}, 10)
	assert.ErrorIs(t, err, ErrRunInProgress)

	store.AssertNotCalled(t, "FindSettlementCandidates", mock.Anything, mock.Anything, mock.Anything)
}
