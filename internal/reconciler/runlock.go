package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giveline/donation-ledger/pkg/logger"
	"github.com/giveline/donation-ledger/pkg/redis"
)

// ErrRunInProgress is returned when another reconciliation run holds the
// lock. The caller should back off and let the running batch finish.
var ErrRunInProgress = errors.New("a reconciliation run is already in progress")

type RunLockConfig struct {
	Key string
	TTL time.Duration
}

func DefaultRunLockConfig() RunLockConfig {
	return RunLockConfig{
		Key: "reconcile:run-lock",
		TTL: 5 * time.Minute,
	}
}

// RunLock serializes reconciliation runs across all API instances with a
// single redis SetNX lease. The TTL bounds how long a crashed run can
// block the next one.
type RunLock struct {
	redis  redis.RedisAdapter
	config RunLockConfig
}

func NewRunLock(adapter redis.RedisAdapter, config RunLockConfig) *RunLock {
	if config.Key == "" {
		config.Key = DefaultRunLockConfig().Key
	}
	if config.TTL <= 0 {
		config.TTL = DefaultRunLockConfig().TTL
	}
	return &RunLock{
		redis:  adapter,
		config: config,
	}
}

type RunLease struct {
	lock     *RunLock
	released bool
}

// Acquire claims the run lock. A redis failure is surfaced as an error
// rather than silently running unlocked.
func (l *RunLock) Acquire(ctx context.Context) (*RunLease, error) {
	value := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	acquired, err := l.redis.SetNX(l.config.Key, value, l.config.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	logger.Debug("Run lock acquired", "key", l.config.Key, "ttl", l.config.TTL)
	return &RunLease{lock: l}, nil
}

// Release frees the lease. Safe to call more than once; a failed delete
// only delays the next run until the TTL expires.
func (r *RunLease) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	if err := r.lock.redis.Del(r.lock.config.Key); err != nil {
		logger.Warn("Failed to release run lock, lease expires via TTL",
			"key", r.lock.config.Key, "error", err)
	}
}
