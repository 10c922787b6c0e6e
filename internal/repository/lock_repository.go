package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type LockRepository interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error)
	ReleaseLock(ctx context.Context, lock *DistributedLock) error
	IsLocked(ctx context.Context, key string) (bool, error)
	CleanupExpiredLocks(ctx context.Context) error
}

type DistributedLock struct {
	Key        string
	Value      string
	TTL        time.Duration
	AcquiredAt time.Time
}

type lockRepository struct {
	client *redis.Client
}

func NewLockRepository(client *redis.Client) LockRepository {
	return &lockRepository{
		client: client,
	}
}

const (
	lockPrefix = "lock:"
	lockScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

func (r *lockRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := lockPrefix + key
	lockValue := uuid.New().String()

	// Try to acquire the lock with SET NX EX
	result, err := r.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !result {
		return nil, fmt.Errorf("lock already acquired for key: %s", key)
	}

	return &DistributedLock{
		Key:        lockKey,
		Value:      lockValue,
		TTL:        ttl,
		AcquiredAt: time.Now(),
	}, nil
}

func (r *lockRepository) ReleaseLock(ctx context.Context, lock *DistributedLock) error {
	// Use Lua script to ensure we only delete our own lock
	result, err := r.client.Eval(ctx, lockScript, []string{lock.Key}, lock.Value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.(int64) == 0 {
		return fmt.Errorf("lock not found or already released: %s", lock.Key)
	}

	return nil
}

func (r *lockRepository) IsLocked(ctx context.Context, key string) (bool, error) {
	lockKey := lockPrefix + key
	exists, err := r.client.Exists(ctx, lockKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lock existence: %w", err)
	}

	return exists > 0, nil
}

func (r *lockRepository) CleanupExpiredLocks(ctx context.Context) error {
	// Redis expires lock keys on its own; sweep anything left without a TTL
	pattern := lockPrefix + "*"

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		ttl, err := r.client.TTL(ctx, key).Result()
		if err != nil {
			continue
		}

		if ttl == -1 {
			r.client.Del(ctx, key)
		}
	}

	return iter.Err()
}

// NetworkLockManager provides high-level locking for the shared mutable
// state of the engine: sponsor slot arrays, per-purchase distribution runs
// and per-affiliate ledger mutations.
type NetworkLockManager struct {
	lockRepo LockRepository
}

func NewNetworkLockManager(lockRepo LockRepository) *NetworkLockManager {
	return &NetworkLockManager{
		lockRepo: lockRepo,
	}
}

// LockSponsor serializes slot assignment under a single sponsor.
func (m *NetworkLockManager) LockSponsor(ctx context.Context, sponsorID string, ttl time.Duration) (*DistributedLock, error) {
	return m.lockRepo.AcquireLock(ctx, "sponsor:"+sponsorID, ttl)
}

// LockPurchase serializes distribution per purchase id.
func (m *NetworkLockManager) LockPurchase(ctx context.Context, purchaseID string, ttl time.Duration) (*DistributedLock, error) {
	return m.lockRepo.AcquireLock(ctx, "purchase:"+purchaseID, ttl)
}

// LockLedger serializes balance mutations per affiliate.
func (m *NetworkLockManager) LockLedger(ctx context.Context, affiliateID string, ttl time.Duration) (*DistributedLock, error) {
	return m.lockRepo.AcquireLock(ctx, "ledger:"+affiliateID, ttl)
}

// ReleaseLock releases any lock acquired through this manager.
func (m *NetworkLockManager) ReleaseLock(ctx context.Context, lock *DistributedLock) error {
	return m.lockRepo.ReleaseLock(ctx, lock)
}
