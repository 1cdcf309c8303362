package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client using miniredis for testing
// miniredis is an in-memory Redis mock that doesn't require a real Redis server
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestLockOrder_AtomicOperation(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	orderID := "order-123"

	// Test 1: Lock the order successfully
	locked, err := r.LockOrder(orderID, "owner-1")
	require.NoError(t, err)
	assert.True(t, locked, "Should lock the order successfully")

	// Test 2: Try to lock the same order again - should fail
	locked, err = r.LockOrder(orderID, "owner-2")
	require.NoError(t, err)
	assert.False(t, locked, "Should not lock an already locked order")

	// Test 3: Unlock the order
	err = r.UnlockOrder(orderID, "owner-1")
	require.NoError(t, err)

	// Test 4: Lock again - should succeed now
	locked, err = r.LockOrder(orderID, "owner-3")
	require.NoError(t, err)
	assert.True(t, locked, "Should lock the order after unlock")

	r.UnlockOrder(orderID, "owner-3")
}

func TestUnlockOrder_OnlyOwnerUnlocks(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	orderID := "order-456"

	locked, err := r.LockOrder(orderID, "owner-1")
	require.NoError(t, err)
	assert.True(t, locked)

	// Unlock with the wrong owner token - lock must survive
	err = r.UnlockOrder(orderID, "owner-2")
	require.NoError(t, err)

	held, err := r.Held(orderID)
	require.NoError(t, err)
	assert.True(t, held, "Lock should still be held after foreign unlock attempt")

	// Unlock with the right owner
	err = r.UnlockOrder(orderID, "owner-1")
	require.NoError(t, err)

	held, err = r.Held(orderID)
	require.NoError(t, err)
	assert.False(t, held, "Lock should be released by its owner")
}

func TestUnlockOrder_ExpiredLockIsNoError(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	// Unlocking a lock that was never taken (or already expired) succeeds
	err := r.UnlockOrder("order-gone", "owner-1")
	require.NoError(t, err)
}

func TestLockOrder_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	orderID := "order-ttl"

	locked, err := r.LockOrder(orderID, "owner-1")
	require.NoError(t, err)
	assert.True(t, locked)

	// miniredis lets us fast-forward past the TTL
	mr.FastForward(31 * time.Second)

	locked, err = r.LockOrder(orderID, "owner-2")
	require.NoError(t, err)
	assert.True(t, locked, "Expired lock should be acquirable by a new owner")
}

func TestConcurrentLockAttempts_SingleHolder(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	orderID := "order-concurrent"
	const numAttempts = 50

	var wg sync.WaitGroup
	successfulLocks := make([]string, 0)
	var mu sync.Mutex

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func(attemptNum int) {
			defer wg.Done()

			owner := fmt.Sprintf("owner-%d", attemptNum)
			locked, err := r.LockOrder(orderID, owner)

			if err == nil && locked {
				mu.Lock()
				successfulLocks = append(successfulLocks, owner)
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)
				r.UnlockOrder(orderID, owner)
			}
		}(i)
	}

	wg.Wait()

	assert.Greater(t, len(successfulLocks), 0, "At least some lock attempts should succeed")
	t.Logf("Successful locks: %d out of %d attempts", len(successfulLocks), numAttempts)
}
