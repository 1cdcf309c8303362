package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes drivers of the same order: a webhook delivery and a
// concurrent admin action take the order lock before opening a transaction.
// The DB row lock stays authoritative; this keeps contention off the rows.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getOrderLockDuration returns the lock TTL from the environment or the
// default. The TTL bounds how long a crashed holder can wedge an order.
func (r *Redis) getOrderLockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	lockTTLStr := os.Getenv("ORDER_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid ORDER_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 30 seconds")
		return defaultDuration
	}
	return time.Duration(lockTTLSec) * time.Second
}

// LockOrder acquires the per-order lock for the given owner token.
func (r *Redis) LockOrder(orderID, owner string) (bool, error) {
	key := "order_lock:" + orderID
	ok, err := r.Client.SetNX(context.Background(), key, owner, r.getOrderLockDuration()).Result()
	return ok, err
}

// UnlockOrder releases the lock only if the owner token still holds it, so
// an expired-and-reacquired lock is never released by the old holder.
func (r *Redis) UnlockOrder(orderID, owner string) error {
	ctx := context.Background()
	key := fmt.Sprintf("order_lock:%s", orderID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// Held reports whether some driver currently holds the order lock.
func (r *Redis) Held(orderID string) (bool, error) {
	_, err := r.Client.Get(context.Background(), "order_lock:"+orderID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
