package cache

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the Redis Pub/Sub channel used for cache
// invalidation signals. When an admin write changes tenant entitlement
// state, the writing instance publishes the affected cache keys here;
// all subscribed instances evict them from their L1 cache instead of
// waiting for TTL expiry.
const InvalidationChannel = "entgate:cache:invalidate"

// Invalidator listens for invalidation signals over Redis Pub/Sub and
// evicts the corresponding keys from a local cache (typically the L1
// in-memory cache in a tiered setup).
type Invalidator struct {
	local  Cache
	client *redis.Client
	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewInvalidator creates an invalidator bound to the given local cache.
func NewInvalidator(local Cache, client *redis.Client) *Invalidator {
	return &Invalidator{
		local:  local,
		client: client,
	}
}

// Start begins listening for invalidation signals. It returns after
// the subscription is established; delivery runs in a background
// goroutine until Close or context cancellation.
func (i *Invalidator) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.mu.Unlock()

	sub := i.client.Subscribe(subCtx, InvalidationChannel)
	if _, err := sub.Receive(subCtx); err != nil {
		cancel()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_ = i.local.Delete(subCtx, msg.Payload)
			}
		}
	}()
	return nil
}

// Publish broadcasts an invalidation for the given key to all
// subscribed instances, including this one.
func (i *Invalidator) Publish(ctx context.Context, key string) error {
	return i.client.Publish(ctx, InvalidationChannel, key).Err()
}

// Close stops the subscription.
func (i *Invalidator) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	if i.cancel != nil {
		i.cancel()
	}
	return nil
}
