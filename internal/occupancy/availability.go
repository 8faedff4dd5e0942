package occupancy

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AvailabilityProbe queries the channel manager for a property's reachability.
// The Beds24 client satisfies it; core code never talks to the network
// directly.
type AvailabilityProbe interface {
	Availability(ctx context.Context, propertyID string) (bool, error)
}

// CachedChecker caches successful probes in Redis for a bounded TTL and
// collapses concurrent probes for the same property. Probe failures are never
// cached: the next caller gets a fresh attempt rather than a sticky UNKNOWN.
type CachedChecker struct {
	probe   AvailabilityProbe
	cache   *redis.Client
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
}

// NewCachedChecker constructs the checker. A zero ttl disables caching; a
// zero timeout defaults to five seconds.
func NewCachedChecker(probe AvailabilityProbe, cache *redis.Client, ttl, timeout time.Duration) *CachedChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CachedChecker{probe: probe, cache: cache, ttl: ttl, timeout: timeout}
}

func availabilityKey(propertyID string) string {
	return "occupancy:availability:" + propertyID
}

// Check returns the probe status for a property. A cache entry older than the
// TTL has expired, so staleness beyond the TTL is impossible by construction.
func (c *CachedChecker) Check(ctx context.Context, propertyID string) ProbeStatus {
	if c == nil || c.probe == nil {
		return ProbeUnreachable
	}
	key := availabilityKey(propertyID)
	if c.cache != nil && c.ttl > 0 {
		if val, err := c.cache.Get(ctx, key).Result(); err == nil && val == "1" {
			return ProbeOK
		}
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		_, err := c.probe.Availability(probeCtx, propertyID)
		return nil, err
	})
	_ = result
	if err != nil {
		return ProbeUnreachable
	}

	if c.cache != nil && c.ttl > 0 {
		_ = c.cache.Set(ctx, key, "1", c.ttl).Err()
	}
	return ProbeOK
}

// Invalidate drops the cached probe for a property, forcing the next check to
// hit Beds24. The availability warmup job uses it after mapping changes.
func (c *CachedChecker) Invalidate(ctx context.Context, propertyID string) {
	if c == nil || c.cache == nil {
		return
	}
	_ = c.cache.Del(ctx, availabilityKey(propertyID)).Err()
}
