package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyMembership        = "gate:member:%d:%d"
	defaultMembershipTTL = 45 * time.Second
)

// MembershipCache stores live channel membership lookups for a short time so
// repeated gate checks do not hit the transport on every event.
type MembershipCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMembershipCache returns nil when no client is configured; a nil cache
// misses on every lookup.
func NewMembershipCache(client *redis.Client) *MembershipCache {
	if client == nil {
		return nil
	}
	return &MembershipCache{client: client, ttl: defaultMembershipTTL}
}

// Get returns the cached membership and whether it was present.
func (c *MembershipCache) Get(ctx context.Context, channelID, userID int64) (bool, bool, error) {
	if c == nil || c.client == nil {
		return false, false, nil
	}
	val, err := c.client.Get(ctx, membershipKey(channelID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

// Set remembers a positive membership. Negative results are never cached so a
// user who just joined passes the next recheck.
func (c *MembershipCache) Set(ctx context.Context, channelID, userID int64, member bool) error {
	if c == nil || c.client == nil || !member {
		return nil
	}
	return c.client.Set(ctx, membershipKey(channelID, userID), "1", c.ttl).Err()
}

func membershipKey(channelID, userID int64) string {
	return fmt.Sprintf(keyMembership, channelID, userID)
}
