package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/emtchat/emtkit/pkg/entitlement"
)

// StatusCache caches assembled status responses so tight polling loops do
// not hammer the database and usage counters. Misses and transport failures
// are indistinguishable to callers; both just mean recompute.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache creates a Redis-backed status cache. TTL values at or below
// zero default to 30 seconds, short enough that webhook-driven changes show
// up promptly without an explicit invalidation channel.
func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	if client == nil {
		panic("billing: redis client is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(tenantID uuid.UUID) string {
	return "billing:status:" + tenantID.String()
}

// Get returns the cached status for a tenant, or nil on miss.
func (c *StatusCache) Get(ctx context.Context, tenantID uuid.UUID) *entitlement.StatusResponse {
	data, err := c.client.Get(ctx, statusKey(tenantID)).Bytes()
	if err != nil {
		return nil
	}
	var status entitlement.StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil
	}
	return &status
}

// Set stores a status response. Serialization or transport errors are
// returned for logging but callers should not fail the request over them.
func (c *StatusCache) Set(ctx context.Context, tenantID uuid.UUID, status *entitlement.StatusResponse) error {
	data, err := json.Marshal(status)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	if err := c.client.Set(ctx, statusKey(tenantID), data, c.ttl).Err(); err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

// Invalidate drops the cached status after a subscription change.
func (c *StatusCache) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	c.client.Del(ctx, statusKey(tenantID))
}
