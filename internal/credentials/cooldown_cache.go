package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CooldownCache mirrors a connection's cooldown_until into Redis. Nothing
// in the gateway constructs one: Selector holds no cache, and cooldowns
// are read and written only through the database row.
type CooldownCache struct {
	client *redis.Client
}

func NewCooldownCache(addr, password string, db int) (*CooldownCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("credentials: connect to redis: %w", err)
	}
	return &CooldownCache{client: client}, nil
}

func cooldownKey(connectionID uuid.UUID) string {
	return "cooldown:" + connectionID.String()
}

// SetCooldown records that connectionID is unavailable until until, with a
// TTL matching the cooldown window so the key self-expires.
func (c *CooldownCache) SetCooldown(ctx context.Context, connectionID uuid.UUID, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return c.client.Del(ctx, cooldownKey(connectionID)).Err()
	}
	return c.client.Set(ctx, cooldownKey(connectionID), until.Unix(), ttl).Err()
}

// IsCoolingDown reports whether connectionID currently has a live cooldown
// entry. A miss (key absent or Redis unreachable) is treated as "not
// cooling down" — the database check downstream remains authoritative.
func (c *CooldownCache) IsCoolingDown(ctx context.Context, connectionID uuid.UUID) bool {
	exists, err := c.client.Exists(ctx, cooldownKey(connectionID)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

func (c *CooldownCache) Close() error {
	return c.client.Close()
}
