package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// PrincipalCache keeps resolved principals in Redis keyed by subject id.
// A nil cache, or one without a client, is a no-op.
type PrincipalCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPrincipalCache(client *redis.Client, ttl time.Duration) *PrincipalCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PrincipalCache{client: client, ttl: ttl}
}

func (c *PrincipalCache) enabled() bool {
	return c != nil && c.client != nil
}

func principalKey(subjectID string) string {
	return fmt.Sprintf("principal:%s", subjectID)
}

// Get returns the cached principal, or false on a miss or any Redis error
func (c *PrincipalCache) Get(ctx context.Context, subjectID string) (*Principal, bool) {
	if !c.enabled() {
		return nil, false
	}

	data, err := c.client.Get(ctx, principalKey(subjectID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: principal cache get failed for %s: %v", subjectID, err)
		}
		return nil, false
	}

	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("WARN: discarding unreadable cached principal %s: %v", subjectID, err)
		return nil, false
	}
	return &p, true
}

func (c *PrincipalCache) Set(ctx context.Context, p *Principal) {
	if !c.enabled() || p == nil {
		return
	}

	data, err := json.Marshal(p)
	if err != nil {
		log.Printf("WARN: failed to encode principal %s: %v", p.ID, err)
		return
	}
	if err := c.client.Set(ctx, principalKey(p.ID), data, c.ttl).Err(); err != nil {
		log.Printf("WARN: principal cache set failed for %s: %v", p.ID, err)
	}
}

// Invalidate drops the cached principal for subjectID
func (c *PrincipalCache) Invalidate(ctx context.Context, subjectID string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, principalKey(subjectID)).Err(); err != nil {
		log.Printf("WARN: principal cache delete failed for %s: %v", subjectID, err)
	}
}
