package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// minGuardTTL keeps a claim marker around briefly even when the token is
// already at or past its expiry.
const minGuardTTL = time.Minute

// TokenGuard records claimed single-use tokens in Redis.
// Key format: reset:used:<token_id>
type TokenGuard struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewTokenGuard creates a TokenGuard wrapping the given Redis client.
func NewTokenGuard(client redis.Cmdable) *TokenGuard {
	return &TokenGuard{client: client, now: time.Now}
}

// Claim marks the token as used until it would have expired anyway. It
// returns false when another caller already holds the claim.
func (g *TokenGuard) Claim(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	ttl := until.Sub(g.now())
	if ttl < minGuardTTL {
		ttl = minGuardTTL
	}
	ok, err := g.client.SetNX(ctx, g.key(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("token guard claim: %w", err)
	}
	return ok, nil
}

// Release drops a claim so the token can be used again.
func (g *TokenGuard) Release(ctx context.Context, tokenID string) error {
	if err := g.client.Del(ctx, g.key(tokenID)).Err(); err != nil {
		return fmt.Errorf("token guard release: %w", err)
	}
	return nil
}

func (g *TokenGuard) key(tokenID string) string {
	return "reset:used:" + tokenID
}
