package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the handful of commands TokenGuard issues. Anything
// else panics through the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable
	keys   map[string]time.Duration
	failOn error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]time.Duration)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.failOn != nil {
		return redis.NewBoolResult(false, f.failOn)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.failOn != nil {
		return redis.NewIntResult(0, f.failOn)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestTokenGuard_ClaimIsSingleUse(t *testing.T) {
	fake := newFakeRedis()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	g := NewTokenGuard(fake)
	g.now = func() time.Time { return now }

	ok, err := g.Claim(context.Background(), "jti-1", now.Add(45*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 45*time.Minute, fake.keys["reset:used:jti-1"])

	ok, err = g.Claim(context.Background(), "jti-1", now.Add(45*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenGuard_ReleaseAllowsNewClaim(t *testing.T) {
	fake := newFakeRedis()
	g := NewTokenGuard(fake)
	until := time.Now().Add(time.Hour)

	ok, err := g.Claim(context.Background(), "jti-3", until)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Release(context.Background(), "jti-3"))
	assert.NotContains(t, fake.keys, "reset:used:jti-3")

	ok, err = g.Claim(context.Background(), "jti-3", until)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenGuard_ClaimNearExpiryKeepsMinimumTTL(t *testing.T) {
	fake := newFakeRedis()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	g := NewTokenGuard(fake)
	g.now = func() time.Time { return now }

	ok, err := g.Claim(context.Background(), "jti-2", now.Add(-time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, minGuardTTL, fake.keys["reset:used:jti-2"])
}

func TestTokenGuard_PropagatesErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.failOn = errors.New("connection refused")
	g := NewTokenGuard(fake)

	ok, err := g.Claim(context.Background(), "jti", time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, fake.failOn)

	err = g.Release(context.Background(), "jti")
	assert.ErrorIs(t, err, fake.failOn)
}
