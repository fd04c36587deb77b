package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// fakeRedis is an in-memory stand-in for the handful of commands the cache
// issues.
type fakeRedis struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.([]byte)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Scan returns one key per page to exercise the cursor loop.
func (f *fakeRedis) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := uint64(1)
	if len(keys) == 1 {
		next = 0
	}
	return redis.NewScanCmdResult(keys[:1], next, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func exerciseCache(t *testing.T, c ListingCache) {
	t.Helper()
	ctx := context.Background()

	var got []listing
	ok, err := c.Get(ctx, "hook-photos", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []listing{{ID: "1", Name: "a.jpg"}, {ID: "2", Name: "b.png"}}
	require.NoError(t, c.Set(ctx, "hook-photos", want))
	require.NoError(t, c.Set(ctx, "cta-photos", []listing{{ID: "3", Name: "c.jpg"}}))

	ok, err = c.Get(ctx, "hook-photos", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	// Mutating the returned slice never leaks back into the cache.
	got[0].Name = "changed"
	var again []listing
	_, err = c.Get(ctx, "hook-photos", &again)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", again[0].Name)

	require.NoError(t, c.Invalidate(ctx, "hook-photos"))
	ok, err = c.Get(ctx, "hook-photos", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Get(ctx, "cta-photos", &got)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Clear(ctx))
	ok, err = c.Get(ctx, "cta-photos", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	exerciseCache(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(20 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []string{"v"}))

	time.Sleep(40 * time.Millisecond)
	var got []string
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	fake := newFakeRedis()
	c := newRedisCache(fake, "carousel:", 30*time.Minute)
	exerciseCache(t, c)

	require.NoError(t, c.Set(context.Background(), "screens", []string{"x"}))
	assert.Contains(t, fake.data, "carousel:screens")
	assert.Equal(t, 30*time.Minute, fake.ttls["carousel:screens"])

	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
	assert.True(t, fake.closed)
}

func TestRedisCache_ClearKeepsOtherPrefixes(t *testing.T) {
	fake := newFakeRedis()
	fake.data["other:key"] = []byte(`1`)
	c := newRedisCache(fake, "carousel", 0)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, k))
	}
	require.NoError(t, c.Clear(ctx))

	assert.Len(t, fake.data, 1)
	assert.Contains(t, fake.data, "other:key")
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestRedisCache_ClearWithoutPrefixDeletesNothing(t *testing.T) {
	fake := newFakeRedis()
	fake.data["session:abc"] = []byte(`1`)
	fake.data["queue:jobs"] = []byte(`2`)
	c := newRedisCache(fake, "", 0)

	assert.ErrorIs(t, c.Clear(context.Background()), ErrNoPrefix)
	assert.Len(t, fake.data, 2)
}

func TestRedisCache_Key(t *testing.T) {
	assert.Equal(t, "p:a:b", newRedisCache(newFakeRedis(), "p", 0).Key("a", "b"))
	assert.Equal(t, "a:b", newRedisCache(newFakeRedis(), "", 0).Key("a", "b"))
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("not-a-url://", "p", 0)
	assert.Error(t, err)
}
