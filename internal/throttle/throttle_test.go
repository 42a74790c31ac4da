package throttle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedisAddr = "localhost:6379"

func TestMemoryStore_Allow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := s.Allow(ctx, "typing:1:room:2", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.Allow(ctx, "typing:1:room:2", 2*time.Second)
	assert.False(t, ok, "second action inside the window")

	ok, _ = s.Allow(ctx, "typing:1:room:3", 2*time.Second)
	assert.True(t, ok, "keys are independent")

	now = now.Add(2 * time.Second)
	ok, _ = s.Allow(ctx, "typing:1:room:2", 2*time.Second)
	assert.True(t, ok, "window expired")
}

func TestMemoryStore_SweepsExpiredKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1023; i++ {
		_, _ = s.Allow(ctx, fmt.Sprintf("k%d", i), time.Second)
	}
	now = now.Add(time.Minute)
	_, _ = s.Allow(ctx, "trigger", time.Second)

	assert.Len(t, s.expires, 1)
}

func TestRedisStore_Allow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	prefix := fmt.Sprintf("throttle-test:%d:", time.Now().UnixNano())
	s := NewRedisStore(client, prefix)
	t.Cleanup(func() { client.Del(ctx, prefix+"k") })

	ok, err := s.Allow(ctx, "k", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Allow(ctx, "k", 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(300 * time.Millisecond)
	ok, err = s.Allow(ctx, "k", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}
