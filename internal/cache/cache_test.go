package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/wellness-rewards/internal/config"
)

type entry struct {
	UserID uint  `json:"user_id"`
	Score  int64 `json:"score"`
}

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), &config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	var port int
	_, err := fmt.Sscan(mr.Port(), &port)
	require.NoError(t, err)
	return port
}

func TestCache_SetGetJSON(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	want := []entry{{UserID: 1, Score: 90}, {UserID: 2, Score: 30}}
	require.NoError(t, c.SetJSON(ctx, "leaderboard:1", want, time.Minute))

	var got []entry
	hit, err := c.GetJSON(ctx, "leaderboard:1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	hit, err = c.GetJSON(ctx, "leaderboard:1", &got)
	require.NoError(t, err)
	assert.False(t, hit, "entry expires after ttl")
}

func TestCache_MissAndDel(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	var got []entry
	hit, err := c.GetJSON(ctx, "absent", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, "k", entry{UserID: 1}, time.Minute))
	require.NoError(t, c.Del(ctx, "k"))
	hit, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	assert.NoError(t, c.Health(ctx))
}

func TestCache_IncrReadsBackAsJSON(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	n, err := c.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var got int64
	hit, err := c.GetJSON(ctx, "counter", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(2), got)
}

func TestCache_CorruptValue(t *testing.T) {
	c, mr := setupCache(t)
	require.NoError(t, mr.Set("bad", "{not json"))

	var got entry
	_, err := c.GetJSON(context.Background(), "bad", &got)
	assert.Error(t, err)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port := mustPort(t, mr)
	mr.Close()

	_, err := NewRedisCache(context.Background(), &config.RedisConfig{Host: "127.0.0.1", Port: port})
	assert.Error(t, err)
}
