package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

type hitObserver struct {
	mu           sync.Mutex
	hits, misses int
}

func (o *hitObserver) ObserveCache(_ string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	cfg.DefaultTTL = time.Minute

	m, err := NewManager(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

type item struct {
	Name string `json:"name"`
}

func TestNewManager_Unreachable(t *testing.T) {
	cfg := config.DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"

	_, err := NewManager(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestManager_SetAndGetJSON(t *testing.T) {
	mr, m := setupTestRedis(t)
	obs := &hitObserver{}
	m.WithObserver(obs)
	ctx := context.Background()

	var got []item
	assert.True(t, IsCacheMiss(m.GetJSON(ctx, "loan-types", "all", &got)))

	require.NoError(t, m.SetJSON(ctx, "loan-types", "all", []item{{Name: "Salary advance"}}, 0))
	require.NoError(t, m.GetJSON(ctx, "loan-types", "all", &got))
	assert.Equal(t, []item{{Name: "Salary advance"}}, got)

	assert.True(t, mr.Exists("loanflow:loan-types:all"))
	assert.Equal(t, time.Minute, mr.TTL("loanflow:loan-types:all"))
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestManager_Expiry(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "ns", "k", item{Name: "x"}, time.Second))
	mr.FastForward(2 * time.Second)

	var got item
	assert.ErrorIs(t, m.GetJSON(ctx, "ns", "k", &got), ErrCacheMiss)
}

func TestManager_CorruptEntryIsMiss(t *testing.T) {
	mr, m := setupTestRedis(t)
	require.NoError(t, mr.Set("loanflow:ns:k", "{not json"))

	var got item
	assert.ErrorIs(t, m.GetJSON(context.Background(), "ns", "k", &got), ErrCacheMiss)
}

func TestManager_Invalidate(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "loan-types", "all", []item{}, 0))
	require.NoError(t, m.SetJSON(ctx, "loan-types", "active", []item{}, 0))
	require.NoError(t, m.SetJSON(ctx, "branches", "all", []item{}, 0))

	require.NoError(t, m.Invalidate(ctx, "loan-types"))
	assert.False(t, mr.Exists("loanflow:loan-types:all"))
	assert.False(t, mr.Exists("loanflow:loan-types:active"))
	assert.True(t, mr.Exists("loanflow:branches:all"))

	// 空 namespace 不报错
	require.NoError(t, m.Invalidate(ctx, "customers"))
}

func TestManager_Close(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, m.SetJSON(ctx, "ns", "k", 1, 0), ErrClosed)
	assert.ErrorIs(t, m.Invalidate(ctx, "ns"), ErrClosed)
	var v int
	assert.ErrorIs(t, m.GetJSON(ctx, "ns", "k", &v), ErrClosed)
}

func TestManager_RedisDown(t *testing.T) {
	mr, m := setupTestRedis(t)
	require.NoError(t, m.Ping(context.Background()))
	mr.Close()

	var v int
	err := m.GetJSON(context.Background(), "ns", "k", &v)
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestNewManagerWithClient_DefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	m := NewManagerWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0, nil)
	defer m.Close()

	require.NoError(t, m.SetJSON(context.Background(), "ns", "k", 1, 0))
	assert.Equal(t, 5*time.Minute, mr.TTL("loanflow:ns:k"))
}
