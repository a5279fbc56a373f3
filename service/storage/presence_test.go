package storage

import (
	"context"
	"testing"
	"time"

	"PPSocket/tools/errs"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresence(t *testing.T) (*Presence, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPresence(rdb, PresenceConfig{
		NodeID:    "node-1",
		KeyPrefix: "ppsocket.online:",
		TTL:       time.Hour,
	}), mr
}

func TestPresence_OnlineWritesEntryWithTTL(t *testing.T) {
	p, mr := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.Online(ctx, "u1", "c1"))

	assert.Equal(t, "node-1", mr.HGet("ppsocket.online:u1", "c1"))
	assert.Equal(t, time.Hour, mr.TTL("ppsocket.online:u1"))
}

func TestPresence_OfflineRemovesOnlyOwnEntry(t *testing.T) {
	p, mr := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.Online(ctx, "u1", "c1"))
	require.NoError(t, p.Online(ctx, "u1", "c2"))

	left, err := p.Offline(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)
	assert.Equal(t, "", mr.HGet("ppsocket.online:u1", "c1"))
	assert.Equal(t, "node-1", mr.HGet("ppsocket.online:u1", "c2"))

	online, err := p.Exists(ctx, []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, online)

	left, err = p.Offline(ctx, "u1", "c2")
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.False(t, mr.Exists("ppsocket.online:u1"))

	// 重复下线幂等
	left, err = p.Offline(ctx, "u1", "c2")
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestPresence_ExistsPreservesOrder(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.Online(ctx, "a", "c1"))
	require.NoError(t, p.Online(ctx, "c", "c2"))

	got, err := p.Exists(ctx, []string{"a", "b", "c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true}, got)

	got, err = p.Exists(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPresence_ExpiresWithoutRefresh(t *testing.T) {
	p, mr := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.Online(ctx, "u1", "c1"))
	require.NoError(t, p.Online(ctx, "u2", "c2"))

	mr.FastForward(40 * time.Minute)
	require.NoError(t, p.Refresh(ctx, []string{"u1", "ghost"}))
	mr.FastForward(40 * time.Minute)

	got, err := p.Exists(ctx, []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, got)
}

func TestPresence_Sessions(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.Online(ctx, "u1", "c1"))
	require.NoError(t, p.Online(ctx, "u1", "c2"))

	m, err := p.Sessions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c1": "node-1", "c2": "node-1"}, m)
}

func TestPresence_StoreFailurePropagates(t *testing.T) {
	p, mr := newTestPresence(t)
	mr.Close()
	ctx := context.Background()

	_, err := p.Exists(ctx, []string{"u1"})
	assert.True(t, errs.HasCode(err, errs.StoreUnavailable))

	err = p.Online(ctx, "u1", "c1")
	assert.True(t, errs.HasCode(err, errs.StoreUnavailable))

	_, err = p.Offline(ctx, "u1", "c1")
	assert.True(t, errs.HasCode(err, errs.StoreUnavailable))
}
