package redis

import (
	"context"
	"testing"

	"PPSocket/tools/errs"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Addr(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewClient(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()
	assert.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewClient_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewClient(context.Background(), Config{URL: "redis://" + mr.Addr() + "/0", Addr: "ignored:1"})
	require.NoError(t, err)
	defer rdb.Close()
	assert.Equal(t, mr.Addr(), rdb.Options().Addr)
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(context.Background(), Config{URL: "http://nope"})
	assert.True(t, errs.HasCode(err, errs.ArgsError))

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewClient(context.Background(), Config{Addr: addr})
	assert.True(t, errs.HasCode(err, errs.StoreUnavailable))
}
