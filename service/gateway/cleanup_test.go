package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanups_ExactlyOnce(t *testing.T) {
	c := newCleanups()
	var runs [3]atomic.Int32
	ids := make([]uint64, 3)
	for i := range ids {
		ids[i] = c.Add(func(context.Context) error {
			runs[i].Add(1)
			return nil
		})
	}

	fn, ok := c.Take(ids[1])
	require.True(t, ok)
	require.NoError(t, fn(context.Background()))
	_, ok = c.Take(ids[1])
	assert.False(t, ok)

	require.NoError(t, c.Drain(context.Background()))
	require.NoError(t, c.Drain(context.Background()))
	for i := range runs {
		assert.Equal(t, int32(1), runs[i].Load(), "callback %d", i)
	}

	_, ok = c.Take(ids[0])
	assert.False(t, ok, "drained callbacks are gone")
	assert.Zero(t, c.Len())
}

func TestCleanups_DrainWaitsAndReportsErrors(t *testing.T) {
	c := newCleanups()
	var done atomic.Int32
	for i := 0; i < 5; i++ {
		c.Add(func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			done.Add(1)
			return nil
		})
	}
	boom := errors.New("boom")
	c.Add(func(context.Context) error { return boom })
	c.Add(func(context.Context) error { panic("bad cleanup") })

	start := time.Now()
	err := c.Drain(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(5), done.Load())
	assert.Less(t, time.Since(start), time.Second, "callbacks run concurrently")
}
