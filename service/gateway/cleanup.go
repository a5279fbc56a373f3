package gateway

import (
	"context"
	"sort"
	"sync"

	"PPSocket/tools/errs"
	"PPSocket/tools/safe"

	"golang.org/x/sync/errgroup"
)

// CleanupFunc 连接级资源的释放动作（主要是删除 presence）
type CleanupFunc func(ctx context.Context) error

// cleanups 每个未断开的连接在这里留一个回调；正常断开时自己取走，
// 停机时剩下的就是仍然在线的连接，每个回调至多执行一次。
type cleanups struct {
	mu  sync.Mutex
	seq uint64
	fns map[uint64]CleanupFunc
}

func newCleanups() *cleanups {
	return &cleanups{fns: make(map[uint64]CleanupFunc)}
}

func (c *cleanups) Add(fn CleanupFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.fns[c.seq] = fn
	return c.seq
}

// Take 取走并注销；已被取走（或已被 Drain）返回 false
func (c *cleanups) Take(id uint64) (CleanupFunc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn, ok := c.fns[id]
	if ok {
		delete(c.fns, id)
	}
	return fn, ok
}

func (c *cleanups) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

// Drain 并发执行剩余回调并等待全部结束，返回第一个错误
func (c *cleanups) Drain(ctx context.Context) error {
	c.mu.Lock()
	pending := c.fns
	c.fns = make(map[uint64]CleanupFunc)
	c.mu.Unlock()

	ids := make([]uint64, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var g errgroup.Group
	for _, id := range ids {
		fn := pending[id]
		g.Go(func() (err error) {
			defer safe.Recover("gateway.cleanup", func(r any) { err = errs.ErrPanic(r) })
			return fn(ctx)
		})
	}
	return g.Wait()
}
