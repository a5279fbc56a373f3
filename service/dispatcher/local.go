package dispatcher

import (
	"context"
	"sort"
	"sync"

	"PPSocket/tools/errs"
)

// Action 本进程内的 action 实现
type Action func(ctx context.Context, params any, meta Meta) (any, error)

type localAction struct {
	ep Endpoint
	fn Action
}

// Local 进程内 action 注册表
type Local struct {
	mu      sync.RWMutex
	actions map[string]localAction
}

func NewLocal() *Local {
	return &Local{actions: make(map[string]localAction)}
}

// Register 同名覆盖
func (l *Local) Register(ep Endpoint, fn Action) {
	l.mu.Lock()
	l.actions[ep.Name] = localAction{ep: ep, fn: fn}
	l.mu.Unlock()
}

func (l *Local) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.actions))
	for name := range l.actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (l *Local) lookup(name string) (localAction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.actions[name]
	return a, ok
}

func (l *Local) FindEndpoint(_ context.Context, name string) (*Endpoint, error) {
	a, ok := l.lookup(name)
	if !ok {
		return nil, errs.ErrServiceNotFound.WrapMsg("local action not found", "action", name)
	}
	ep := a.ep
	return &ep, nil
}

func (l *Local) Call(ctx context.Context, name string, params any, meta Meta) (any, error) {
	a, ok := l.lookup(name)
	if !ok {
		return nil, errs.ErrServiceNotFound.WrapMsg("local action not found", "action", name)
	}
	return a.fn(ctx, params, meta)
}
