package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

type namedMid struct {
	name string
	h    gin.HandlerFunc
}

// MiddlewareManager 按名字注册/注销全局中间件，运行中修改对下一个请求生效
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []namedMid
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Add 同名的替换原位置，否则追加到末尾
func (m *MiddlewareManager) Add(name string, h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mids {
		if m.mids[i].name == name {
			m.mids[i].h = h
			return
		}
	}
	m.mids = append(m.mids, namedMid{name: name, h: h})
}

func (m *MiddlewareManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mids {
		if m.mids[i].name == name {
			m.mids = append(m.mids[:i:i], m.mids[i+1:]...)
			return true
		}
	}
	return false
}

func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.mids))
	for i, x := range m.mids {
		out[i] = x.name
	}
	return out
}

// Use 返回一个 gin.HandlerFunc，作为总控挂载到 Engine 上
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		mids := append([]namedMid(nil), m.mids...) // 快照
		m.mu.RUnlock()

		for _, x := range mids {
			x.h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}
