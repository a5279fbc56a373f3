package dispatcher

import (
	"context"
)

// 可见性，只有 published 的 action 允许客户端直接调用
const (
	VisibilityPublished = "published"
	VisibilityPublic    = "public"
	VisibilityProtected = "protected"
	VisibilityPrivate   = "private"
)

// Endpoint 一个可调用的 action
type Endpoint struct {
	Name          string `json:"name"`
	Visibility    string `json:"visibility"`
	DisableSocket bool   `json:"disableSocket"`
}

// Published 未声明可见性按 published 处理
func (e *Endpoint) Published() bool {
	return e.Visibility == "" || e.Visibility == VisibilityPublished
}

// Meta 随调用转发给后端的上下文
type Meta struct {
	UserID   string         `json:"userId,omitempty"`
	User     map[string]any `json:"user,omitempty"`
	Token    string         `json:"token,omitempty"`
	SocketID string         `json:"socketId,omitempty"`
	Language string         `json:"language,omitempty"`
}

// Broker 后端调用边界
//
// FindEndpoint 找不到时返回 errs.ErrServiceNotFound，后端不可达返回 errs.ErrServiceUnavailable。
type Broker interface {
	FindEndpoint(ctx context.Context, name string) (*Endpoint, error)
	Call(ctx context.Context, name string, params any, meta Meta) (any, error)
}
