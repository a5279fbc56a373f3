package gateway

import (
	"context"

	"go.uber.org/zap"
)

// 通知方式
const (
	CastUnicast   = "unicast"   // target: 用户ID
	CastListcast  = "listcast"  // target: 用户ID列表
	CastRoomcast  = "roomcast"  // target: 房间ID或房间ID列表
	CastBroadcast = "broadcast" // target 忽略
)

// CastMessage 一次服务端通知
type CastMessage struct {
	Type      string `json:"type"`
	Target    any    `json:"target,omitempty"`
	EventName string `json:"eventName"`
	EventData any    `json:"eventData"`
}

// Notify 按方式投递到本节点及其他节点的连接。
// 调用方一般是业务逻辑，格式不对只记日志，不返回错误。
func (g *Gateway) Notify(ctx context.Context, m CastMessage) {
	log := g.log.With(zap.String("type", m.Type), zap.Any("target", m.Target), zap.String("event", m.EventName))
	if m.EventName == "" {
		log.Warn("notify without event name")
		return
	}

	var op interface {
		Emit(ctx context.Context, event string, data any) error
	}
	switch m.Type {
	case CastUnicast:
		uid, ok := m.Target.(string)
		if !ok || uid == "" {
			log.Warn("unknown notify type or target")
			return
		}
		op = g.srv.To(g.UserRoom(uid))
	case CastListcast:
		uids, ok := stringList(m.Target)
		if !ok {
			log.Warn("unknown notify type or target")
			return
		}
		rooms := make([]string, len(uids))
		for i, uid := range uids {
			rooms[i] = g.UserRoom(uid)
		}
		op = g.srv.To(rooms...)
	case CastRoomcast:
		rooms, ok := stringList(m.Target)
		if !ok {
			if r, isStr := m.Target.(string); isStr && r != "" {
				rooms, ok = []string{r}, true
			}
		}
		if !ok {
			log.Warn("unknown notify type or target")
			return
		}
		op = g.srv.To(rooms...)
	case CastBroadcast:
		op = g.srv
	default:
		log.Warn("unknown notify type or target")
		return
	}

	g.obs.Notify(m.Type)
	if err := op.Emit(ctx, m.EventName, m.EventData); err != nil {
		log.Error("notify emit failed", zap.Error(err))
	}
}

// stringList 非空的字符串列表
func stringList(v any) ([]string, bool) {
	var out []string
	switch list := v.(type) {
	case []string:
		out = list
	case []any:
		out = make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
	default:
		return nil, false
	}
	if len(out) == 0 {
		return nil, false
	}
	for _, s := range out {
		if s == "" {
			return nil, false
		}
	}
	return out, true
}
