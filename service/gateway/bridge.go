package gateway

import (
	"context"
	"time"

	"PPSocket/service/dispatcher"
	"PPSocket/service/socket"
	"PPSocket/tools/errs"

	"go.uber.org/zap"
)

// Ack 客户端事件的应答
type Ack struct {
	Result  bool   `json:"result"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleEvent 客户端的任意事件都当作一次 action 调用
func (g *Gateway) handleEvent(ctx context.Context, s *socket.Socket, event string, data any, ack socket.AckFunc) {
	log := g.log.With(zap.String("sid", s.ID()))
	log.Info("<=", zap.String("event", event), zap.Any("data", data))

	start := time.Now()
	out, err := g.dispatch(ctx, s, event, data)
	if err != nil {
		msg := errs.ClientMessage(err)
		outcome := outcomeOf(err)
		g.obs.Event(outcome)
		if outcome == OutcomeBlocked {
			log.Warn("=>", zap.String("event", event), zap.String("message", msg))
		} else {
			log.Info("=>", zap.String("event", event), zap.String("message", msg))
			log.Error("dispatch failed", zap.String("event", event), zap.Error(err))
		}
		if ack != nil {
			ack(Ack{Result: false, Message: msg})
		}
		return
	}

	g.obs.Event(OutcomeOK)
	if ack != nil {
		log.Info("=>", zap.String("event", event), zap.Any("data", out), zap.Duration("cost", time.Since(start)))
		ack(Ack{Result: true, Data: out})
	}
}

// dispatch 黑名单 → 解析 → 可见性 → socket 禁用 → 调用
//
// 不可见、被禁用与不存在对客户端返回同样的结果。
func (g *Gateway) dispatch(ctx context.Context, s *socket.Socket, event string, data any) (any, error) {
	if g.blacklist.Load().Match(event) {
		return nil, errs.ErrNotAllowed.WrapMsg("blacklisted", "event", event)
	}

	ep, err := g.broker.FindEndpoint(ctx, event)
	if err != nil {
		return nil, err
	}
	if !ep.Published() {
		return nil, errs.ErrServiceNotFound.WrapMsg("action not published", "event", event, "visibility", ep.Visibility)
	}
	if ep.DisableSocket {
		return nil, errs.ErrServiceNotFound.WrapMsg("action disabled for socket", "event", event)
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	defer cancel()
	return g.broker.Call(ctx, event, data, g.metaOf(s))
}

func (g *Gateway) metaOf(s *socket.Socket) dispatcher.Meta {
	meta := dispatcher.Meta{
		SocketID: s.ID(),
		Token:    stringOf(s, keyToken),
		Language: stringOf(s, keyLanguage),
	}
	if id, ok := IdentityOf(s); ok {
		meta.UserID = id.UserID
		meta.User = id.Claims
	}
	return meta
}

func outcomeOf(err error) string {
	c, ok := errs.AsCode(err)
	if !ok {
		return OutcomeError
	}
	switch {
	case c.Code == errs.PolicyRejection && c.Msg == errs.ErrNotAllowed.Msg:
		return OutcomeBlocked
	case c.Code == errs.PolicyRejection:
		return OutcomeNotFound
	case c.Code == errs.BackendUnavailable:
		return OutcomeUnavailable
	}
	return OutcomeError
}
