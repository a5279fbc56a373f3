package gateway

import (
	"context"

	"PPSocket/service/dispatcher"
	"PPSocket/tools/decode"
	"PPSocket/tools/errs"

	"go.uber.org/zap"
)

// 网关自身的 action，仅供内部调用（默认黑名单挡住客户端）
const (
	ActionJoinRoom        = "gateway.joinRoom"
	ActionNotify          = "gateway.notify"
	ActionCheckUserOnline = "gateway.checkUserOnline"
)

type JoinRoomParams struct {
	RoomIDs  []string `json:"roomIds"`
	SocketID string   `json:"socketId,omitempty"`
}

type CheckUserOnlineParams struct {
	UserIDs []string `json:"userIds"`
}

func (g *Gateway) registerActions(l *dispatcher.Local) {
	l.Register(dispatcher.Endpoint{Name: ActionJoinRoom, Visibility: dispatcher.VisibilityPublic}, g.actionJoinRoom)
	l.Register(dispatcher.Endpoint{Name: ActionNotify, Visibility: dispatcher.VisibilityPublic}, g.actionNotify)
	l.Register(dispatcher.Endpoint{Name: ActionCheckUserOnline, Visibility: dispatcher.VisibilityPublic}, g.actionCheckUserOnline)
}

func (g *Gateway) actionJoinRoom(ctx context.Context, params any, meta dispatcher.Meta) (any, error) {
	p, err := decode.Map[JoinRoomParams](params)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("joinRoom params", "err", err)
	}
	sid := p.SocketID
	if sid == "" {
		sid = meta.SocketID
	}
	return nil, g.JoinRoom(ctx, p.RoomIDs, sid)
}

func (g *Gateway) actionNotify(ctx context.Context, params any, _ dispatcher.Meta) (any, error) {
	m, err := decode.Map[CastMessage](params)
	if err != nil {
		g.log.Warn("unknown notify type or target", zap.Any("params", params), zap.Error(err))
		return nil, nil
	}
	g.Notify(ctx, *m)
	return nil, nil
}

func (g *Gateway) actionCheckUserOnline(ctx context.Context, params any, _ dispatcher.Meta) (any, error) {
	p, err := decode.Map[CheckUserOnlineParams](params)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("checkUserOnline params", "err", err)
	}
	return g.CheckUserOnline(ctx, p.UserIDs)
}
