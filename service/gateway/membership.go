package gateway

import (
	"context"
	"sort"
	"strings"

	"PPSocket/service/socket"
	"PPSocket/tools/errs"

	"go.uber.org/zap"
)

// UserRoom 用户房间名
func (g *Gateway) UserRoom(userID string) string {
	return g.opts.UserRoomPrefix + userID
}

func (g *Gateway) onConnection(s *socket.Socket) {
	id, ok := IdentityOf(s)
	if !ok {
		// 鉴权中间件保证不会走到这里
		g.log.Error("connection without identity", zap.String("sid", s.ID()))
		s.Disconnect(socket.ReasonServerDisconnect)
		return
	}
	userID, sid := id.UserID, s.ID()
	log := g.log.With(zap.String("sid", sid), zap.String("userId", userID))

	s.Join(g.UserRoom(userID))

	ctx, cancel := context.WithTimeout(context.Background(), g.opts.StoreTimeout)
	if err := g.presence.Online(ctx, userID, sid); err != nil {
		// 在线状态只是投递辅助，写失败不断开连接
		g.obs.StoreError("online")
		log.Error("write presence failed", zap.Error(err))
	}
	cancel()

	handle := g.cleanups.Add(func(ctx context.Context) error {
		_, err := g.presence.Offline(ctx, userID, sid)
		return err
	})
	g.obs.ConnOpened()

	s.OnDisconnecting(func(s *socket.Socket, reason string) {
		log.Info("socket disconnect", zap.String("reason", reason), zap.Strings("rooms", s.Rooms()))
		g.obs.ConnClosed()

		fn, ok := g.cleanups.Take(handle)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), g.opts.StoreTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			g.obs.StoreError("offline")
			log.Error("remove presence failed", zap.Error(err))
		}
	})
	s.OnAny(g.handleEvent)
}

// JoinRoom 把连接（可以在任意节点）加入房间，找不到连接返回 TargetNotFound。
// 用户房间只能由握手加入，带用户房间前缀的房间名直接拒绝。
func (g *Gateway) JoinRoom(ctx context.Context, roomIDs []string, socketID string) error {
	if socketID == "" {
		return errs.ErrSocketNotFound.WrapMsg("socket id is required")
	}
	for _, r := range roomIDs {
		if strings.HasPrefix(r, g.opts.UserRoomPrefix) {
			return errs.ErrArgs.WrapMsg("room id uses the reserved user room prefix", "room", r)
		}
	}
	ok, err := g.srv.JoinRemote(ctx, socketID, roomIDs)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrSocketNotFound.WrapMsg("join room", "sid", socketID)
	}
	return nil
}

// localUserIDs 本节点连接上的用户，取自握手身份而不是房间名
func (g *Gateway) localUserIDs() []string {
	seen := make(map[string]struct{})
	for _, s := range g.srv.FetchSockets() {
		if id, ok := IdentityOf(s); ok && id.UserID != "" {
			seen[id.UserID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for uid := range seen {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}
