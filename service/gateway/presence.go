package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CheckUserOnline 每个用户是否至少有一个在线连接，顺序与入参一致；存储不可达直接返回错误
func (g *Gateway) CheckUserOnline(ctx context.Context, userIDs []string) ([]bool, error) {
	if len(userIDs) == 0 {
		return []bool{}, nil
	}
	out, err := g.presence.Exists(ctx, userIDs)
	if err != nil {
		g.obs.StoreError("exists")
		return nil, err
	}
	return out, nil
}

// Sessions 用户的连接 -> 节点
func (g *Gateway) Sessions(ctx context.Context, userID string) (map[string]string, error) {
	out, err := g.presence.Sessions(ctx, userID)
	if err != nil {
		g.obs.StoreError("sessions")
		return nil, err
	}
	return out, nil
}

func (g *Gateway) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(g.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.refreshOnce(ctx)
		}
	}
}

// refreshOnce 续期本节点所有在线用户，进程崩溃时靠过期兜底
func (g *Gateway) refreshOnce(ctx context.Context) {
	uids := g.localUserIDs()
	if len(uids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()
	if err := g.presence.Refresh(ctx, uids); err != nil {
		g.obs.StoreError("refresh")
		g.log.Warn("refresh presence failed", zap.Int("users", len(uids)), zap.Error(err))
		return
	}
	g.log.Debug("presence refreshed", zap.Int("users", len(uids)))
}
