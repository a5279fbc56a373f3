package storage

import (
	"context"
	"time"

	"PPSocket/tools/errs"

	"github.com/redis/go-redis/v9"
)

// PresenceConfig presence 存储配置
type PresenceConfig struct {
	NodeID    string        // 写入 hash value，标识连接所在节点
	KeyPrefix string        // key = prefix + userId
	TTL       time.Duration // 每次上线/刷新续期
}

// 单会话下线，返回剩余会话数
// KEYS[1] = user key
// ARGV[1] = connection id
const luaOffline = `
redis.call("HDEL", KEYS[1], ARGV[1])
return redis.call("HLEN", KEYS[1])
`

// Presence 在线状态：每个用户一个 hash，field=连接ID，value=节点ID
type Presence struct {
	rdb     redis.UniversalClient
	conf    PresenceConfig
	offline *redis.Script
}

func NewPresence(rdb redis.UniversalClient, conf PresenceConfig) *Presence {
	if conf.TTL <= 0 {
		conf.TTL = 24 * time.Hour
	}
	return &Presence{
		rdb:     rdb,
		conf:    conf,
		offline: redis.NewScript(luaOffline),
	}
}

func (p *Presence) key(userID string) string { return p.conf.KeyPrefix + userID }

// Online 写入会话并续期 key
func (p *Presence) Online(ctx context.Context, userID, connID string) error {
	key := p.key(userID)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, connID, p.conf.NodeID)
		pipe.Expire(ctx, key, p.conf.TTL)
		return nil
	})
	if err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("presence online", "user", userID, "conn", connID, "err", err)
	}
	return nil
}

// Offline 只删除本连接的会话，返回该用户剩余会话数
func (p *Presence) Offline(ctx context.Context, userID, connID string) (int64, error) {
	left, err := p.offline.Run(ctx, p.rdb, []string{p.key(userID)}, connID).Int64()
	if err != nil {
		return 0, errs.ErrStoreUnavailable.WrapMsg("presence offline", "user", userID, "conn", connID, "err", err)
	}
	return left, nil
}

// Exists 按入参顺序返回每个用户是否在线
func (p *Presence) Exists(ctx context.Context, userIDs []string) ([]bool, error) {
	out := make([]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	cmds := make([]*redis.IntCmd, len(userIDs))
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, uid := range userIDs {
			cmds[i] = pipe.Exists(ctx, p.key(uid))
		}
		return nil
	})
	if err != nil {
		return nil, errs.ErrStoreUnavailable.WrapMsg("presence exists", "users", len(userIDs), "err", err)
	}
	for i, c := range cmds {
		out[i] = c.Val() > 0
	}
	return out, nil
}

// Refresh 续期一批用户 key，不存在的 key 不会被创建
func (p *Presence) Refresh(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, uid := range userIDs {
			pipe.Expire(ctx, p.key(uid), p.conf.TTL)
		}
		return nil
	})
	if err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("presence refresh", "users", len(userIDs), "err", err)
	}
	return nil
}

// Sessions 某用户所有会话：连接ID -> 节点ID
func (p *Presence) Sessions(ctx context.Context, userID string) (map[string]string, error) {
	m, err := p.rdb.HGetAll(ctx, p.key(userID)).Result()
	if err != nil {
		return nil, errs.ErrStoreUnavailable.WrapMsg("presence sessions", "user", userID, "err", err)
	}
	return m, nil
}
