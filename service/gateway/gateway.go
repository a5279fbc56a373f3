package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"PPSocket/service/dispatcher"
	"PPSocket/service/socket"
	"PPSocket/tools/errs"
	"PPSocket/tools/safe"
	"PPSocket/tools/security"

	"go.uber.org/zap"
)

// 连接级数据 key
const (
	keyIdentity = "user"
	keyToken    = "token"
	keyLanguage = "language"
)

// Verifier 校验握手 token
type Verifier interface {
	Verify(token string) (*security.Identity, error)
}

// PresenceStore 在线状态存储，service/storage.Presence 实现
type PresenceStore interface {
	Online(ctx context.Context, userID, connID string) error
	Offline(ctx context.Context, userID, connID string) (int64, error)
	Exists(ctx context.Context, userIDs []string) ([]bool, error)
	Refresh(ctx context.Context, userIDs []string) error
	Sessions(ctx context.Context, userID string) (map[string]string, error)
}

type Options struct {
	Blacklist       []string
	UserRoomPrefix  string
	CallTimeout     time.Duration
	StoreTimeout    time.Duration
	RefreshInterval time.Duration // 0 不刷新
	DefaultLanguage string
}

func (o *Options) norm() {
	if o.UserRoomPrefix == "" {
		o.UserRoomPrefix = "u-"
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
}

type Deps struct {
	Server   *socket.Server
	Broker   dispatcher.Broker // 客户端事件转发目标
	Local    *dispatcher.Local // gateway.* action 注册在这里，可为 nil
	Presence PresenceStore
	Verifier Verifier
	Observer Observer
	Logger   *zap.Logger
}

// Gateway 实时网关：鉴权、房间与在线状态、事件转发、通知
type Gateway struct {
	opts      Options
	log       *zap.Logger
	srv       *socket.Server
	broker    dispatcher.Broker
	local     *dispatcher.Local
	presence  PresenceStore
	verifier  Verifier
	obs       Observer
	blacklist atomic.Pointer[Blacklist]
	cleanups  *cleanups

	stopping atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func New(d Deps, opts Options) (*Gateway, error) {
	safe.MustNotNil(d.Server, "server")
	safe.MustNotNil(d.Broker, "broker")
	safe.MustNotNil(d.Presence, "presence")
	safe.MustNotNil(d.Verifier, "verifier")
	opts.norm()

	bl, err := NewBlacklist(opts.Blacklist)
	if err != nil {
		return nil, err
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	g := &Gateway{
		opts:     opts,
		log:      d.Logger.Named("gateway"),
		srv:      d.Server,
		broker:   d.Broker,
		local:    d.Local,
		presence: d.Presence,
		verifier: d.Verifier,
		obs:      d.Observer,
		cleanups: newCleanups(),
	}
	g.blacklist.Store(bl)
	return g, nil
}

func (g *Gateway) Server() *socket.Server { return g.srv }

// Start 启动 adapter（失败即返回，不允许降级为单节点），安装中间件与连接处理
func (g *Gateway) Start(ctx context.Context) error {
	// 多节点通道是硬依赖，装不上就不对外服务
	if err := g.srv.Start(ctx); err != nil {
		g.log.Error("scale-out adapter failed to start", zap.Error(err))
		return errs.WrapMsg(err, "install scale-out adapter")
	}
	g.srv.Use(g.authenticate)
	g.srv.OnConnection(g.onConnection)
	if g.local != nil {
		g.registerActions(g.local)
	}

	ctx, g.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if g.opts.RefreshInterval > 0 {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			defer safe.Recover("gateway.refreshLoop")
			g.refreshLoop(ctx)
		}()
	}
	g.log.Info("gateway started",
		zap.String("node", g.srv.NodeID()),
		zap.Strings("blacklist", g.blacklist.Load().Patterns()))
	return nil
}

// Stop 停止顺序：执行全部清理回调 → 断开连接并关闭 adapter → 兜底再清理一次
func (g *Gateway) Stop(ctx context.Context) error {
	if g.stopping.Swap(true) {
		return nil
	}
	if g.cancel != nil {
		g.cancel()
	}

	pending := g.cleanups.Len()
	drainErr := g.cleanups.Drain(ctx)
	if drainErr != nil {
		g.log.Error("cleanup failed", zap.Error(drainErr))
	}
	closeErr := g.srv.Close(ctx)
	// 停机过程中刚握手成功的连接
	if err := g.cleanups.Drain(ctx); err != nil {
		drainErr = errors.Join(drainErr, err)
	}
	g.wg.Wait()

	g.log.Info("gateway stopped, all connections closed", zap.Int("cleanups", pending))
	return errors.Join(drainErr, closeErr)
}

// SetBlacklist 运行中替换黑名单（远程配置变更），编译失败时保留旧的
func (g *Gateway) SetBlacklist(patterns []string) error {
	bl, err := NewBlacklist(patterns)
	if err != nil {
		return err
	}
	old := g.blacklist.Swap(bl)
	g.log.Info("blacklist updated",
		zap.Strings("old", old.Patterns()),
		zap.Strings("new", bl.Patterns()))
	return nil
}

// Blacklist 当前生效的黑名单
func (g *Gateway) Blacklist() *Blacklist { return g.blacklist.Load() }

// ErrorAck 传输层自身的失败（限流、panic）也按同样的 ack 结构返回
func ErrorAck(err error) any {
	return Ack{Result: false, Message: errs.ClientMessage(err)}
}

// IdentityOf 握手成功后写入的用户身份
func IdentityOf(s *socket.Socket) (*security.Identity, bool) {
	v, ok := s.Get(keyIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*security.Identity)
	return id, ok
}

func stringOf(s *socket.Socket, key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}
