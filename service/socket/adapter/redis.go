package adapter

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"PPSocket/service/socket"
	"PPSocket/tools/errs"
	"PPSocket/tools/safe"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisOptions struct {
	Key            string        // 频道前缀
	RequestTimeout time.Duration // 跨节点 join 等待回复的时间
}

// Redis 基于 pub/sub 的多节点 adapter
// 频道：<key>#broadcast  <key>#join  <key>#reply#<node>
type Redis struct {
	rdb  redis.UniversalClient
	opts RedisOptions
	log  *zap.Logger

	local  socket.Local
	pubsub *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[string]chan socket.JoinReply
}

func NewRedis(rdb redis.UniversalClient, opts RedisOptions, log *zap.Logger) *Redis {
	if opts.Key == "" {
		opts.Key = "ppsocket"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{
		rdb:     rdb,
		opts:    opts,
		log:     log.Named("adapter.redis"),
		pending: make(map[string]chan socket.JoinReply),
	}
}

func (a *Redis) broadcastChannel() string { return a.opts.Key + "#broadcast" }
func (a *Redis) joinChannel() string      { return a.opts.Key + "#join" }
func (a *Redis) replyChannel(node string) string {
	return a.opts.Key + "#reply#" + node
}

func (a *Redis) Start(ctx context.Context, local socket.Local) error {
	a.local = local
	channels := []string{a.broadcastChannel(), a.joinChannel(), a.replyChannel(local.NodeID())}
	ps := a.rdb.Subscribe(ctx, channels...)
	// 等到所有频道订阅确认
	for range channels {
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return errs.WrapMsg(err, "subscribe adapter channels")
		}
	}
	a.pubsub = ps

	loopCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop(loopCtx, ps.Channel())
	}()
	a.log.Info("redis adapter started", zap.Strings("channels", channels))
	return nil
}

func (a *Redis) loop(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			func() {
				defer safe.Recover("adapter.redis")
				a.handle(ctx, msg)
			}()
		}
	}
}

func (a *Redis) handle(ctx context.Context, msg *redis.Message) {
	self := a.local.NodeID()
	switch msg.Channel {
	case a.broadcastChannel():
		var p socket.Packet
		if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
			a.log.Warn("bad broadcast packet", zap.Error(err))
			return
		}
		if p.Node == self {
			return
		}
		a.local.Deliver(&p)

	case a.joinChannel():
		var req socket.JoinRequest
		if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
			a.log.Warn("bad join request", zap.Error(err))
			return
		}
		if req.Node == self {
			return
		}
		reply := socket.JoinReply{Node: self, Seq: req.Seq, OK: a.local.JoinLocal(req.SID, req.Rooms)}
		b, _ := json.Marshal(reply)
		if err := a.rdb.Publish(ctx, req.Reply, b).Err(); err != nil {
			a.log.Warn("publish join reply failed", zap.String("to", req.Node), zap.Error(err))
		}

	case a.replyChannel(self):
		var reply socket.JoinReply
		if err := json.Unmarshal([]byte(msg.Payload), &reply); err != nil {
			a.log.Warn("bad join reply", zap.Error(err))
			return
		}
		a.mu.Lock()
		ch := a.pending[reply.Seq]
		a.mu.Unlock()
		if ch != nil {
			select {
			case ch <- reply:
			default:
			}
		}
	}
}

func (a *Redis) Broadcast(ctx context.Context, p *socket.Packet) error {
	b, err := json.Marshal(p)
	if err != nil {
		return errs.ErrArgs.WrapMsg("marshal packet", "err", err)
	}
	if err := a.rdb.Publish(ctx, a.broadcastChannel(), b).Err(); err != nil {
		return errs.WrapMsg(err, "publish broadcast")
	}
	return nil
}

// RemoteJoin 所有对端都会回复，收到第一个 OK 即返回
func (a *Redis) RemoteJoin(ctx context.Context, sid string, rooms []string) (bool, error) {
	subs, err := a.rdb.PubSubNumSub(ctx, a.joinChannel()).Result()
	if err != nil {
		return false, errs.WrapMsg(err, "count adapter peers")
	}
	expected := subs[a.joinChannel()] - 1 // 去掉自己
	if expected <= 0 {
		return false, nil
	}

	self := a.local.NodeID()
	seq := self + ":" + strconv.FormatUint(a.seq.Add(1), 10)
	ch := make(chan socket.JoinReply, expected)
	a.mu.Lock()
	a.pending[seq] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, seq)
		a.mu.Unlock()
	}()

	b, _ := json.Marshal(socket.JoinRequest{Node: self, SID: sid, Rooms: rooms, Reply: a.replyChannel(self), Seq: seq})
	if err := a.rdb.Publish(ctx, a.joinChannel(), b).Err(); err != nil {
		return false, errs.WrapMsg(err, "publish join request")
	}

	timer := time.NewTimer(a.opts.RequestTimeout)
	defer timer.Stop()
	for got := int64(0); got < expected; {
		select {
		case reply := <-ch:
			if reply.OK {
				return true, nil
			}
			got++
		case <-timer.C:
			a.log.Warn("remote join timed out", zap.String("sid", sid), zap.Int64("expected", expected))
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, nil
}

func (a *Redis) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	var err error
	if a.pubsub != nil {
		err = a.pubsub.Close()
	}
	a.wg.Wait()
	return err
}
