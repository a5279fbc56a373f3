package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"PPSocket/service/natsx"
	"PPSocket/service/socket"
	"PPSocket/tools/errs"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	bizBroadcast = "socket.broadcast"
	bizJoin      = "socket.join"
)

type NATSOptions struct {
	Key            string // subject 前缀
	RequestTimeout time.Duration
}

// natsBus 是 adapter 用到的 natsx 子集
type natsBus interface {
	RegisterRoute(r natsx.NatsxRoute) error
	Subscribe(biz string, h natsx.NatsxHandler) error
	Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error
	Request(ctx context.Context, biz string, data []byte, hdr map[string]string) (natsx.NatsxMessage, error)
	Respond(reply string, data []byte, hdr map[string]string) error
	Close() error
}

// NATS 基于 core nats 的多节点 adapter
// subject：<key>.broadcast  <key>.join（request/reply，只有持有连接的节点回复）
type NATS struct {
	bus   natsBus
	opts  NATSOptions
	log   *zap.Logger
	local socket.Local
}

func NewNATS(mgr *natsx.NatsManager, opts NATSOptions, log *zap.Logger) *NATS {
	return newNATS(mgr, opts, log)
}

func newNATS(bus natsBus, opts NATSOptions, log *zap.Logger) *NATS {
	if opts.Key == "" {
		opts.Key = "ppsocket"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NATS{bus: bus, opts: opts, log: log.Named("adapter.nats")}
}

func (a *NATS) Start(_ context.Context, local socket.Local) error {
	a.local = local
	routes := []natsx.NatsxRoute{
		{Biz: bizBroadcast, Subject: a.opts.Key + ".broadcast"},
		{Biz: bizJoin, Subject: a.opts.Key + ".join"},
	}
	for _, r := range routes {
		if err := a.bus.RegisterRoute(r); err != nil {
			return errs.WrapMsg(err, "register nats route", "biz", r.Biz)
		}
	}
	if err := a.bus.Subscribe(bizBroadcast, a.handleBroadcast); err != nil {
		return errs.WrapMsg(err, "subscribe broadcast")
	}
	if err := a.bus.Subscribe(bizJoin, a.handleJoin); err != nil {
		return errs.WrapMsg(err, "subscribe join")
	}
	a.log.Info("nats adapter started", zap.String("key", a.opts.Key))
	return nil
}

func (a *NATS) handleBroadcast(_ context.Context, msg natsx.NatsxMessage) error {
	var p socket.Packet
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		return errs.ErrArgs.WrapMsg("bad broadcast packet", "err", err)
	}
	if p.Node == a.local.NodeID() {
		return nil
	}
	a.local.Deliver(&p)
	return nil
}

func (a *NATS) handleJoin(_ context.Context, msg natsx.NatsxMessage) error {
	var req socket.JoinRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return errs.ErrArgs.WrapMsg("bad join request", "err", err)
	}
	if req.Node == a.local.NodeID() || msg.Reply == "" {
		return nil
	}
	if !a.local.JoinLocal(req.SID, req.Rooms) {
		return nil
	}
	b, _ := json.Marshal(socket.JoinReply{Node: a.local.NodeID(), OK: true})
	return a.bus.Respond(msg.Reply, b, nil)
}

func (a *NATS) Broadcast(ctx context.Context, p *socket.Packet) error {
	b, err := json.Marshal(p)
	if err != nil {
		return errs.ErrArgs.WrapMsg("marshal packet", "err", err)
	}
	if err := a.bus.Publish(ctx, bizBroadcast, b, nil); err != nil {
		return errs.WrapMsg(err, "publish broadcast")
	}
	return nil
}

// RemoteJoin 没有节点回复（超时或无订阅者）视为连接不存在
func (a *NATS) RemoteJoin(ctx context.Context, sid string, rooms []string) (bool, error) {
	rctx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()

	b, _ := json.Marshal(socket.JoinRequest{Node: a.local.NodeID(), SID: sid, Rooms: rooms})
	resp, err := a.bus.Request(rctx, bizJoin, b, nil)
	if err != nil {
		// 调用方自己的 ctx 结束不算“连接不存在”
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, errs.WrapMsg(err, "request join")
	}
	var reply socket.JoinReply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return false, errs.ErrArgs.WrapMsg("bad join reply", "err", err)
	}
	return reply.OK, nil
}

func (a *NATS) Close() error {
	return a.bus.Close()
}
