package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"PPSocket/tools/errs"
	"PPSocket/tools/ids"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Middleware 握手中间件，返回错误即拒绝连接
type Middleware func(s *Socket) error

// ConnHandler 握手成功后、开始读事件前调用
type ConnHandler func(s *Socket)

// Server 实时连接服务：本地房间 + adapter 跨节点广播
type Server struct {
	opts     Options
	log      *zap.Logger
	nodeID   string
	adapter  Adapter
	upgrader websocket.Upgrader
	rooms    *roomIndex

	mu      sync.RWMutex
	sockets map[string]*Socket
	mws     []Middleware
	onConn  []ConnHandler

	closed atomic.Bool
	conns  sync.WaitGroup

	nextID func() string // 节点内唯一的雪花号
}

func NewServer(nodeID string, opts Options, adapter Adapter, log *zap.Logger) *Server {
	opts.norm()
	if adapter == nil {
		adapter = nopAdapter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		opts:    opts,
		log:     log,
		nodeID:  nodeID,
		adapter: adapter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		rooms:   newRoomIndex(),
		sockets: make(map[string]*Socket),
		nextID:  ids.GenerateString,
	}
}

// newSID 雪花节点号是节点名的哈希，不同节点可能相同，拼上节点 ID 才全集群唯一
func (srv *Server) newSID() string {
	return srv.nextID() + "." + srv.nodeID
}

func (srv *Server) NodeID() string { return srv.nodeID }

// Use 追加握手中间件，按注册顺序执行
func (srv *Server) Use(mw Middleware) {
	srv.mu.Lock()
	srv.mws = append(srv.mws, mw)
	srv.mu.Unlock()
}

func (srv *Server) OnConnection(h ConnHandler) {
	srv.mu.Lock()
	srv.onConn = append(srv.onConn, h)
	srv.mu.Unlock()
}

// Start 启动 adapter，之后才能跨节点收发。
// adapter 起不来时 server 直接进入关闭状态，不再接受任何连接。
func (srv *Server) Start(ctx context.Context) error {
	if err := srv.adapter.Start(ctx, srv); err != nil {
		srv.closed.Store(true)
		return errs.WrapMsg(err, "start adapter")
	}
	return nil
}

// ServeHTTP websocket 入口
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.mu.Lock()
	if srv.closed.Load() {
		srv.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	srv.conns.Add(1)
	srv.mu.Unlock()
	defer srv.conns.Done()

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader 已经写了 http 错误
		srv.log.Debug("upgrade websocket failed", zap.Error(err))
		return
	}

	conn.SetReadLimit(srv.opts.MaxMessageBytes)
	hs, err := srv.readHandshake(conn, r)
	if err != nil {
		srv.log.Info("handshake failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		srv.reject(conn, err)
		return
	}

	s := newSocket(srv, srv.newSID(), conn, hs)

	srv.mu.RLock()
	mws := append([]Middleware(nil), srv.mws...)
	handlers := append([]ConnHandler(nil), srv.onConn...)
	srv.mu.RUnlock()

	for _, mw := range mws {
		if err := mw(s); err != nil {
			s.log.Info("handshake rejected", zap.Error(err))
			s.cancel()
			srv.reject(conn, err)
			return
		}
	}

	if !srv.register(s) {
		s.cancel()
		srv.reject(conn, errs.ErrServiceUnavailable.WrapMsg("server shutting down"))
		return
	}
	go s.writePump()

	b, _ := json.Marshal(outFrame{Type: FrameConnect, SID: s.id})
	_ = s.enqueue(b)

	for _, h := range handlers {
		h(s)
	}
	s.readPump()
	<-s.Done()
}

func (srv *Server) readHandshake(conn *websocket.Conn, r *http.Request) (Handshake, error) {
	_ = conn.SetReadDeadline(time.Now().Add(srv.opts.HandshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return Handshake{}, errs.ErrArgs.WrapMsg("read handshake", "err", err)
	}
	f, err := parseFrame(raw)
	if err != nil {
		return Handshake{}, errs.ErrArgs.WrapMsg("parse handshake", "err", err)
	}
	if f.Type != FrameConnect {
		return Handshake{}, errs.ErrArgs.WrapMsg("first frame must be connect", "type", f.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return Handshake{
		Auth:       f.Auth,
		Header:     r.Header.Clone(),
		Query:      r.URL.Query(),
		RemoteAddr: r.RemoteAddr,
		Time:       time.Now(),
	}, nil
}

// reject 发送 connect_error 后关闭，不登记任何状态
func (srv *Server) reject(conn *websocket.Conn, err error) {
	b, _ := json.Marshal(outFrame{Type: FrameConnectError, Message: errs.ClientMessage(err)})
	deadline := time.Now().Add(srv.opts.WriteWait)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""), deadline)
	_ = conn.Close()
}

func (srv *Server) register(s *Socket) bool {
	srv.mu.Lock()
	if srv.closed.Load() {
		srv.mu.Unlock()
		return false
	}
	srv.sockets[s.id] = s
	srv.mu.Unlock()

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	// 每个连接默认在以自己 ID 命名的房间里
	srv.rooms.join(s, s.id)
	return true
}

func (srv *Server) remove(s *Socket) {
	srv.rooms.leaveAll(s)
	srv.mu.Lock()
	delete(srv.sockets, s.id)
	srv.mu.Unlock()
}

// Socket 本地连接
func (srv *Server) Socket(sid string) (*Socket, bool) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	s, ok := srv.sockets[sid]
	return s, ok
}

func (srv *Server) SocketCount() int {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	return len(srv.sockets)
}

// FetchSockets 本地在这些房间里的连接，rooms 为空表示全部
func (srv *Server) FetchSockets(rooms ...string) []*Socket {
	if len(rooms) > 0 {
		return srv.rooms.members(rooms)
	}
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	out := make([]*Socket, 0, len(srv.sockets))
	for _, s := range srv.sockets {
		out = append(out, s)
	}
	return out
}

// RoomNames 本地带前缀的房间
func (srv *Server) RoomNames(prefix string) []string {
	return srv.rooms.names(prefix)
}

// Deliver 实现 Local：投递到本地连接
func (srv *Server) Deliver(p *Packet) {
	b, err := encodeEvent(p.Event, p.Data)
	if err != nil {
		srv.log.Error("encode packet failed", zap.String("event", p.Event), zap.Error(err))
		return
	}
	for _, s := range srv.FetchSockets(p.Rooms...) {
		_ = s.enqueue(b)
	}
}

// JoinLocal 实现 Local
func (srv *Server) JoinLocal(sid string, rooms []string) bool {
	s, ok := srv.Socket(sid)
	if !ok {
		return false
	}
	s.Join(rooms...)
	return true
}

// JoinRemote 把任意节点上的连接加入房间，找不到连接返回 false
func (srv *Server) JoinRemote(ctx context.Context, sid string, rooms []string) (bool, error) {
	if srv.JoinLocal(sid, rooms) {
		return true, nil
	}
	ok, err := srv.adapter.RemoteJoin(ctx, sid, rooms)
	if err != nil {
		return false, errs.WrapMsg(err, "remote join", "sid", sid)
	}
	return ok, nil
}

// To 选择房间（可链式追加），不调用 To 则是全部连接
func (srv *Server) To(rooms ...string) *BroadcastOperator {
	return &BroadcastOperator{srv: srv, rooms: append([]string(nil), rooms...)}
}

// Emit 发给所有节点的所有连接
func (srv *Server) Emit(ctx context.Context, event string, data any) error {
	return srv.To().Emit(ctx, event, data)
}

// Close 断开所有连接并关闭 adapter
func (srv *Server) Close(ctx context.Context) error {
	srv.mu.Lock()
	if srv.closed.Swap(true) {
		srv.mu.Unlock()
		return nil
	}
	sockets := make([]*Socket, 0, len(srv.sockets))
	for _, s := range srv.sockets {
		sockets = append(sockets, s)
	}
	srv.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sockets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Disconnect(ReasonServerShutdown)
		}()
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		srv.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.log.Warn("close: connections still draining", zap.Error(ctx.Err()))
	}
	return srv.adapter.Close()
}

// BroadcastOperator 房间广播
type BroadcastOperator struct {
	srv   *Server
	rooms []string
}

func (b *BroadcastOperator) To(rooms ...string) *BroadcastOperator {
	return &BroadcastOperator{srv: b.srv, rooms: append(append([]string(nil), b.rooms...), rooms...)}
}

// Emit 本地直接投递，再经 adapter 发给其他节点
func (b *BroadcastOperator) Emit(ctx context.Context, event string, data any) error {
	raw, err := marshalData(data)
	if err != nil {
		return errs.ErrArgs.WrapMsg("marshal event data", "event", event, "err", err)
	}
	p := &Packet{Node: b.srv.nodeID, Rooms: b.rooms, Event: event, Data: raw}
	b.srv.Deliver(p)
	if err := b.srv.adapter.Broadcast(ctx, p); err != nil {
		return errs.WrapMsg(err, "adapter broadcast", "event", event)
	}
	return nil
}

func marshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	}
	return json.Marshal(data)
}
