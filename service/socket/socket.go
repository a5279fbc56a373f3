package socket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"PPSocket/tools/errs"
	"PPSocket/tools/safe"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrClosed = errors.New("socket closed")

// 断开原因
const (
	ReasonServerShutdown   = "server shutting down"
	ReasonServerDisconnect = "server namespace disconnect"
	ReasonClientDisconnect = "client namespace disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
	ReasonSendQueueFull    = "send queue full"
)

// Handshake 握手信息，中间件只能看到这些
type Handshake struct {
	Auth       map[string]any
	Header     http.Header
	Query      url.Values
	RemoteAddr string
	Time       time.Time
}

// AckFunc 客户端请求 ack 时非 nil，多次调用只回一次
type AckFunc func(data any)

type EventHandler func(ctx context.Context, s *Socket, event string, data any, ack AckFunc)

type DisconnectHandler func(s *Socket, reason string)

// Socket 一条客户端连接
type Socket struct {
	id        string
	srv       *Server
	conn      *websocket.Conn
	handshake Handshake
	log       *zap.Logger

	send    chan []byte
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu              sync.RWMutex
	data            map[string]any
	onAny           []EventHandler
	onDisconnecting []DisconnectHandler
	connected       bool

	closeOnce sync.Once
	closed    chan struct{} // close 全部执行完（含 disconnecting 回调）
}

func newSocket(srv *Server, id string, conn *websocket.Conn, hs Handshake) *Socket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Socket{
		id:        id,
		srv:       srv,
		conn:      conn,
		handshake: hs,
		log:       srv.log.With(zap.String("sid", id)),
		send:      make(chan []byte, srv.opts.SendQueue),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		data:      make(map[string]any),
		closed:    make(chan struct{}),
	}
	if srv.opts.EventRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(srv.opts.EventRate), srv.opts.EventBurst)
	}
	return s
}

func (s *Socket) ID() string               { return s.id }
func (s *Socket) Handshake() Handshake     { return s.handshake }
func (s *Socket) Server() *Server          { return s.srv }
func (s *Socket) Context() context.Context { return s.ctx }

// Set 连接级数据（鉴权后写入用户身份等）
func (s *Socket) Set(key string, v any) {
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
}

func (s *Socket) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Join 加入本地房间，幂等
func (s *Socket) Join(rooms ...string) {
	s.srv.rooms.join(s, rooms...)
}

func (s *Socket) Leave(room string) {
	s.srv.rooms.leave(s, room)
}

func (s *Socket) Rooms() []string {
	return s.srv.rooms.roomsOf(s.id)
}

// OnAny 注册所有事件的回调
func (s *Socket) OnAny(h EventHandler) {
	s.mu.Lock()
	s.onAny = append(s.onAny, h)
	s.mu.Unlock()
}

// OnDisconnecting 断开时、离开房间之前回调
func (s *Socket) OnDisconnecting(h DisconnectHandler) {
	s.mu.Lock()
	s.onDisconnecting = append(s.onDisconnecting, h)
	s.mu.Unlock()
}

// Emit 只发给这一条连接
func (s *Socket) Emit(event string, data any) error {
	raw, err := marshalData(data)
	if err != nil {
		return err
	}
	b, err := encodeEvent(event, raw)
	if err != nil {
		return err
	}
	return s.enqueue(b)
}

// Disconnect 服务端主动断开，返回时 disconnecting 回调已执行完
func (s *Socket) Disconnect(reason string) {
	if reason == "" {
		reason = ReasonServerDisconnect
	}
	s.close(reason)
}

// Done 连接彻底关闭后 closed
func (s *Socket) Done() <-chan struct{} { return s.closed }

func (s *Socket) enqueue(b []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.send <- b:
		return nil
	case <-s.done:
		return ErrClosed
	default:
		// 慢消费者直接断开，不阻塞广播方
		safe.Go(func() { s.close(ReasonSendQueueFull) })
		return ErrClosed
	}
}

func (s *Socket) ack(id uint64) AckFunc {
	var once sync.Once
	return func(data any) {
		once.Do(func() {
			b, err := encodeAck(id, data)
			if err != nil {
				s.log.Error("encode ack failed", zap.Uint64("ackId", id), zap.Error(err))
				return
			}
			if err := s.enqueue(b); err != nil {
				s.log.Debug("ack dropped", zap.Uint64("ackId", id), zap.Error(err))
			}
		})
	}
}

func (s *Socket) close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		handlers := append([]DisconnectHandler(nil), s.onDisconnecting...)
		wasConnected := s.connected
		s.connected = false
		s.mu.Unlock()

		if wasConnected {
			for _, h := range handlers {
				func() {
					defer safe.Recover("socket.disconnecting")
					h(s, reason)
				}()
			}
		}

		s.srv.remove(s)
		s.cancel()
		close(s.done)
		s.log.Info("socket closed", zap.String("reason", reason))
		close(s.closed)
	})
}

// readPump 读循环：每个事件一个 goroutine，同一连接上的事件不串行
func (s *Socket) readPump() {
	reason := ReasonTransportClose
	defer func() { s.close(reason) }()

	opts := s.srv.opts
	_ = s.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		mt, raw, err := s.conn.ReadMessage()
		if err != nil {
			var ne net.Error
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
			case errors.As(err, &ne) && ne.Timeout():
				reason = ReasonPingTimeout
			default:
				select {
				case <-s.done:
				default:
					reason = ReasonTransportError
					s.log.Debug("read failed", zap.Error(err))
				}
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		// 任何入站帧都说明连接活着
		_ = s.conn.SetReadDeadline(time.Now().Add(opts.PongWait))

		f, err := parseFrame(raw)
		if err != nil {
			sample := raw
			if len(sample) > 256 {
				sample = sample[:256]
			}
			s.log.Warn("bad frame", zap.Error(err), zap.ByteString("sample", sample))
			continue
		}
		switch f.Type {
		case FrameEvent:
			s.dispatch(f)
		case FrameDisconnect:
			reason = ReasonClientDisconnect
			return
		default:
			s.log.Debug("ignore frame", zap.String("type", f.Type))
		}
	}
}

func (s *Socket) dispatch(f *inFrame) {
	if f.Event == "" {
		return
	}
	var ack AckFunc
	if f.ID != nil {
		ack = s.ack(*f.ID)
	}
	errorAck := s.srv.opts.ErrorAck

	if s.limiter != nil && !s.limiter.Allow() {
		s.log.Warn("event rate limited", zap.String("event", f.Event))
		if ack != nil && errorAck != nil {
			ack(errorAck(errs.ErrTooManyRequests.Wrap()))
		}
		return
	}

	data, err := f.payload()
	if err != nil {
		s.log.Warn("bad event payload", zap.String("event", f.Event), zap.Error(err))
		if ack != nil && errorAck != nil {
			ack(errorAck(errs.ErrArgs.WrapMsg("bad payload", "err", err)))
		}
		return
	}

	s.mu.RLock()
	handlers := append([]EventHandler(nil), s.onAny...)
	s.mu.RUnlock()

	// 连接断开不取消正在处理的事件
	ctx := context.WithoutCancel(s.ctx)
	for _, h := range handlers {
		safe.Go(func() { h(ctx, s, f.Event, data, ack) }, func(r any) {
			if ack != nil && errorAck != nil {
				ack(errorAck(errs.ErrPanic(r)))
			}
		})
	}
}

// writePump 唯一写协程
func (s *Socket) writePump() {
	opts := s.srv.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	write := func(b []byte) error {
		_ = s.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
		return s.conn.WriteMessage(websocket.TextMessage, b)
	}

	for {
		select {
		case b := <-s.send:
			if err := write(b); err != nil {
				safe.Go(func() { s.close(ReasonTransportError) })
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteWait)); err != nil {
				safe.Go(func() { s.close(ReasonTransportError) })
				return
			}
		case <-s.done:
			// 尽量把已排队的帧发完
			for {
				select {
				case b := <-s.send:
					if write(b) != nil {
						return
					}
				default:
					_ = s.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(opts.WriteWait))
					return
				}
			}
		}
	}
}
