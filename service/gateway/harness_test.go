package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PPSocket/service/dispatcher"
	"PPSocket/service/socket"
	"PPSocket/service/socket/adapter"
	"PPSocket/service/storage"
	"PPSocket/tools/security"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret    = "gateway-test-secret"
	testKeyPrefix = "online:"
)

type frame struct {
	Type    string          `json:"type"`
	SID     string          `json:"sid"`
	Message string          `json:"message"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	ID      *uint64         `json:"id"`
}

type ackFrame struct {
	Result  bool            `json:"result"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// countingBroker 统计有多少请求真正到了 dispatcher
type countingBroker struct {
	dispatcher.Broker
	finds atomic.Int64
	calls atomic.Int64
}

func (b *countingBroker) FindEndpoint(ctx context.Context, name string) (*dispatcher.Endpoint, error) {
	b.finds.Add(1)
	return b.Broker.FindEndpoint(ctx, name)
}

func (b *countingBroker) Call(ctx context.Context, name string, params any, meta dispatcher.Meta) (any, error) {
	b.calls.Add(1)
	return b.Broker.Call(ctx, name, params, meta)
}

type recordingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *recordingObserver) inc(k string) {
	o.mu.Lock()
	o.counts[k]++
	o.mu.Unlock()
}

func (o *recordingObserver) get(k string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[k]
}

func (o *recordingObserver) ConnOpened()          { o.inc("conn.opened") }
func (o *recordingObserver) ConnClosed()          { o.inc("conn.closed") }
func (o *recordingObserver) Handshake(out string) { o.inc("handshake." + out) }
func (o *recordingObserver) Event(out string)     { o.inc("event." + out) }
func (o *recordingObserver) Notify(mode string)   { o.inc("notify." + mode) }
func (o *recordingObserver) StoreError(op string) { o.inc("store." + op) }

type cluster struct {
	t       *testing.T
	mr      *miniredis.Miniredis
	hub     *adapter.Hub
	backend *dispatcher.Local
	obs     *recordingObserver
	release chan struct{}
}

func newCluster(t *testing.T) *cluster {
	c := &cluster{
		t:       t,
		mr:      miniredis.RunT(t),
		hub:     adapter.NewHub(),
		backend: dispatcher.NewLocal(),
		obs:     &recordingObserver{counts: map[string]int{}},
		release: make(chan struct{}),
	}
	c.backend.Register(dispatcher.Endpoint{Name: "chat.echo", Visibility: dispatcher.VisibilityPublished},
		func(_ context.Context, params any, meta dispatcher.Meta) (any, error) {
			return map[string]any{
				"params":   params,
				"userId":   meta.UserID,
				"nickname": meta.User["nickname"],
				"socketId": meta.SocketID,
				"language": meta.Language,
				"hasToken": meta.Token != "",
			}, nil
		})
	c.backend.Register(dispatcher.Endpoint{Name: "chat.slow"}, func(context.Context, any, dispatcher.Meta) (any, error) {
		<-c.release
		return "slow", nil
	})
	c.backend.Register(dispatcher.Endpoint{Name: "chat.fail"}, func(context.Context, any, dispatcher.Meta) (any, error) {
		return nil, errors.New("Something went wrong")
	})
	c.backend.Register(dispatcher.Endpoint{Name: "chat.private", Visibility: dispatcher.VisibilityPrivate},
		func(context.Context, any, dispatcher.Meta) (any, error) { return "private", nil })
	c.backend.Register(dispatcher.Endpoint{Name: "chat.hidden", DisableSocket: true},
		func(context.Context, any, dispatcher.Meta) (any, error) { return "hidden", nil })
	t.Cleanup(func() {
		select {
		case <-c.release:
		default:
			close(c.release)
		}
	})
	return c
}

func (c *cluster) presenceKeys() []string {
	var out []string
	for _, k := range c.mr.Keys() {
		if strings.HasPrefix(k, testKeyPrefix) {
			out = append(out, k)
		}
	}
	return out
}

type node struct {
	id     string
	srv    *socket.Server
	gw     *Gateway
	hs     *httptest.Server
	local  *dispatcher.Local
	broker *countingBroker
}

func (c *cluster) addNode(id string) *node {
	t := c.t
	rdb := redis.NewClient(&redis.Options{Addr: c.mr.Addr()})
	presence := storage.NewPresence(rdb, storage.PresenceConfig{NodeID: id, KeyPrefix: testKeyPrefix, TTL: 24 * time.Hour})
	srv := socket.NewServer(id, socket.Options{ErrorAck: ErrorAck}, c.hub.Adapter(), zap.NewNop())

	local := dispatcher.NewLocal()
	broker := &countingBroker{Broker: dispatcher.NewChain(local, c.backend)}
	gw, err := New(Deps{
		Server:   srv,
		Broker:   broker,
		Local:    local,
		Presence: presence,
		Verifier: security.NewJWTVerifier(security.DefaultOptions([]byte(testSecret))),
		Observer: c.obs,
	}, Options{Blacklist: []string{"gateway.*"}, CallTimeout: 5 * time.Second})
	require.NoError(t, err)
	require.NoError(t, gw.Start(context.Background()))

	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = gw.Stop(ctx)
		hs.Close()
		_ = rdb.Close()
	})
	return &node{id: id, srv: srv, gw: gw, hs: hs, local: local, broker: broker}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
	sid  string
	seq  uint64
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, _, err := security.Generate(security.DefaultOptions([]byte(testSecret)), userID, map[string]any{"nickname": "nick-" + userID})
	require.NoError(t, err)
	return tok
}

// dial 发送握手帧并返回服务端第一帧
func (n *node) dial(t *testing.T, auth map[string]any, lang string) (*client, frame) {
	t.Helper()
	hdr := http.Header{}
	if lang != "" {
		hdr.Set("Accept-Language", lang)
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(n.hs.URL, "http"), hdr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	hello := map[string]any{"type": "connect"}
	if auth != nil {
		hello["auth"] = auth
	}
	require.NoError(t, conn.WriteJSON(hello))
	c := &client{t: t, conn: conn}
	f := c.read()
	c.sid = f.SID
	return c, f
}

// login 握手成功并等到 presence 写入（此时用户房间也已加入）
func (n *node) login(t *testing.T, userID string, lang ...string) *client {
	t.Helper()
	l := ""
	if len(lang) > 0 {
		l = lang[0]
	}
	c, f := n.dial(t, map[string]any{"token": token(t, userID)}, l)
	require.Equal(t, "connect", f.Type, "handshake rejected: %s", f.Message)
	require.Eventually(t, func() bool {
		s, err := n.gw.Sessions(context.Background(), userID)
		return err == nil && s[c.sid] == n.id
	}, 2*time.Second, 10*time.Millisecond)
	return c
}

func (c *client) read() frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	require.NoError(c.t, c.conn.ReadJSON(&f))
	return f
}

func (c *client) readEvent() (string, string) {
	c.t.Helper()
	f := c.read()
	require.Equal(c.t, "event", f.Type)
	return f.Event, string(f.Data)
}

func (c *client) send(event string, data any, withAck bool) uint64 {
	c.t.Helper()
	msg := map[string]any{"type": "event", "event": event, "data": data}
	var id uint64
	if withAck {
		c.seq++
		id = c.seq
		msg["id"] = id
	}
	require.NoError(c.t, c.conn.WriteJSON(msg))
	return id
}

func (c *client) readAck() (uint64, ackFrame, string) {
	c.t.Helper()
	f := c.read()
	require.Equal(c.t, "ack", f.Type)
	require.NotNil(c.t, f.ID)
	var a ackFrame
	require.NoError(c.t, json.Unmarshal(f.Data, &a))
	return *f.ID, a, string(f.Data)
}

// call 发送并等待 ack，返回原始 ack JSON
func (c *client) call(event string, data any) (ackFrame, string) {
	c.t.Helper()
	id := c.send(event, data, true)
	got, a, raw := c.readAck()
	require.Equal(c.t, id, got)
	return a, raw
}

func assertSessions(t *testing.T, n *node, userID string, want map[string]string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		s, err := n.gw.Sessions(context.Background(), userID)
		if err != nil || len(s) != len(want) {
			return false
		}
		for k, v := range want {
			if s[k] != v {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}
