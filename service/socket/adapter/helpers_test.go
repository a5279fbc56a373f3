package adapter

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PPSocket/service/socket"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type frame struct {
	Type  string          `json:"type"`
	SID   string          `json:"sid"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startNode(t *testing.T, nodeID string, a socket.Adapter) (*socket.Server, *httptest.Server) {
	t.Helper()
	srv := socket.NewServer(nodeID, socket.Options{}, a, zap.NewNop())
	require.NoError(t, srv.Start(context.Background()))
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Close(ctx)
		hs.Close()
	})
	return srv, hs
}

func connect(t *testing.T, hs *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "connect"}))
	f := readFrame(t, conn)
	require.Equal(t, "connect", f.Type)
	return conn, f.SID
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// crossNodeScenario 两个节点：客户端连在 b 上，a 负责加入房间与广播
func crossNodeScenario(t *testing.T, a, b socket.Adapter) {
	t.Helper()
	srvA, hsA := startNode(t, "node-a", a)
	_, hsB := startNode(t, "node-b", b)

	connB, sidB := connect(t, hsB)
	connA, _ := connect(t, hsA)

	ok, err := srvA.JoinRemote(context.Background(), sidB, []string{"g-1"})
	require.NoError(t, err)
	require.True(t, ok, "socket on node-b should be found from node-a")

	ok, err = srvA.JoinRemote(context.Background(), "no-such-socket", []string{"g-1"})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, srvA.To("g-1").Emit(context.Background(), "notify", map[string]any{"from": "a"}))
	f := readFrame(t, connB)
	require.Equal(t, "notify", f.Event)
	require.JSONEq(t, `{"from":"a"}`, string(f.Data))

	// 广播：本地直接投递一次，对端经 adapter 一次，不会重复
	require.NoError(t, srvA.Emit(context.Background(), "all", 1))
	require.Equal(t, "all", readFrame(t, connA).Event)
	require.Equal(t, "all", readFrame(t, connB).Event)

	require.NoError(t, srvA.Emit(context.Background(), "all-2", 2))
	require.Equal(t, "all-2", readFrame(t, connA).Event)
	require.Equal(t, "all-2", readFrame(t, connB).Event)
}
