package socket

import (
	"context"
	"encoding/json"
)

// Packet 跨节点广播的最小单元；Rooms 为空表示发给所有连接
type Packet struct {
	Node  string          `json:"node"`
	Rooms []string        `json:"rooms,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest 让持有 SID 的节点把连接加入房间
type JoinRequest struct {
	Node  string   `json:"node"`
	SID   string   `json:"sid"`
	Rooms []string `json:"rooms"`
	Reply string   `json:"reply,omitempty"`
	Seq   string   `json:"seq,omitempty"`
}

type JoinReply struct {
	Node string `json:"node"`
	Seq  string `json:"seq,omitempty"`
	OK   bool   `json:"ok"`
}

// Local 是 adapter 回调本节点的入口，由 *Server 实现
type Local interface {
	NodeID() string
	// Deliver 投递到本节点匹配的连接
	Deliver(p *Packet)
	// JoinLocal 本节点存在该连接时加入房间并返回 true
	JoinLocal(sid string, rooms []string) bool
}

// Adapter 多节点通道
type Adapter interface {
	Start(ctx context.Context, local Local) error
	Broadcast(ctx context.Context, p *Packet) error
	// RemoteJoin 询问其他节点，任一节点持有该连接即返回 true
	RemoteJoin(ctx context.Context, sid string, rooms []string) (bool, error)
	Close() error
}

// nopAdapter 单节点
type nopAdapter struct{}

func (nopAdapter) Start(context.Context, Local) error       { return nil }
func (nopAdapter) Broadcast(context.Context, *Packet) error { return nil }
func (nopAdapter) Close() error                             { return nil }
func (nopAdapter) RemoteJoin(context.Context, string, []string) (bool, error) {
	return false, nil
}
