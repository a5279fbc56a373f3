package adapter

import (
	"context"
	"sync"

	"PPSocket/service/socket"
)

// Hub 进程内的节点集合，同一个 Hub 上的 Memory adapter 互为对端
type Hub struct {
	mu      sync.RWMutex
	members map[string]socket.Local
}

func NewHub() *Hub {
	return &Hub{members: make(map[string]socket.Local)}
}

func (h *Hub) Adapter() *Memory { return &Memory{hub: h} }

func (h *Hub) peers(self string) []socket.Local {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]socket.Local, 0, len(h.members))
	for node, l := range h.members {
		if node != self {
			out = append(out, l)
		}
	}
	return out
}

// Memory 单进程 adapter：测试和显式的 single-node-unsafe 部署使用，没有对端
type Memory struct {
	hub   *Hub
	local socket.Local
}

func NewMemory() *Memory { return NewHub().Adapter() }

func (m *Memory) Start(_ context.Context, local socket.Local) error {
	m.local = local
	m.hub.mu.Lock()
	m.hub.members[local.NodeID()] = local
	m.hub.mu.Unlock()
	return nil
}

func (m *Memory) Broadcast(_ context.Context, p *socket.Packet) error {
	for _, peer := range m.hub.peers(p.Node) {
		peer.Deliver(p)
	}
	return nil
}

func (m *Memory) RemoteJoin(_ context.Context, sid string, rooms []string) (bool, error) {
	for _, peer := range m.hub.peers(m.local.NodeID()) {
		if peer.JoinLocal(sid, rooms) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Close() error {
	if m.local == nil {
		return nil
	}
	m.hub.mu.Lock()
	delete(m.hub.members, m.local.NodeID())
	m.hub.mu.Unlock()
	return nil
}
