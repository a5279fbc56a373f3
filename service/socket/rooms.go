package socket

import (
	"strings"
	"sync"
)

// roomIndex 本地房间索引：room -> sid -> socket，以及反向 sid -> rooms
type roomIndex struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*Socket
	bySocket map[string]map[string]struct{}
}

func newRoomIndex() *roomIndex {
	return &roomIndex{
		rooms:    make(map[string]map[string]*Socket),
		bySocket: make(map[string]map[string]struct{}),
	}
}

// join 重复加入幂等
func (ri *roomIndex) join(s *Socket, rooms ...string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	mine := ri.bySocket[s.id]
	if mine == nil {
		mine = make(map[string]struct{}, len(rooms))
		ri.bySocket[s.id] = mine
	}
	for _, room := range rooms {
		if room == "" {
			continue
		}
		members := ri.rooms[room]
		if members == nil {
			members = make(map[string]*Socket)
			ri.rooms[room] = members
		}
		members[s.id] = s
		mine[room] = struct{}{}
	}
}

func (ri *roomIndex) leave(s *Socket, room string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.leaveLocked(s.id, room)
}

func (ri *roomIndex) leaveLocked(sid, room string) {
	if members := ri.rooms[room]; members != nil {
		delete(members, sid)
		if len(members) == 0 {
			delete(ri.rooms, room)
		}
	}
	if mine := ri.bySocket[sid]; mine != nil {
		delete(mine, room)
	}
}

// leaveAll 连接关闭时调用，返回离开的房间
func (ri *roomIndex) leaveAll(s *Socket) []string {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	mine := ri.bySocket[s.id]
	left := make([]string, 0, len(mine))
	for room := range mine {
		left = append(left, room)
		ri.leaveLocked(s.id, room)
	}
	delete(ri.bySocket, s.id)
	return left
}

func (ri *roomIndex) roomsOf(sid string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	mine := ri.bySocket[sid]
	out := make([]string, 0, len(mine))
	for room := range mine {
		out = append(out, room)
	}
	return out
}

// members 多个房间取并集，同一连接只出现一次
func (ri *roomIndex) members(rooms []string) []*Socket {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if len(rooms) == 1 {
		members := ri.rooms[rooms[0]]
		out := make([]*Socket, 0, len(members))
		for _, s := range members {
			out = append(out, s)
		}
		return out
	}
	seen := make(map[string]struct{})
	var out []*Socket
	for _, room := range rooms {
		for sid, s := range ri.rooms[room] {
			if _, ok := seen[sid]; ok {
				continue
			}
			seen[sid] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// names 带前缀的房间名
func (ri *roomIndex) names(prefix string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	var out []string
	for room := range ri.rooms {
		if strings.HasPrefix(room, prefix) {
			out = append(out, room)
		}
	}
	return out
}
