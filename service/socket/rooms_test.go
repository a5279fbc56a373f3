package socket

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sids(ss []*Socket) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.id)
	}
	sort.Strings(out)
	return out
}

func TestRoomIndex_UnionWithoutDuplicates(t *testing.T) {
	ri := newRoomIndex()
	a, b, c := &Socket{id: "a"}, &Socket{id: "b"}, &Socket{id: "c"}

	ri.join(a, "r1", "r2")
	ri.join(b, "r2")
	ri.join(c, "r3")
	ri.join(a, "r1") // 幂等

	assert.Equal(t, []string{"a", "b"}, sids(ri.members([]string{"r1", "r2"})))
	assert.Equal(t, []string{"a"}, sids(ri.members([]string{"r1"})))
	assert.Empty(t, ri.members([]string{"nope"}))
}

func TestRoomIndex_LeaveAll(t *testing.T) {
	ri := newRoomIndex()
	a, b := &Socket{id: "a"}, &Socket{id: "b"}
	ri.join(a, "u-1", "g-1")
	ri.join(b, "g-1")

	left := ri.leaveAll(a)
	sort.Strings(left)
	assert.Equal(t, []string{"g-1", "u-1"}, left)
	assert.Empty(t, ri.roomsOf("a"))
	assert.Equal(t, []string{"g-1"}, ri.names(""))
	assert.Equal(t, []string{"b"}, sids(ri.members([]string{"g-1"})))
}

func TestRoomIndex_LeaveAndNames(t *testing.T) {
	ri := newRoomIndex()
	a := &Socket{id: "a"}
	ri.join(a, "u-1", "u-2", "g-1", "")
	ri.leave(a, "u-2")

	names := ri.names("u-")
	assert.Equal(t, []string{"u-1"}, names)
	assert.ElementsMatch(t, []string{"u-1", "g-1"}, ri.roomsOf("a"))
}
