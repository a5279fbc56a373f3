package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklist_Match(t *testing.T) {
	b, err := NewBlacklist([]string{"gateway.*", "admin.**", "user.?et", "exact.name", "/^debug\\.[0-9]+$/", " "})
	require.NoError(t, err)

	// * 不跨 .，大小写敏感
	cases := map[string]bool{
		"gateway.notify":     true,
		"gateway.joinRoom":   true,
		"gateway.a.b":        false,
		"Gateway.notify":     false,
		"admin.users.delete": true,
		"user.get":           true,
		"user.set":           true,
		"user.gets":          false,
		"exact.name":         true,
		"exact.names":        false,
		"debug.42":           true,
		"debug.x":            false,
		"chat.message.send":  false,
		"xgateway.notify":    false,
	}
	for name, want := range cases {
		assert.Equal(t, want, b.Match(name), name)
	}
	assert.Len(t, b.Patterns(), 5)
}

func TestBlacklist_BadRegexp(t *testing.T) {
	_, err := NewBlacklist([]string{"/[/"})
	assert.Error(t, err)
}
