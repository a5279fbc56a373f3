package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"PPSocket/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	c := Default()
	c.Auth.Secret = "s3cret"
	return c
}

func TestDefault_Validates(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())
	assert.NotEmpty(t, c.NodeID, "node id is generated")
	assert.Equal(t, []string{"gateway.*"}, c.Gateway.Blacklist)
	assert.Equal(t, 24*time.Hour, c.Presence.TTL)
	assert.Equal(t, AdapterRedis, c.Adapter.Type, "scale-out is on by default")
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ppsocket.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nodeId: node-a
adapter:
  type: redis
presence:
  ttl: 2h
gateway:
  blacklist: ["gateway.*", "admin.**"]
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-a", c.NodeID)
	assert.Equal(t, AdapterRedis, c.Adapter.Type)
	assert.Equal(t, 2*time.Hour, c.Presence.TTL)
	assert.Equal(t, []string{"gateway.*", "admin.**"}, c.Gateway.Blacklist)
	// untouched
	assert.Equal(t, "/socket", c.HTTP.SocketPath)
	assert.Equal(t, "ppsocket", c.Adapter.Key)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestOverlay_BadYAML(t *testing.T) {
	c := Default()
	err := c.Overlay([]byte("adapter: [oops"))
	assert.True(t, errs.HasCode(err, errs.ArgsError))
	assert.NoError(t, c.Overlay([]byte("  \n")))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PPSOCKET_NODE_ID":        "node-env",
		"REDIS_URL":               "redis://localhost:6380/2",
		"PPSOCKET_NATS_SERVERS":   "nats://a:4222, nats://b:4222,",
		"PPSOCKET_PRESENCE_TTL":   "90m",
		"PPSOCKET_NACOS_REGISTER": "true",
		"PPSOCKET_JWT_SECRET":     "  ",
	}
	c := Default()
	c.Auth.Secret = "keep"
	c.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "node-env", c.NodeID)
	assert.Equal(t, "redis://localhost:6380/2", c.Redis.URL)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, c.NATS.Servers)
	assert.Equal(t, 90*time.Minute, c.Presence.TTL)
	assert.True(t, c.Nacos.Register)
	assert.Equal(t, "keep", c.Auth.Secret, "blank env values are ignored")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AppConfig)
	}{
		{"unknown adapter", func(c *AppConfig) { c.Adapter.Type = "kafka" }},
		{"empty adapter", func(c *AppConfig) { c.Adapter.Type = "" }},
		{"legacy none adapter", func(c *AppConfig) { c.Adapter.Type = "none" }},
		{"nats adapter without servers", func(c *AppConfig) { c.Adapter.Type = AdapterNATS }},
		{"no redis", func(c *AppConfig) { c.Redis.Addr, c.Redis.URL = "", "" }},
		{"no secret", func(c *AppConfig) { c.Auth.Secret = "" }},
		{"zero ttl", func(c *AppConfig) { c.Presence.TTL = 0 }},
		{"bad socket path", func(c *AppConfig) { c.HTTP.SocketPath = "socket" }},
		{"pong before ping", func(c *AppConfig) { c.Socket.PongWait = time.Second }},
		{"kafka without topic", func(c *AppConfig) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.Kafka.Topic = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, errs.ArgsError))
		})
	}
}

func TestValidate_NATSAdapter(t *testing.T) {
	c := validConfig()
	c.Adapter.Type = AdapterNATS
	c.NATS.Servers = []string{"nats://127.0.0.1:4222"}
	assert.NoError(t, c.Validate())
}

func TestValidate_SingleNodeOptIn(t *testing.T) {
	c := validConfig()
	c.Adapter.Type = AdapterSingleNode
	assert.NoError(t, c.Validate())
}
