package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"PPSocket/logger"
	"PPSocket/tools/errs"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PPSOCKET_"

// LookupEnv 测试里可以替换
var LookupEnv = os.LookupEnv

// Default 默认配置：presence 和多节点通道都走本地 redis
func Default() AppConfig {
	return AppConfig{
		HTTP: HTTPConfig{
			Addr:       ":11000",
			SocketPath: "/socket",
		},
		Socket: SocketConfig{
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     25 * time.Second,
			PongWait:         60 * time.Second,
			WriteWait:        10 * time.Second,
			SendQueue:        256,
			MaxMessageBytes:  1 << 20,
			EventBurst:       20,
		},
		Adapter: AdapterConfig{
			Type:           AdapterRedis,
			Key:            "ppsocket",
			RequestTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			PoolSize: 50,
		},
		NATS: NATSConfig{
			Name: "ppsocket",
		},
		Presence: PresenceConfig{
			KeyPrefix:       "ppsocket.online:",
			TTL:             24 * time.Hour,
			RefreshInterval: time.Hour,
		},
		Gateway: GatewayConfig{
			Blacklist:       []string{"gateway.*"},
			UserRoomPrefix:  "u-",
			CallTimeout:     30 * time.Second,
			DefaultLanguage: "en-US",
		},
		Auth: AuthConfig{
			Alg: "HS256",
		},
		Dispatcher: DispatcherConfig{
			DialTimeout:     3 * time.Second,
			HealthInterval:  5 * time.Second,
			BreakerFailures: 5,
			BreakerOpenFor:  10 * time.Second,
			BreakerHalfOpen: 1,
		},
		Kafka: KafkaConfig{
			GroupID:           "ppsocket-notify",
			Topic:             "ppsocket.notify",
			Version:           "2.1.0",
			InitialOffset:     "newest",
			Partitions:        8,
			ReplicationFactor: 1,
		},
		Nacos: NacosConfig{
			Group:       "DEFAULT_GROUP",
			DataID:      "ppsocket.yaml",
			ServiceName: "ppsocket-gateway",
		},
		Log: logger.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load 读取 yaml 文件（path 为空时只用默认值），再叠加环境变量。
// 远程配置需要在 Validate 之前调用 Overlay。
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errs.WrapMsg(err, "read config", "path", path)
		}
		if err := cfg.Overlay(b); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv(LookupEnv)
	return cfg, nil
}

// Overlay 用一份 yaml 覆盖已有配置，未出现的字段保持不变
func (c *AppConfig) Overlay(doc []byte) error {
	if len(strings.TrimSpace(string(doc))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(doc, c); err != nil {
		return errs.ErrArgs.WrapMsg("parse yaml config", "err", err)
	}
	return nil
}

// ApplyEnv 环境变量覆盖：
// PPSOCKET_NODE_ID, PPSOCKET_HTTP_ADDR, PPSOCKET_INTERNAL_TOKEN, PPSOCKET_GRPC_ADDR,
// PPSOCKET_ADAPTER, REDIS_URL, PPSOCKET_NATS_SERVERS, PPSOCKET_JWT_SECRET,
// PPSOCKET_DISPATCHER_TARGET, PPSOCKET_KAFKA_BROKERS, PPSOCKET_NACOS_ADDR, PPSOCKET_LOG_LEVEL
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}

	str(EnvPrefix+"NODE_ID", &c.NodeID)
	str(EnvPrefix+"HTTP_ADDR", &c.HTTP.Addr)
	str(EnvPrefix+"INTERNAL_TOKEN", &c.HTTP.InternalToken)
	str(EnvPrefix+"GRPC_ADDR", &c.GRPC.Addr)
	str(EnvPrefix+"ADAPTER", &c.Adapter.Type)
	str("REDIS_URL", &c.Redis.URL)
	list(EnvPrefix+"NATS_SERVERS", &c.NATS.Servers)
	str(EnvPrefix+"JWT_SECRET", &c.Auth.Secret)
	str(EnvPrefix+"DISPATCHER_TARGET", &c.Dispatcher.Target)
	list(EnvPrefix+"KAFKA_BROKERS", &c.Kafka.Brokers)
	str(EnvPrefix+"NACOS_ADDR", &c.Nacos.Addr)
	str(EnvPrefix+"LOG_LEVEL", &c.Log.Level)
	list(EnvPrefix+"BLACKLIST", &c.Gateway.Blacklist)

	if v, ok := lookup(EnvPrefix + "PRESENCE_TTL"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			c.Presence.TTL = d
		}
	}
	if v, ok := lookup(EnvPrefix + "NACOS_REGISTER"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Nacos.Register = b
		}
	}
}

// Validate 启动前校验，缺少共享通道配置时直接失败
func (c *AppConfig) Validate() error {
	if c.NodeID == "" {
		c.NodeID = uuid.NewString()
	}
	if c.HTTP.Addr == "" || !strings.HasPrefix(c.HTTP.SocketPath, "/") {
		return errs.ErrArgs.WrapMsg("invalid http config", "addr", c.HTTP.Addr, "socketPath", c.HTTP.SocketPath)
	}
	// presence 永远依赖 redis
	if c.Redis.URL == "" && c.Redis.Addr == "" {
		return errs.ErrArgs.WrapMsg("redis is not configured, set REDIS_URL or redis.addr")
	}
	switch c.Adapter.Type {
	case AdapterRedis, AdapterSingleNode:
	case AdapterNATS:
		if len(c.NATS.Servers) == 0 {
			return errs.ErrArgs.WrapMsg("adapter is nats but nats.servers is empty")
		}
	default:
		return errs.ErrArgs.WrapMsg("unknown adapter type, use redis or nats", "type", c.Adapter.Type)
	}
	if c.Adapter.Key == "" {
		return errs.ErrArgs.WrapMsg("adapter.key is empty")
	}
	if c.Presence.TTL <= 0 {
		return errs.ErrArgs.WrapMsg("presence.ttl must be positive", "ttl", c.Presence.TTL)
	}
	if c.Presence.KeyPrefix == "" {
		return errs.ErrArgs.WrapMsg("presence.keyPrefix is empty")
	}
	if c.Gateway.UserRoomPrefix == "" {
		return errs.ErrArgs.WrapMsg("gateway.userRoomPrefix is empty")
	}
	if c.Auth.Secret == "" {
		return errs.ErrArgs.WrapMsg("auth.secret is empty")
	}
	if c.Socket.SendQueue <= 0 || c.Socket.PongWait <= c.Socket.PingInterval {
		return errs.ErrArgs.WrapMsg("invalid socket config", "sendQueue", c.Socket.SendQueue,
			"pingInterval", c.Socket.PingInterval, "pongWait", c.Socket.PongWait)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errs.ErrArgs.WrapMsg("kafka.topic is empty")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
