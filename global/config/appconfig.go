package config

import (
	"time"

	"PPSocket/logger"
)

type AppConfig struct {
	NodeID     string           `yaml:"nodeId"`     // 节点ID，为空时启动生成
	HTTP       HTTPConfig       `yaml:"http"`       // http + websocket
	GRPC       GRPCConfig       `yaml:"grpc"`       // grpc 健康检查
	Socket     SocketConfig     `yaml:"socket"`     // 连接参数
	Adapter    AdapterConfig    `yaml:"adapter"`    // 多节点广播通道
	Redis      RedisConfig      `yaml:"redis"`      // presence + redis adapter
	NATS       NATSConfig       `yaml:"nats"`       // nats adapter
	Presence   PresenceConfig   `yaml:"presence"`   // 在线状态
	Gateway    GatewayConfig    `yaml:"gateway"`    // 事件转发
	Auth       AuthConfig       `yaml:"auth"`       // 握手鉴权
	Dispatcher DispatcherConfig `yaml:"dispatcher"` // 后端服务调用
	Kafka      KafkaConfig      `yaml:"kafka"`      // 通知消费
	Nacos      NacosConfig      `yaml:"nacos"`      // 远程配置 + 注册
	Log        logger.Config    `yaml:"log"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	SocketPath     string   `yaml:"socketPath"`
	InternalToken  string   `yaml:"internalToken"`  // 内部 API 的 bearer token，空则不开放内部 API
	AllowedOrigins []string `yaml:"allowedOrigins"` // websocket Origin 白名单，空则不限制
}

type GRPCConfig struct {
	Addr string `yaml:"addr"` // 空则不启动
}

type SocketConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout"`
	PingInterval     time.Duration `yaml:"pingInterval"`
	PongWait         time.Duration `yaml:"pongWait"`
	WriteWait        time.Duration `yaml:"writeWait"`
	SendQueue        int           `yaml:"sendQueue"`
	MaxMessageBytes  int64         `yaml:"maxMessageBytes"`
	EventRate        float64       `yaml:"eventRate"` // 每连接每秒事件数，<=0 不限流
	EventBurst       int           `yaml:"eventBurst"`
}

const (
	AdapterRedis = "redis"
	AdapterNATS  = "nats"
	// AdapterSingleNode 没有跨节点通道，只能单进程部署（本地调试用）
	AdapterSingleNode = "single-node-unsafe"
)

type AdapterConfig struct {
	Type           string        `yaml:"type"` // redis | nats | single-node-unsafe
	Key            string        `yaml:"key"`  // channel / subject 前缀
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // 优先于 Addr，如 redis://:pwd@host:6379/0
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

type NATSConfig struct {
	Servers []string `yaml:"servers"`
	Name    string   `yaml:"name"`
	User    string   `yaml:"user"`
	Pass    string   `yaml:"pass"`
	Token   string   `yaml:"token"`
}

type PresenceConfig struct {
	KeyPrefix       string        `yaml:"keyPrefix"`
	TTL             time.Duration `yaml:"ttl"`
	RefreshInterval time.Duration `yaml:"refreshInterval"` // <=0 不刷新
}

type GatewayConfig struct {
	Blacklist       []string      `yaml:"blacklist"`
	UserRoomPrefix  string        `yaml:"userRoomPrefix"`
	CallTimeout     time.Duration `yaml:"callTimeout"`
	DefaultLanguage string        `yaml:"defaultLanguage"`
}

type AuthConfig struct {
	Secret string `yaml:"secret"`
	Alg    string `yaml:"alg"`
	Issuer string `yaml:"issuer"`
}

type DispatcherConfig struct {
	Target          string        `yaml:"target"` // 空则只有本地 action
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	HealthInterval  time.Duration `yaml:"healthInterval"`
	BreakerFailures uint32        `yaml:"breakerFailures"` // 连续失败多少次熔断
	BreakerOpenFor  time.Duration `yaml:"breakerOpenFor"`
	BreakerHalfOpen uint32        `yaml:"breakerHalfOpen"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"` // 空则不启动消费
	GroupID           string   `yaml:"groupId"`
	Topic             string   `yaml:"topic"`
	Version           string   `yaml:"version"`
	InitialOffset     string   `yaml:"initialOffset"` // newest/oldest
	AutoCreateTopic   bool     `yaml:"autoCreateTopic"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replicationFactor"`
}

type NacosConfig struct {
	Addr        string `yaml:"addr"` // host:port，空则不用 nacos
	NamespaceID string `yaml:"namespaceId"`
	Group       string `yaml:"group"`
	DataID      string `yaml:"dataId"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Register    bool   `yaml:"register"`
	ServiceName string `yaml:"serviceName"`
	IP          string `yaml:"ip"`
}
