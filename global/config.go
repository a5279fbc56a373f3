package global

import (
	"context"

	"PPSocket/global/config"
	mid "PPSocket/middleware"
	"PPSocket/service/dispatcher"
	"PPSocket/service/kafka"
	"PPSocket/service/natsx"
	"PPSocket/service/socket"
	"PPSocket/service/socket/adapter"
	"PPSocket/service/storage"
	rdbx "PPSocket/service/storage/redis"
	"PPSocket/tools/errs"
	"PPSocket/tools/ids"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConfigIds 连接 ID 的雪花节点号由节点名派生
func ConfigIds(nodeID string) {
	ids.SetNodeID(ids.NodeNumber(nodeID))
}

// ConfigRedis presence 和 redis adapter 共用一个客户端，连不上直接失败
func ConfigRedis(ctx context.Context, c config.RedisConfig) (*redis.Client, error) {
	return rdbx.NewClient(ctx, rdbx.Config{
		URL:      c.URL,
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})
}

func ConfigPresence(rdb redis.UniversalClient, c *config.AppConfig) *storage.Presence {
	return storage.NewPresence(rdb, storage.PresenceConfig{
		NodeID:    c.NodeID,
		KeyPrefix: c.Presence.KeyPrefix,
		TTL:       c.Presence.TTL,
	})
}

// ConfigAdapter 按 adapter.type 创建多节点通道，这是硬依赖，配置不全直接失败。
// 只有显式配置 single-node-unsafe 才退化为进程内 adapter。
func ConfigAdapter(c *config.AppConfig, rdb redis.UniversalClient, log *zap.Logger) (socket.Adapter, error) {
	switch c.Adapter.Type {
	case config.AdapterSingleNode:
		log.Warn("adapter.type is single-node-unsafe: no scale-out channel, do NOT run more than one gateway process")
		return adapter.NewMemory(), nil
	case config.AdapterRedis:
		if rdb == nil {
			return nil, errs.ErrArgs.WrapMsg("redis adapter needs a redis client")
		}
		return adapter.NewRedis(rdb, adapter.RedisOptions{
			Key:            c.Adapter.Key,
			RequestTimeout: c.Adapter.RequestTimeout,
		}, log), nil
	case config.AdapterNATS:
		mgr, err := natsx.NewNatsManager(natsx.NatsxConfig{
			Servers: c.NATS.Servers,
			Name:    c.NATS.Name + "-" + c.NodeID,
			User:    c.NATS.User,
			Pass:    c.NATS.Pass,
			Token:   c.NATS.Token,
			Logger:  log.Named("nats"),
		}, natsx.NatsxRecover(log), natsx.NatsxLogErrors(log))
		if err != nil {
			return nil, errs.WrapMsg(err, "connect nats", "servers", c.NATS.Servers)
		}
		return adapter.NewNATS(mgr, adapter.NATSOptions{
			Key:            c.Adapter.Key,
			RequestTimeout: c.Adapter.RequestTimeout,
		}, log), nil
	default:
		return nil, errs.ErrArgs.WrapMsg("unknown adapter type", "type", c.Adapter.Type)
	}
}

func ConfigSocket(c *config.AppConfig, errorAck func(error) any) socket.Options {
	s := c.Socket
	return socket.Options{
		HandshakeTimeout: s.HandshakeTimeout,
		PingInterval:     s.PingInterval,
		PongWait:         s.PongWait,
		WriteWait:        s.WriteWait,
		SendQueue:        s.SendQueue,
		MaxMessageBytes:  s.MaxMessageBytes,
		EventRate:        s.EventRate,
		EventBurst:       s.EventBurst,
		CheckOrigin:      mid.Origin(c.HTTP.AllowedOrigins),
		ErrorAck:         errorAck,
	}
}

// ConfigDispatcher 本地 action 优先，配置了 target 时再接远端 broker。
// remote 为 nil 表示只有本地。
func ConfigDispatcher(c config.DispatcherConfig, log *zap.Logger) (*dispatcher.Chain, *dispatcher.Local, *dispatcher.Remote, error) {
	local := dispatcher.NewLocal()
	if c.Target == "" {
		log.Warn("dispatcher.target is empty, only gateway actions are callable")
		return dispatcher.NewChain(local), local, nil, nil
	}
	remote, err := dispatcher.NewRemote(dispatcher.RemoteConfig{
		Target:          c.Target,
		DialTimeout:     c.DialTimeout,
		HealthInterval:  c.HealthInterval,
		BreakerFailures: c.BreakerFailures,
		BreakerOpenFor:  c.BreakerOpenFor,
		BreakerHalfOpen: c.BreakerHalfOpen,
	}, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return dispatcher.NewChain(local, remote), local, remote, nil
}

// ConfigKafka 没有配置 brokers 时返回 nil
func ConfigKafka(c config.KafkaConfig, n kafka.Notifier, log *zap.Logger) (*kafka.Consumer, error) {
	if len(c.Brokers) == 0 {
		return nil, nil
	}
	return kafka.NewConsumer(kafka.Config{
		Brokers:           c.Brokers,
		GroupID:           c.GroupID,
		Topic:             c.Topic,
		Version:           c.Version,
		InitialOffset:     c.InitialOffset,
		AutoCreateTopic:   c.AutoCreateTopic,
		Partitions:        c.Partitions,
		ReplicationFactor: c.ReplicationFactor,
	}, kafka.NotifyHandler(n, log), log)
}
