package natsx

import (
	"context"

	"PPSocket/tools/errs"
)

var errNotInitialized = errs.ErrInternal.WithDetail("nats manager not initialized")

// NatsManager 统一门面：对外只暴露这一个对象来用
type NatsManager struct {
	client   *NatsxClient
	producer *NatsxProducer
	consumer *NatsxConsumer
}

// NewNatsManager 初始化
func NewNatsManager(cfg NatsxConfig, middlewares ...NatsxMiddleware) (*NatsManager, error) {
	c, err := NewNatsxClient(cfg)
	if err != nil {
		return nil, err
	}
	return &NatsManager{
		client:   c,
		producer: NewNatsxProducer(c),
		consumer: NewNatsxConsumer(c, middlewares...),
	}, nil
}

func (m *NatsManager) ready() bool {
	return m != nil && m.client != nil && m.producer != nil && m.consumer != nil
}

// Close 释放资源（优雅关闭订阅与连接）
func (m *NatsManager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// RegisterRoute 注册业务路由（biz -> subject / queue）
func (m *NatsManager) RegisterRoute(r NatsxRoute) error {
	if !m.ready() {
		return errNotInitialized.Wrap()
	}
	return m.client.RegisterRoute(r)
}

// Publish 生产消息（按 biz 路由）
func (m *NatsManager) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	if !m.ready() {
		return errNotInitialized.Wrap()
	}
	return m.producer.Publish(ctx, biz, data, hdr)
}

func (m *NatsManager) Request(ctx context.Context, biz string, data []byte, hdr map[string]string) (NatsxMessage, error) {
	if !m.ready() {
		return NatsxMessage{}, errNotInitialized.Wrap()
	}
	return m.producer.Request(ctx, biz, data, hdr)
}

func (m *NatsManager) Respond(reply string, data []byte, hdr map[string]string) error {
	if !m.ready() {
		return errNotInitialized.Wrap()
	}
	return m.producer.Respond(reply, data, hdr)
}

// Subscribe 订阅，同组内用 Queue 分摊；广播则 Queue 置空
func (m *NatsManager) Subscribe(biz string, h NatsxHandler) error {
	if !m.ready() {
		return errNotInitialized.Wrap()
	}
	return m.consumer.Subscribe(biz, h)
}
