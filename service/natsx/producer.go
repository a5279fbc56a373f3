package natsx

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsxProducer 生产端
type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

func (p *NatsxProducer) newMsg(biz string, data []byte, hdr map[string]string) (*nats.Msg, error) {
	r, ok := p.c.route(biz)
	if !ok {
		return nil, fmt.Errorf("route not found: %s", biz)
	}
	msg := nats.NewMsg(r.Subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	return msg, nil
}

// Publish 按 Biz 路由发送
func (p *NatsxProducer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := p.newMsg(biz, data, hdr)
	if err != nil {
		return err
	}
	if err := p.c.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Request 发送并等待第一个回复，超时由 ctx 控制
func (p *NatsxProducer) Request(ctx context.Context, biz string, data []byte, hdr map[string]string) (NatsxMessage, error) {
	msg, err := p.newMsg(biz, data, hdr)
	if err != nil {
		return NatsxMessage{}, err
	}
	resp, err := p.c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return NatsxMessage{}, fmt.Errorf("request failed: %w", err)
	}
	return toMessage(resp), nil
}

// Respond 回复 request
func (p *NatsxProducer) Respond(reply string, data []byte, hdr map[string]string) error {
	if reply == "" {
		return fmt.Errorf("empty reply subject")
	}
	msg := nats.NewMsg(reply)
	msg.Data = data
	msg.Header = toHeader(hdr)
	return p.c.nc.PublishMsg(msg)
}
