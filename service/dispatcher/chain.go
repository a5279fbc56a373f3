package dispatcher

import (
	"context"
	"errors"
	"sync"

	"PPSocket/tools/errs"
)

// Chain 依次询问各 broker，第一个能解析 action 的负责调用
type Chain struct {
	brokers []Broker
	owners  sync.Map // name -> Broker
}

func NewChain(brokers ...Broker) *Chain {
	return &Chain{brokers: brokers}
}

func (c *Chain) FindEndpoint(ctx context.Context, name string) (*Endpoint, error) {
	ep, _, err := c.resolve(ctx, name)
	return ep, err
}

func (c *Chain) Call(ctx context.Context, name string, params any, meta Meta) (any, error) {
	owner, ok := c.owners.Load(name)
	if !ok {
		_, b, err := c.resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		owner = b
	}
	return owner.(Broker).Call(ctx, name, params, meta)
}

// resolve 全部 not found 才算 not found；有 broker 不可达时报不可达
func (c *Chain) resolve(ctx context.Context, name string) (*Endpoint, Broker, error) {
	var unavailable error
	for _, b := range c.brokers {
		ep, err := b.FindEndpoint(ctx, name)
		if err == nil {
			c.owners.Store(name, b)
			return ep, b, nil
		}
		if !errors.Is(err, &errs.ErrServiceNotFound) {
			unavailable = err
		}
	}
	c.owners.Delete(name)
	if unavailable != nil {
		return nil, nil, unavailable
	}
	return nil, nil, errs.ErrServiceNotFound.WrapMsg("action not found", "action", name)
}
