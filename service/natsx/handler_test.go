package natsx

import (
	"context"
	"errors"
	"testing"

	"PPSocket/tools/errs"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNatsxChain_Order(t *testing.T) {
	var trace []string
	mw := func(name string) NatsxMiddleware {
		return func(next NatsxHandler) NatsxHandler {
			return func(ctx context.Context, msg NatsxMessage) error {
				trace = append(trace, name)
				return next(ctx, msg)
			}
		}
	}
	h := NatsxChain(func(ctx context.Context, msg NatsxMessage) error {
		trace = append(trace, "handler")
		return nil
	}, mw("a"), mw("b"))

	assert.NoError(t, h(context.Background(), NatsxMessage{}))
	assert.Equal(t, []string{"a", "b", "handler"}, trace)
}

func TestNatsxRecover(t *testing.T) {
	h := NatsxChain(func(ctx context.Context, msg NatsxMessage) error {
		panic("boom")
	}, NatsxRecover(zap.NewNop()))

	err := h(context.Background(), NatsxMessage{Subject: "s"})
	assert.True(t, errs.HasCode(err, errs.ServerInternalError))
}

func TestNatsxLogErrors_PassesThrough(t *testing.T) {
	want := errors.New("bad")
	h := NatsxChain(func(ctx context.Context, msg NatsxMessage) error {
		return want
	}, NatsxLogErrors(zap.NewNop()))
	assert.ErrorIs(t, h(context.Background(), NatsxMessage{}), want)
}

func TestHeaderConversion(t *testing.T) {
	assert.Nil(t, toHeader(nil))
	assert.Nil(t, headerToMap(nil))

	h := toHeader(map[string]string{"Node": "n1"})
	assert.Equal(t, "n1", h.Get("Node"))

	m := toMessage(&nats.Msg{Subject: "x", Reply: "r", Data: []byte("d"), Header: h})
	assert.Equal(t, "r", m.Reply)
	assert.Equal(t, map[string]string{"Node": "n1"}, m.Header)
}

func TestNewNatsxClient_NoServers(t *testing.T) {
	_, err := NewNatsxClient(NatsxConfig{})
	assert.Error(t, err)
}

func TestNatsManager_NotInitialized(t *testing.T) {
	var m *NatsManager
	assert.NoError(t, m.Close())

	err := m.Publish(context.Background(), "biz", nil, nil)
	assert.True(t, errs.HasCode(err, errs.ServerInternalError))
	_, err = m.Request(context.Background(), "biz", nil, nil)
	assert.Error(t, err)
	assert.Error(t, m.Subscribe("biz", nil))
	assert.Error(t, m.RegisterRoute(NatsxRoute{Biz: "b", Subject: "s"}))
}

func TestRegisterRoute_Invalid(t *testing.T) {
	c := &NatsxClient{routes: map[string]NatsxRoute{}}
	assert.True(t, errs.HasCode(c.RegisterRoute(NatsxRoute{Biz: "b"}), errs.ArgsError))
	assert.NoError(t, c.RegisterRoute(NatsxRoute{Biz: "b", Subject: "s"}))
	r, ok := c.route("b")
	assert.True(t, ok)
	assert.Equal(t, "s", r.Subject)
}
