package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PPSocket/service/gateway"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []gateway.CastMessage
}

func (n *recordingNotifier) Notify(_ context.Context, m gateway.CastMessage) {
	n.mu.Lock()
	n.msgs = append(n.msgs, m)
	n.mu.Unlock()
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func TestBuildConfig(t *testing.T) {
	cfg, err := BuildConfig(Config{Version: "2.8.0", InitialOffset: "oldest"})
	require.NoError(t, err)
	assert.Equal(t, sarama.V2_8_0_0, cfg.Version)
	assert.Equal(t, sarama.OffsetOldest, cfg.Consumer.Offsets.Initial)

	cfg, err = BuildConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, sarama.V2_1_0_0, cfg.Version)
	assert.Equal(t, sarama.OffsetNewest, cfg.Consumer.Offsets.Initial)

	_, err = BuildConfig(Config{Version: "not-a-version"})
	assert.Error(t, err)
}

func TestNotifyHandler(t *testing.T) {
	n := &recordingNotifier{}
	h := NotifyHandler(n, zap.NewNop())

	err := h(context.Background(), &sarama.ConsumerMessage{
		Value: []byte(`{"type":"listcast","target":["u1","u2"],"eventName":"ping","eventData":{"a":1}}`),
	})
	require.NoError(t, err)
	require.Len(t, n.msgs, 1)
	assert.Equal(t, gateway.CastMessage{
		Type:      gateway.CastListcast,
		Target:    []any{"u1", "u2"},
		EventName: "ping",
		EventData: map[string]any{"a": float64(1)},
	}, n.msgs[0])

	assert.NoError(t, h(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}))
	assert.Len(t, n.msgs, 1, "malformed messages are skipped")
}

func TestGroupHandler_MarksEveryMessage(t *testing.T) {
	var handled atomic.Int32
	h := &groupHandler{log: zap.NewNop(), handle: func(_ context.Context, msg *sarama.ConsumerMessage) error {
		handled.Add(1)
		switch msg.Offset {
		case 1:
			return errors.New("boom")
		case 2:
			panic("bad message")
		}
		return nil
	}}

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 3)}
	for i := int64(0); i < 3; i++ {
		claim.ch <- &sarama.ConsumerMessage{Topic: "ppsocket.notify", Offset: i}
	}
	close(claim.ch)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))
	assert.Equal(t, int32(3), handled.Load())
	assert.Equal(t, []int64{0, 1, 2}, sess.marked)
}

type fakeGroup struct {
	sarama.ConsumerGroup
	errs     chan error
	consumed atomic.Int32
	closed   chan struct{}
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
	g.consumed.Add(1)
	select {
	case <-ctx.Done():
		return nil
	case <-g.closed:
		return sarama.ErrClosedConsumerGroup
	}
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }

func (g *fakeGroup) Close() error {
	close(g.closed)
	close(g.errs)
	return nil
}

func TestConsumer_StartClose(t *testing.T) {
	g := &fakeGroup{errs: make(chan error, 1), closed: make(chan struct{})}
	c := newConsumer(g, []string{"ppsocket.notify"}, func(context.Context, *sarama.ConsumerMessage) error { return nil }, zap.NewNop())

	c.Start(context.Background())
	g.errs <- errors.New("transient")
	assert.Eventually(t, func() bool { return g.consumed.Load() >= 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, c.Close())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNewConsumer_RequiresTopic(t *testing.T) {
	_, err := NewConsumer(Config{Brokers: []string{"127.0.0.1:9092"}}, nil, nil)
	assert.Error(t, err)
}
