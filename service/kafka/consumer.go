package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"PPSocket/tools/errs"
	"PPSocket/tools/safe"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

type groupHandler struct {
	handle MessageHandler
	log    *zap.Logger
}

func (h *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	h.log.Info("consumer group setup", zap.String("member", s.MemberID()), zap.Int32("generation", s.GenerationID()))
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.log.Info("consumer group cleanup")
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.log.Debug("received message",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))

		func() {
			defer safe.Recover("kafka.consume")
			if err := h.handle(session.Context(), msg); err != nil {
				h.log.Error("handle message failed", zap.String("topic", msg.Topic), zap.Error(err))
			}
		}()
		session.MarkMessage(msg, "")
	}
	return nil
}

// Consumer 通知 topic 的消费组
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string
	h      *groupHandler
	log    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumer(c Config, handle MessageHandler, log *zap.Logger) (*Consumer, error) {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return nil, errs.ErrArgs.WrapMsg("kafka brokers and topic are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("kafka")

	cfg, err := BuildConfig(c)
	if err != nil {
		return nil, err
	}

	if c.AutoCreateTopic {
		admin, err := sarama.NewClusterAdmin(c.Brokers, cfg)
		if err != nil {
			return nil, errs.WrapMsg(err, "create kafka admin")
		}
		err = EnsureTopic(admin, c, log)
		_ = admin.Close()
		if err != nil {
			return nil, err
		}
	}

	group, err := sarama.NewConsumerGroup(c.Brokers, c.GroupID, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "create consumer group", "group", c.GroupID)
	}
	return newConsumer(group, []string{c.Topic}, handle, log), nil
}

func newConsumer(group sarama.ConsumerGroup, topics []string, handle MessageHandler, log *zap.Logger) *Consumer {
	return &Consumer{
		group:  group,
		topics: topics,
		h:      &groupHandler{handle: handle, log: log},
		log:    log,
	}
}

// Start 后台消费直到 Close；rebalance 后 Consume 返回，需要循环调用
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.log.Error("consumer group error", zap.Error(err))
		}
	}()
	go func() {
		defer c.wg.Done()
		defer safe.Recover("kafka.consumeLoop")
		for {
			if err := c.group.Consume(ctx, c.topics, c.h); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.Error("consume error", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	c.log.Info("kafka consumer started", zap.Strings("topics", c.topics))
}

func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.group.Close()
	c.wg.Wait()
	return err
}
