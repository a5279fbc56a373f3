package kafka

import (
	"context"

	"PPSocket/service/gateway"
	"PPSocket/tools/decode"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// MessageHandler 返回错误只记日志，消息照常提交
type MessageHandler func(ctx context.Context, msg *sarama.ConsumerMessage) error

type Notifier interface {
	Notify(ctx context.Context, m gateway.CastMessage)
}

// NotifyHandler 消息体是 JSON 格式的 CastMessage，解析失败直接跳过
func NotifyHandler(n Notifier, log *zap.Logger) MessageHandler {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		m, err := decode.JSON[gateway.CastMessage](msg.Value)
		if err != nil {
			log.Warn("skip malformed notify message",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}
		n.Notify(ctx, *m)
		return nil
	}
}
