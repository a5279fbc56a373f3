package natsx

import (
	"context"

	"PPSocket/tools/errs"

	"go.uber.org/zap"
)

// NatsxMessage 统一消息对象
type NatsxMessage struct {
	Subject string
	Reply   string // request/reply 时的回复地址
	Data    []byte
	Header  map[string]string
}

// NatsxHandler 业务处理函数
type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

// NatsxMiddleware 中间件（日志、指标、重试等）
type NatsxMiddleware func(NatsxHandler) NatsxHandler

// NatsxChain 组合中间件
func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NatsxRecover 回调里的 panic 转成 error 并记日志，订阅不会因此中断
func NatsxRecover(log *zap.Logger) NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errs.ErrPanic(r)
					log.Error("nats handler panic", zap.String("subject", msg.Subject), zap.Any("panic", r), zap.Stack("stack"))
				}
			}()
			return next(ctx, msg)
		}
	}
}

// NatsxLogErrors handler 返回错误时记日志
func NatsxLogErrors(log *zap.Logger) NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) error {
			err := next(ctx, msg)
			if err != nil {
				log.Warn("nats handler failed", zap.String("subject", msg.Subject), zap.Error(err))
			}
			return err
		}
	}
}
