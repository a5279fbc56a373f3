package socket

import (
	"net/http"
	"time"
)

type Options struct {
	HandshakeTimeout time.Duration // 首帧（connect）最长等待
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	SendQueue        int   // 每连接发送队列长度，满了断开
	MaxMessageBytes  int64 // 单帧上限
	EventRate        float64
	EventBurst       int
	CheckOrigin      func(r *http.Request) bool

	// ErrorAck 限流/panic 时给客户端的 ack 内容，nil 则不回
	ErrorAck func(err error) any
}

func (o *Options) norm() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = o.PingInterval * 2
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
	if o.EventRate > 0 && o.EventBurst <= 0 {
		o.EventBurst = 1
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(r *http.Request) bool { return true }
	}
}
