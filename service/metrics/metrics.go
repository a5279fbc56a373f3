package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 网关指标，实现 gateway.Observer
type Collector struct {
	connections prometheus.Gauge
	handshakes  *prometheus.CounterVec
	events      *prometheus.CounterVec
	notifies    *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ppsocket_connections",
			Help: "当前本节点已鉴权的连接数",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppsocket_handshakes_total",
			Help: "握手次数，按结果分类",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppsocket_events_total",
			Help: "客户端事件数，按结果分类",
		}, []string{"outcome"}),
		notifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppsocket_notifications_total",
			Help: "服务端通知数，按方式分类",
		}, []string{"mode"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppsocket_presence_store_errors_total",
			Help: "presence 存储失败次数，按操作分类",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.connections,
		c.handshakes,
		c.events,
		c.notifies,
		c.storeErrors,
	)
	return c
}

func (c *Collector) ConnOpened()              { c.connections.Inc() }
func (c *Collector) ConnClosed()              { c.connections.Dec() }
func (c *Collector) Handshake(outcome string) { c.handshakes.WithLabelValues(outcome).Inc() }
func (c *Collector) Event(outcome string)     { c.events.WithLabelValues(outcome).Inc() }
func (c *Collector) Notify(mode string)       { c.notifies.WithLabelValues(mode).Inc() }
func (c *Collector) StoreError(op string)     { c.storeErrors.WithLabelValues(op).Inc() }

// Handler Prometheus 抓取入口
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
