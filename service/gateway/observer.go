package gateway

// Observer 网关指标埋点，service/metrics 提供 Prometheus 实现
type Observer interface {
	ConnOpened()
	ConnClosed()
	Handshake(outcome string)
	Event(outcome string)
	Notify(mode string)
	StoreError(op string)
}

// handshake / event 结果
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeBlocked     = "blocked"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

type nopObserver struct{}

func (nopObserver) ConnOpened()       {}
func (nopObserver) ConnClosed()       {}
func (nopObserver) Handshake(string)  {}
func (nopObserver) Event(string)      {}
func (nopObserver) Notify(string)     {}
func (nopObserver) StoreError(string) {}
