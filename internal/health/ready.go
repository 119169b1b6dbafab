package health

import "sync/atomic"

// Readiness 就绪状态：总线与主机传输均已打开
type Readiness struct {
	busReady  atomic.Bool
	hostReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetBusReady(v bool)  { r.busReady.Store(v) }
func (r *Readiness) SetHostReady(v bool) { r.hostReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.busReady.Load() && r.hostReady.Load()
}
