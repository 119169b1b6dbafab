package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// BridgeMetrics 桥接业务指标
type BridgeMetrics struct {
	BusTransactionTotal   *prometheus.CounterVec // labels: result=ok|timeout|checksum|error
	BusTransactionSeconds prometheus.Histogram
	SyncReadTotal         prometheus.Counter
	SyncReadDeviceTotal   *prometheus.CounterVec // labels: result=ok|sentinel
	HostFrameTotal        *prometheus.CounterVec // labels: route=local|sync_read|remote_read|passthrough|invalid
	RelayBytesTotal       prometheus.Counter
	CaptureDroppedTotal   prometheus.Counter
	ModeGauge             prometheus.Gauge // 0=relay 1=divert
	HostSessionTotal      prometheus.Counter
}

// NewBridgeMetrics 注册并返回桥接指标
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		BusTransactionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "axb_bus_transactions_total",
			Help: "Bus read transactions by result.",
		}, []string{"result"}),
		BusTransactionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "axb_bus_transaction_seconds",
			Help:    "Bus read transaction latency.",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25},
		}),
		SyncReadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axb_sync_read_total",
			Help: "Sync-read batches served.",
		}),
		SyncReadDeviceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "axb_sync_read_devices_total",
			Help: "Per-device slices in sync-read batches by result.",
		}, []string{"result"}),
		HostFrameTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "axb_host_frames_total",
			Help: "Frames received from the host by route.",
		}, []string{"route"}),
		RelayBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axb_relay_bytes_total",
			Help: "Bus bytes relayed to the host.",
		}),
		CaptureDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axb_capture_dropped_bytes_total",
			Help: "Bus bytes dropped because the capture buffer was full.",
		}),
		ModeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "axb_mode",
			Help: "Current bridge mode (0 relay, 1 divert).",
		}),
		HostSessionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axb_host_sessions_total",
			Help: "Host sessions attached (tcp host transport).",
		}),
	}
	reg.MustRegister(
		m.BusTransactionTotal,
		m.BusTransactionSeconds,
		m.SyncReadTotal,
		m.SyncReadDeviceTotal,
		m.HostFrameTotal,
		m.RelayBytesTotal,
		m.CaptureDroppedTotal,
		m.ModeGauge,
		m.HostSessionTotal,
	)
	return m
}
