package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taoyao-code/axbridge/internal/metrics"
)

// NewMetrics 创建自定义 Registry 并注册桥接指标
func NewMetrics() (*prometheus.Registry, *metrics.BridgeMetrics) {
	reg := metrics.NewRegistry()
	return reg, metrics.NewBridgeMetrics(reg)
}
