package app

import (
	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/axbridge/internal/bridge"
	"github.com/taoyao-code/axbridge/internal/health"
	"github.com/taoyao-code/axbridge/internal/transport/bus"
)

// NewHealthAggregator 创建健康检查聚合器（总线、主机）
func NewHealthAggregator(b *bus.SerialBus, br *bridge.Bridge, ht *HostTransport) *health.Aggregator {
	return health.NewAggregator(
		health.NewBusChecker(b, br),
		health.NewHostChecker(ht.Kind, ht.Running, ht.Writer, ht.TCP),
	)
}

// HealthRoutes 健康检查路由注册函数
func HealthRoutes(agg *health.Aggregator) func(r *gin.Engine) {
	return func(r *gin.Engine) { health.RegisterHTTPRoutes(r, agg) }
}
