package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/api/middleware"
)

// RegisterRoutes 注册运维接口；写入与总线读需要认证
func RegisterRoutes(r *gin.Engine, h *RegistersHandler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r.GET("/registers", h.List)

	protected := r.Group("/")
	protected.Use(middleware.APIKeyAuth(authCfg, logger))
	if !authCfg.Enabled {
		logger.Warn("api authentication disabled - only for development!")
	}
	protected.PUT("/registers/:addr", h.Write)
	protected.GET("/bus/devices/:id/registers", h.ReadDevice)
}
