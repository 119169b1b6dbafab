package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/axbridge/internal/transport/bus"
)

// BusStatsSource 提供总线运行统计
type BusStatsSource interface {
	Stats() bus.Stats
}

// ModeSource 提供桥接模式（relay / divert）
type ModeSource interface {
	ModeName() string
}

// BusChecker 舵机总线健康检查器
type BusChecker struct {
	bus  BusStatsSource
	mode ModeSource
}

// NewBusChecker 创建总线检查器；mode 可为 nil
func NewBusChecker(b BusStatsSource, mode ModeSource) *BusChecker {
	return &BusChecker{bus: b, mode: mode}
}

func (c *BusChecker) Name() string { return "bus" }

// Check 接收循环停止为 Unhealthy；仍在运行但出现过写错误为 Degraded
func (c *BusChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	s := c.bus.Stats()

	details := map[string]interface{}{
		"running":   s.Running,
		"bytes_in":  s.BytesIn,
		"bytes_out": s.BytesOut,
	}
	if !s.LastRead.IsZero() {
		details["last_read_ago"] = time.Since(s.LastRead).String()
	}
	if c.mode != nil {
		details["mode"] = c.mode.ModeName()
	}

	status := StatusHealthy
	message := "ok"
	switch {
	case !s.Running:
		status = StatusUnhealthy
		message = "bus reader stopped"
		if s.LastErr != nil {
			message = fmt.Sprintf("bus reader stopped: %v", s.LastErr)
		}
	case s.LastErr != nil:
		status = StatusDegraded
		message = fmt.Sprintf("last bus error: %v", s.LastErr)
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
