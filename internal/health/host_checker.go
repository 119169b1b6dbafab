package health

import (
	"context"
	"time"

	"github.com/taoyao-code/axbridge/internal/tcpserver"
)

// HostWriterStats 主机发送缓冲统计
type HostWriterStats interface {
	Pending() int
	Commits() int
}

// HostChecker 主机传输健康检查器
type HostChecker struct {
	kind    string
	running func() bool
	writer  HostWriterStats
	tcp     *tcpserver.Server
}

// NewHostChecker 创建主机检查器；tcp 仅在 TCP 接入时传入
func NewHostChecker(kind string, running func() bool, writer HostWriterStats, tcp *tcpserver.Server) *HostChecker {
	return &HostChecker{kind: kind, running: running, writer: writer, tcp: tcp}
}

func (c *HostChecker) Name() string { return "host" }

// Check 处理循环停止为 Unhealthy；TCP 接入无主机连接为 Degraded
func (c *HostChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	details := map[string]interface{}{
		"kind": c.kind,
	}
	if c.writer != nil {
		details["pending_bytes"] = c.writer.Pending()
		details["commits"] = c.writer.Commits()
	}

	status := StatusHealthy
	message := "ok"

	if c.tcp != nil {
		stats := c.tcp.GetLimiterStats()
		details["active_connections"] = stats.ActiveConnections
		details["max_connections"] = stats.MaxConnections
		details["rejected_total"] = stats.RejectedTotal
		details["holders"] = stats.Holders
		details["rate_rejected_total"] = c.tcp.GetRateLimiterStats().RejectedTotal
		if stats.ActiveConnections == 0 {
			status = StatusDegraded
			message = "no host connected"
		}
	}

	if c.running != nil && !c.running() {
		status = StatusUnhealthy
		message = "host loop stopped"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
