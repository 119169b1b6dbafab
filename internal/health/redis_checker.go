package health

import (
	"context"
	"fmt"
	"time"
)

// RegisterStoreStats 寄存器持久化存储的状态来源
type RegisterStoreStats interface {
	HealthCheck(ctx context.Context) error
	Key() string
	Count(ctx context.Context) (int64, error)
	PoolTimeouts() uint32
}

// RedisChecker 寄存器持久化检查：不可达时写入仍生效但不会保存
type RedisChecker struct {
	store        RegisterStoreStats
	lastTimeouts uint32
}

// NewRedisChecker 创建持久化检查器
func NewRedisChecker(store RegisterStoreStats) *RedisChecker {
	return &RedisChecker{store: store}
}

func (c *RedisChecker) Name() string { return "redis" }

// Check 连接失败为 Unhealthy；读不到已保存寄存器或连接池新增超时为 Degraded
func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := map[string]interface{}{"key": c.store.Key()}

	if err := c.store.HealthCheck(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("register writes not persisted: %v", err),
			Details: details,
			Latency: time.Since(start),
		}
	}

	status := StatusHealthy
	message := "ok"

	n, err := c.store.Count(ctx)
	if err != nil {
		status = StatusDegraded
		message = fmt.Sprintf("read persisted registers: %v", err)
	} else {
		details["persisted_registers"] = n
	}

	timeouts := c.store.PoolTimeouts()
	details["pool_timeouts"] = timeouts
	if timeouts > c.lastTimeouts && status == StatusHealthy {
		status = StatusDegraded
		message = fmt.Sprintf("%d new pool timeouts", timeouts-c.lastTimeouts)
	}
	c.lastTimeouts = timeouts

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
