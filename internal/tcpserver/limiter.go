package tcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SessionLimitError 主机会话已满；Holders 为占用会话的远端地址
type SessionLimitError struct {
	Max     int
	Holders []string
}

func (e *SessionLimitError) Error() string {
	if len(e.Holders) == 0 {
		return fmt.Sprintf("host session limit reached: max=%d", e.Max)
	}
	return fmt.Sprintf("host session limit reached: max=%d held by %s", e.Max, strings.Join(e.Holders, ","))
}

// ConnectionLimiter 主机会话许可（信号量），记录每个许可的持有方。
// 超出上限的连接在 timeout 后被拒绝。
type ConnectionLimiter struct {
	sem           chan struct{}
	timeout       time.Duration
	maxConn       int
	rejectedCount atomic.Int64

	mu      sync.Mutex
	holders map[string]int
}

// NewConnectionLimiter 创建会话许可；maxConn <= 0 时为单会话
func NewConnectionLimiter(maxConn int, timeout time.Duration) *ConnectionLimiter {
	if maxConn <= 0 {
		maxConn = 1
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &ConnectionLimiter{
		sem:     make(chan struct{}, maxConn),
		timeout: timeout,
		maxConn: maxConn,
		holders: make(map[string]int),
	}
}

// Acquire 为 remote 获取会话许可，失败返回 *SessionLimitError
func (l *ConnectionLimiter) Acquire(ctx context.Context, remote string) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
		l.mu.Lock()
		l.holders[remote]++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		l.rejectedCount.Add(1)
		return &SessionLimitError{Max: l.maxConn, Holders: l.Holders()}
	}
}

// Release 释放 remote 持有的许可；未持有时无副作用
func (l *ConnectionLimiter) Release(remote string) {
	l.mu.Lock()
	n, ok := l.holders[remote]
	if !ok {
		l.mu.Unlock()
		return
	}
	if n <= 1 {
		delete(l.holders, remote)
	} else {
		l.holders[remote] = n - 1
	}
	l.mu.Unlock()
	<-l.sem
}

// Holders 当前持有会话的远端地址（有序）
func (l *ConnectionLimiter) Holders() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.holders))
	for remote := range l.holders {
		out = append(out, remote)
	}
	sort.Strings(out)
	return out
}

// Current 当前会话数
func (l *ConnectionLimiter) Current() int {
	return len(l.sem)
}

// MaxConnections 会话上限
func (l *ConnectionLimiter) MaxConnections() int {
	return l.maxConn
}

// RejectedCount 被拒绝的连接数（累计）
func (l *ConnectionLimiter) RejectedCount() int64 {
	return l.rejectedCount.Load()
}

// Stats 获取统计信息
func (l *ConnectionLimiter) Stats() LimiterStats {
	return LimiterStats{
		MaxConnections:    l.maxConn,
		ActiveConnections: l.Current(),
		RejectedTotal:     l.RejectedCount(),
		Holders:           l.Holders(),
	}
}

// LimiterStats 会话许可统计
type LimiterStats struct {
	MaxConnections    int      `json:"max_connections"`
	ActiveConnections int      `json:"active_connections"`
	RejectedTotal     int64    `json:"rejected_total"`
	Holders           []string `json:"holders"`
}
