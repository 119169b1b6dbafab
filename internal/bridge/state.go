package bridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/metrics"
	"github.com/taoyao-code/axbridge/internal/protocol/ax"
	"github.com/taoyao-code/axbridge/internal/regbank"
)

// State 桥接进程级共享状态，按引用传给各组件
type State struct {
	Bank    *regbank.Bank
	Mode    *ModeController
	Capture *CaptureBuffer

	// busLock 总线独占权：主机分发与 HTTP 读设备按到达顺序排队
	busLock chan struct{}
	relay   relayWatch
}

// NewState 创建共享状态；captureCap <= 0 时取最大帧长度
func NewState(bank *regbank.Bank, captureCap int, m *metrics.BridgeMetrics) *State {
	if captureCap <= 0 {
		captureCap = ax.MaxFrameSize
	}
	return &State{
		Bank: bank,
		Mode: NewModeController(func(mode Mode) {
			if m != nil {
				m.ModeGauge.Set(float64(mode))
			}
		}),
		Capture: NewCaptureBuffer(captureCap),
		busLock: make(chan struct{}, 1),
	}
}

// LockBus 获取总线独占权，ctx 结束前未获得则返回 ctx.Err()
func (s *State) LockBus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.busLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UnlockBus 释放总线独占权
func (s *State) UnlockBus() {
	select {
	case <-s.busLock:
	default:
	}
}

// relayWatch 观察 Relay 路径上的字节，收到一个完整应答帧时通知透传方
type relayWatch struct {
	mu      sync.Mutex
	decoder *ax.StreamDecoder
	done    chan struct{}
}

func (w *relayWatch) arm() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.decoder = ax.NewStreamDecoder()
	w.done = make(chan struct{})
	return w.done
}

func (w *relayWatch) disarm() {
	w.mu.Lock()
	w.decoder, w.done = nil, nil
	w.mu.Unlock()
}

func (w *relayWatch) observe(p []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.decoder == nil {
		return
	}
	if len(w.decoder.Feed(p)) > 0 {
		close(w.done)
		w.decoder, w.done = nil, nil
	}
}

// BridgeID 桥接设备自身的总线地址（只读寄存器）
func (s *State) BridgeID() byte {
	return s.Bank.Byte(regbank.AddrBridgeID)
}

// ticks 将寄存器中的 tick 数换算为时长
func (s *State) ticks(addr int, tick time.Duration) time.Duration {
	return time.Duration(s.Bank.Byte(addr)) * tick
}

// Options 组件公共依赖
type Options struct {
	Clock Clock
	// Tick 超时寄存器的计时单位
	Tick time.Duration
	// FlushThreshold 主机侧累计多少字节后主动提交
	FlushThreshold int
	Logger         *zap.Logger
	Metrics        *metrics.BridgeMetrics
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Tick <= 0 {
		o.Tick = time.Millisecond
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = 64
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
