package bridge

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/regbank"
)

// Bridge 组装共享状态与各引擎，并提供总线接收路径
type Bridge struct {
	State      *State
	Tx         *Transactor
	Sync       *SyncReader
	Dispatcher *Dispatcher

	host Host
	opts Options
}

// New 创建桥接器；captureCap <= 0 时取最大帧长度
func New(bank *regbank.Bank, bus Bus, host Host, captureCap int, opts Options) *Bridge {
	opts = opts.withDefaults()
	state := NewState(bank, captureCap, opts.Metrics)
	tx := NewTransactor(state, bus, opts)
	sr := NewSyncReader(state, tx, host, opts)
	return &Bridge{
		State:      state,
		Tx:         tx,
		Sync:       sr,
		Dispatcher: NewDispatcher(state, tx, sr, bus, host, opts),
		host:       host,
		opts:       opts,
	}
}

// OnBusBytes 总线字节到达回调（接收 goroutine 调用）。
// Relay 时原样转发主机；Divert 时写入捕获缓冲，溢出丢弃。
func (b *Bridge) OnBusBytes(p []byte) {
	if len(p) == 0 {
		return
	}
	m := b.opts.Metrics
	if b.State.Mode.Mode() == ModeDivert {
		if n := b.State.Capture.Append(p); n < len(p) && m != nil {
			m.CaptureDroppedTotal.Add(float64(len(p) - n))
		}
		return
	}
	b.State.relay.observe(p)
	if _, err := b.host.Write(p); err != nil {
		b.opts.Logger.Debug("relay to host failed", zap.Int("bytes", len(p)), zap.Error(err))
		return
	}
	if err := b.host.Flush(); err != nil {
		b.opts.Logger.Debug("relay flush failed", zap.Error(err))
		return
	}
	if m != nil {
		m.RelayBytesTotal.Add(float64(len(p)))
	}
}

// Serve 处理主机字节流直至 ctx 结束或 r 返回 EOF
func (b *Bridge) Serve(ctx context.Context, r io.Reader) error {
	return b.Dispatcher.Serve(ctx, r)
}

// Mode 当前模式
func (b *Bridge) Mode() Mode { return b.State.Mode.Mode() }

// ModeName 当前模式名称
func (b *Bridge) ModeName() string { return b.Mode().String() }
