package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/protocol/ax"
	"github.com/taoyao-code/axbridge/internal/regbank"
)

var (
	ErrTimeout         = errors.New("bus transaction timeout")
	ErrChecksum        = errors.New("bus response checksum mismatch")
	ErrRequestTooLarge = errors.New("bus response exceeds capture capacity")
)

// Transactor 总线事务引擎：单次读请求 + 有界等待应答
type Transactor struct {
	state *State
	bus   Bus
	opts  Options
}

// NewTransactor 创建事务引擎
func NewTransactor(state *State, bus Bus, opts Options) *Transactor {
	return &Transactor{state: state, bus: bus, opts: opts.withDefaults()}
}

// ReadRemote 读取远端设备 [addr, addr+count) 并返回参数区。
// 期间模式处于 Divert，返回前无条件恢复 Relay。不重试。
func (t *Transactor) ReadRemote(ctx context.Context, id, addr, count byte) ([]byte, error) {
	raw, err := t.ReadRemoteFrame(ctx, id, addr, count)
	if err != nil {
		return nil, err
	}
	return ax.Payload(raw), nil
}

// ReadRemoteFrame 同 ReadRemote，但返回完整应答帧。
// 总线被占用时排队等待，直到 ctx 结束。
func (t *Transactor) ReadRemoteFrame(ctx context.Context, id, addr, count byte) ([]byte, error) {
	if err := t.state.LockBus(ctx); err != nil {
		return nil, err
	}
	defer t.state.UnlockBus()
	if err := t.state.Mode.Acquire(); err != nil {
		return nil, err
	}
	defer t.state.Mode.Release()
	return t.transact(ctx, id, addr, count)
}

// transact 执行一次事务，调用方须已持有 Divert
func (t *Transactor) transact(ctx context.Context, id, addr, count byte) ([]byte, error) {
	start := t.opts.Clock.Now()
	raw, err := t.exchange(ctx, id, addr, count)
	t.record(err, start)
	if err != nil {
		t.opts.Logger.Debug("bus read failed",
			zap.Uint8("id", id),
			zap.Uint8("addr", addr),
			zap.Uint8("count", count),
			zap.Error(err))
	}
	return raw, err
}

func (t *Transactor) exchange(ctx context.Context, id, addr, count byte) ([]byte, error) {
	want := ax.ResponseSize(int(count))
	if want > t.state.Capture.Cap() {
		return nil, ErrRequestTooLarge
	}

	// 事务边界：丢弃上一次迟到的字节
	t.state.Capture.Reset()

	if err := t.bus.SetDirection(DirectionTransmit); err != nil {
		return nil, fmt.Errorf("bus direction transmit: %w", err)
	}
	if _, err := t.bus.Write(ax.EncodeReadCommand(id, addr, count)); err != nil {
		_ = t.bus.SetDirection(DirectionReceive)
		return nil, fmt.Errorf("bus write: %w", err)
	}
	if err := t.bus.SetDirection(DirectionReceive); err != nil {
		return nil, fmt.Errorf("bus direction receive: %w", err)
	}

	if err := t.await(ctx, want); err != nil {
		return nil, err
	}
	raw := t.state.Capture.Snapshot(want)
	if !ax.Validate(raw) {
		return nil, ErrChecksum
	}
	return raw, nil
}

// await 等待捕获缓冲达到 want 字节，截止时间由超时寄存器决定
func (t *Transactor) await(ctx context.Context, want int) error {
	if t.state.Capture.Len() >= want {
		return nil
	}
	expired := t.opts.Clock.After(t.Timeout())
	for t.state.Capture.Len() < want {
		select {
		case <-t.state.Capture.Notify():
		case <-expired:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Timeout 当前事务超时：寄存器 tick 数 × tick
func (t *Transactor) Timeout() time.Duration {
	return t.state.ticks(regbank.AddrBusTimeout, t.opts.Tick)
}

func (t *Transactor) record(err error, start time.Time) {
	m := t.opts.Metrics
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout):
		result = "timeout"
	case errors.Is(err, ErrChecksum):
		result = "checksum"
	default:
		result = "error"
	}
	m.BusTransactionTotal.WithLabelValues(result).Inc()
	m.BusTransactionSeconds.Observe(t.opts.Clock.Now().Sub(start).Seconds())
}
