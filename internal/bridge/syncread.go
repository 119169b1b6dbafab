package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/protocol/ax"
)

// ErrInvalidBatch 批量读参数非法（长度为0、无设备、超出单帧长度）
var ErrInvalidBatch = errors.New("invalid sync-read batch")

// SyncReader 批量读引擎：逐个设备读取，合成一帧状态应答流式发给主机
type SyncReader struct {
	state *State
	tx    *Transactor
	host  Host
	opts  Options
}

// NewSyncReader 创建批量读引擎
func NewSyncReader(state *State, tx *Transactor, host Host, opts Options) *SyncReader {
	return &SyncReader{state: state, tx: tx, host: host, opts: opts.withDefaults()}
}

// SyncRead 按 ids 顺序读取每个设备 [addr, addr+count)。
// 头部先于设备数据发出；失败设备的分片以 0xFF 填充，不影响帧长度。
// 期间保持 Divert，任何返回路径都恢复 Relay。
func (s *SyncReader) SyncRead(ctx context.Context, addr, count byte, ids []byte) error {
	if err := s.check(count, ids); err != nil {
		return err
	}
	if err := s.state.LockBus(ctx); err != nil {
		return err
	}
	defer s.state.UnlockBus()
	if err := s.state.Mode.Acquire(); err != nil {
		return err
	}
	defer s.state.Mode.Release()

	if m := s.opts.Metrics; m != nil {
		m.SyncReadTotal.Inc()
	}

	out := &streamer{host: s.host, threshold: s.opts.FlushThreshold}
	var sum ax.Accumulator

	length := byte(2 + int(count)*len(ids))
	out.put(ax.HeaderByte, ax.HeaderByte)
	for _, b := range []byte{s.state.BridgeID(), length, ax.StatusNone} {
		out.put(b)
		sum.Add(b)
	}

	failed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync read aborted: %w", err)
		}
		if out.err != nil {
			break
		}
		data := s.readDevice(ctx, id, addr, count)
		if data == nil {
			failed++
			data = sentinel(int(count))
		}
		out.put(data...)
		sum.Add(data...)
	}
	out.put(sum.Checksum())
	if err := out.flush(); err != nil {
		return fmt.Errorf("sync read host write: %w", err)
	}

	s.opts.Logger.Debug("sync read done",
		zap.Uint8("addr", addr),
		zap.Uint8("count", count),
		zap.Int("devices", len(ids)),
		zap.Int("failed", failed))
	return nil
}

func (s *SyncReader) check(count byte, ids []byte) error {
	switch {
	case count == 0:
		return fmt.Errorf("%w: zero count", ErrInvalidBatch)
	case len(ids) == 0:
		return fmt.Errorf("%w: no devices", ErrInvalidBatch)
	case 2+int(count)*len(ids) > 0xFF:
		return fmt.Errorf("%w: %d devices x %d bytes exceed one frame", ErrInvalidBatch, len(ids), count)
	case ax.ResponseSize(int(count)) > s.state.Capture.Cap():
		return fmt.Errorf("%w: count %d exceeds capture capacity", ErrInvalidBatch, count)
	}
	return nil
}

// readDevice 返回设备参数区，失败返回 nil
func (s *SyncReader) readDevice(ctx context.Context, id, addr, count byte) []byte {
	raw, err := s.tx.transact(ctx, id, addr, count)
	m := s.opts.Metrics
	if err != nil {
		if m != nil {
			m.SyncReadDeviceTotal.WithLabelValues("sentinel").Inc()
		}
		return nil
	}
	if m != nil {
		m.SyncReadDeviceTotal.WithLabelValues("ok").Inc()
	}
	return ax.Payload(raw)
}

func sentinel(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ax.SentinelByte
	}
	return b
}

// streamer 逐字节发送，累计到阈值时主动提交，首个错误后停止写入
type streamer struct {
	host      Host
	threshold int
	pending   int
	err       error
}

func (w *streamer) put(b ...byte) {
	for _, v := range b {
		if w.err != nil {
			return
		}
		if w.err = w.host.SendByte(v); w.err != nil {
			return
		}
		w.pending++
		if w.pending >= w.threshold {
			w.err = w.host.Flush()
			w.pending = 0
		}
	}
}

func (w *streamer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.host.Flush()
}
