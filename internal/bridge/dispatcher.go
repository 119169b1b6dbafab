package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/protocol/ax"
	"github.com/taoyao-code/axbridge/internal/regbank"
)

// 路由标签
const (
	routeLocal       = "local"
	routeSyncRead    = "sync_read"
	routeRemoteRead  = "remote_read"
	routePassthrough = "passthrough"
	routeInvalid     = "invalid"
)

// Dispatcher 主机命令分发：本地寄存器、批量读、单设备读或透传总线
type Dispatcher struct {
	state *State
	tx    *Transactor
	sync  *SyncReader
	bus   Bus
	host  Host
	opts  Options

	decoder  *ax.StreamDecoder
	dropped  int
	lastFeed time.Time
}

// NewDispatcher 创建分发器
func NewDispatcher(state *State, tx *Transactor, sr *SyncReader, bus Bus, host Host, opts Options) *Dispatcher {
	return &Dispatcher{
		state:   state,
		tx:      tx,
		sync:    sr,
		bus:     bus,
		host:    host,
		opts:    opts.withDefaults(),
		decoder: ax.NewStreamDecoder(),
	}
}

// Serve 从 r 读取主机字节并逐帧处理。
// 读超时（0 字节或超时错误）时检查 ctx 后继续；EOF 正常返回。
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 512)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := d.Feed(ctx, buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var ne net.Error
			if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return fmt.Errorf("host read: %w", err)
		}
	}
}

// Feed 处理一段主机字节；仅主机写失败或 ctx 结束时返回错误
func (d *Dispatcher) Feed(ctx context.Context, p []byte) error {
	now := d.opts.Clock.Now()
	if d.decoder.Buffered() > 0 && !d.lastFeed.IsZero() && now.Sub(d.lastFeed) > d.FrameTimeout() {
		d.opts.Logger.Debug("discard stale host bytes", zap.Int("bytes", d.decoder.Buffered()))
		d.decoder.Reset()
	}
	d.lastFeed = now

	frames := d.decoder.Feed(p)
	if dropped := d.decoder.Dropped(); dropped > d.dropped {
		d.count(routeInvalid, dropped-d.dropped)
		d.dropped = dropped
	}
	for _, f := range frames {
		if err := d.Handle(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// FrameTimeout 主机半包超时：寄存器 tick 数 × tick
func (d *Dispatcher) FrameTimeout() time.Duration {
	return d.state.ticks(regbank.AddrHostFrameTimeout, d.opts.Tick)
}

// Handle 路由单帧
func (d *Dispatcher) Handle(ctx context.Context, f *ax.Frame) error {
	switch {
	case f.ID == d.state.BridgeID():
		d.count(routeLocal, 1)
		return d.handleLocal(f)
	case f.IsBroadcast() && f.Code == ax.InstSyncRead:
		d.count(routeSyncRead, 1)
		return d.handleSyncRead(ctx, f)
	case !f.IsBroadcast() && f.Code == ax.InstReadData && len(f.Params) == 2:
		d.count(routeRemoteRead, 1)
		return d.handleRemoteRead(ctx, f)
	default:
		d.count(routePassthrough, 1)
		return d.passthrough(ctx, f)
	}
}

func (d *Dispatcher) handleLocal(f *ax.Frame) error {
	switch f.Code {
	case ax.InstPing:
		return d.reply(ax.StatusNone, nil)

	case ax.InstReadData:
		if len(f.Params) != 2 {
			return d.reply(ax.StatusInstruction, nil)
		}
		data, err := d.state.Bank.Read(int(f.Params[0]), int(f.Params[1]))
		if err != nil {
			return d.replyErr(err)
		}
		return d.reply(ax.StatusNone, data)

	case ax.InstWriteData:
		if len(f.Params) < 1 {
			return d.reply(ax.StatusInstruction, nil)
		}
		if err := d.state.Bank.Write(int(f.Params[0]), f.Params[1:]); err != nil {
			return d.replyErr(err)
		}
		d.opts.Logger.Info("local registers written",
			zap.Uint8("addr", f.Params[0]),
			zap.Binary("data", f.Params[1:]))
		return d.reply(ax.StatusNone, nil)

	default:
		return d.reply(ax.StatusInstruction, nil)
	}
}

func (d *Dispatcher) handleSyncRead(ctx context.Context, f *ax.Frame) error {
	if len(f.Params) < 2 {
		return d.reply(ax.StatusInstruction, nil)
	}
	err := d.sync.SyncRead(ctx, f.Params[0], f.Params[1], f.Params[2:])
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidBatch):
		d.opts.Logger.Debug("reject sync read", zap.Error(err))
		return d.reply(ax.StatusRange, nil)
	case errors.Is(err, ErrModeBusy):
		// 与主机自身无关的占用，按读失败处理，不转发任何数据
		d.opts.Logger.Warn("sync read skipped, bus diverted", zap.Error(err))
		return nil
	default:
		return err
	}
}

// handleRemoteRead 单设备读：校验通过的应答帧原样转发，失败时不转发任何数据
func (d *Dispatcher) handleRemoteRead(ctx context.Context, f *ax.Frame) error {
	raw, err := d.tx.ReadRemoteFrame(ctx, f.ID, f.Params[0], f.Params[1])
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return nil
	}
	if _, err := d.host.Write(raw); err != nil {
		return fmt.Errorf("host write: %w", err)
	}
	return d.host.Flush()
}

// passthrough 其余帧原样发往总线，应答经 Relay 路径返回主机。
// 非广播帧在应答到达或总线超时前不让出总线。
func (d *Dispatcher) passthrough(ctx context.Context, f *ax.Frame) error {
	raw, err := f.Bytes()
	if err != nil {
		return nil
	}
	if err := d.state.LockBus(ctx); err != nil {
		return err
	}
	defer d.state.UnlockBus()

	var replied <-chan struct{}
	if !f.IsBroadcast() {
		replied = d.state.relay.arm()
		defer d.state.relay.disarm()
	}

	if err := d.bus.SetDirection(DirectionTransmit); err != nil {
		d.opts.Logger.Warn("bus direction transmit failed", zap.Error(err))
		return nil
	}
	_, werr := d.bus.Write(raw)
	if werr != nil {
		d.opts.Logger.Warn("bus passthrough write failed", zap.Uint8("id", f.ID), zap.Error(werr))
	}
	if err := d.bus.SetDirection(DirectionReceive); err != nil {
		d.opts.Logger.Warn("bus direction receive failed", zap.Error(err))
		return nil
	}
	if werr != nil || replied == nil {
		return nil
	}

	select {
	case <-replied:
	case <-d.opts.Clock.After(d.tx.Timeout()):
		d.opts.Logger.Debug("no passthrough reply", zap.Uint8("id", f.ID), zap.Uint8("code", f.Code))
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (d *Dispatcher) replyErr(err error) error {
	if regbank.IsRangeError(err) {
		d.opts.Logger.Debug("local register access rejected", zap.Error(err))
		return d.reply(ax.StatusRange, nil)
	}
	return err
}

func (d *Dispatcher) reply(status byte, payload []byte) error {
	raw, err := ax.EncodeStatus(d.state.BridgeID(), status, payload)
	if err != nil {
		return err
	}
	if _, err := d.host.Write(raw); err != nil {
		return fmt.Errorf("host write: %w", err)
	}
	return d.host.Flush()
}

func (d *Dispatcher) count(route string, n int) {
	if m := d.opts.Metrics; m != nil {
		m.HostFrameTotal.WithLabelValues(route).Add(float64(n))
	}
}
