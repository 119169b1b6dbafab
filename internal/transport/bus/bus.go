// Package bus 半双工舵机总线的串口实现（RS-485 收发方向由 RTS 控制）
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/bridge"
)

// Port go.bug.st/serial.Port 中总线用到的部分
type Port interface {
	io.ReadWriteCloser
	Drain() error
	SetRTS(rts bool) error
	SetReadTimeout(t time.Duration) error
}

// Config 总线串口配置
type Config struct {
	Port     string
	BaudRate int
	// ReadChunk 单次读取的最大字节数
	ReadChunk int
	// ReadTimeout 串口读超时，超时后读循环检查 ctx
	ReadTimeout time.Duration
	// RTSTransmitHigh 发送方向时 RTS 为高电平
	RTSTransmitHigh bool
	// Drain 切回接收前等待发送缓冲排空
	Drain bool
}

// SerialBus 实现 bridge.Bus，并运行总线接收循环
type SerialBus struct {
	port   Port
	cfg    Config
	logger *zap.Logger

	mu  sync.Mutex
	dir bridge.Direction

	running   atomic.Bool
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64
	lastRead  atomic.Int64
	lastErrMu sync.Mutex
	lastErr   error
}

// Open 打开串口（8N1）并创建总线
func Open(cfg Config, logger *zap.Logger) (*SerialBus, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("bus: open %s: %w", cfg.Port, err)
	}
	b, err := New(port, cfg, logger)
	if err != nil {
		port.Close()
		return nil, err
	}
	return b, nil
}

// New 基于已打开的端口创建总线，初始为接收方向
func New(port Port, cfg Config, logger *zap.Logger) (*SerialBus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReadChunk <= 0 {
		cfg.ReadChunk = 64
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	b := &SerialBus{port: port, cfg: cfg, logger: logger}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		return nil, fmt.Errorf("bus: set read timeout: %w", err)
	}
	if err := b.SetDirection(bridge.DirectionReceive); err != nil {
		return nil, err
	}
	return b, nil
}

// SetDirection 切换收发方向
func (b *SerialBus) SetDirection(d bridge.Direction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d == bridge.DirectionReceive && b.dir == bridge.DirectionTransmit && b.cfg.Drain {
		if err := b.port.Drain(); err != nil {
			return fmt.Errorf("bus: drain: %w", err)
		}
	}
	level := b.cfg.RTSTransmitHigh
	if d == bridge.DirectionReceive {
		level = !level
	}
	if err := b.port.SetRTS(level); err != nil {
		return fmt.Errorf("bus: set rts: %w", err)
	}
	b.dir = d
	return nil
}

// Direction 当前方向
func (b *SerialBus) Direction() bridge.Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dir
}

func (b *SerialBus) Write(p []byte) (int, error) {
	n, err := b.port.Write(p)
	b.bytesOut.Add(uint64(n))
	if err != nil {
		b.setErr(err)
		return n, fmt.Errorf("bus: write: %w", err)
	}
	return n, nil
}

// Serve 接收循环：每次读到的字节交给 onBytes，直到 ctx 结束或端口出错
func (b *SerialBus) Serve(ctx context.Context, onBytes func([]byte)) error {
	b.running.Store(true)
	defer b.running.Store(false)

	buf := make([]byte, b.cfg.ReadChunk)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := b.port.Read(buf)
		if n > 0 {
			b.bytesIn.Add(uint64(n))
			b.lastRead.Store(time.Now().UnixNano())
			onBytes(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			b.setErr(err)
			b.logger.Error("bus read failed", zap.String("port", b.cfg.Port), zap.Error(err))
			return fmt.Errorf("bus: read: %w", err)
		}
	}
}

// Close 关闭串口，Serve 随之返回
func (b *SerialBus) Close() error {
	return b.port.Close()
}

// Stats 总线运行统计
type Stats struct {
	Running  bool
	BytesIn  uint64
	BytesOut uint64
	LastRead time.Time
	LastErr  error
}

// Stats 返回当前统计
func (b *SerialBus) Stats() Stats {
	s := Stats{
		Running:  b.running.Load(),
		BytesIn:  b.bytesIn.Load(),
		BytesOut: b.bytesOut.Load(),
	}
	if ns := b.lastRead.Load(); ns > 0 {
		s.LastRead = time.Unix(0, ns)
	}
	b.lastErrMu.Lock()
	s.LastErr = b.lastErr
	b.lastErrMu.Unlock()
	return s
}

func (b *SerialBus) setErr(err error) {
	b.lastErrMu.Lock()
	b.lastErr = err
	b.lastErrMu.Unlock()
}
