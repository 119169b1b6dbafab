package regbank

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Persister 读写区持久化钩子
type Persister interface {
	// Load 返回已保存的读写区取值（地址 -> 值），无保存数据时返回空
	Load(ctx context.Context) (map[int]byte, error)
	// Persist 保存一次成功写入的字节
	Persist(ctx context.Context, addr int, data []byte) error
}

// Bank 固定大小的寄存器存储
type Bank struct {
	mu     sync.RWMutex
	layout Layout
	regs   []byte

	persister      Persister
	persistTimeout time.Duration
	logger         *zap.Logger
}

// Option 构造选项
type Option func(*Bank)

// WithPersister 设置持久化钩子
func WithPersister(p Persister) Option {
	return func(b *Bank) { b.persister = p }
}

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(b *Bank) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPersistTimeout 设置单次持久化超时
func WithPersistTimeout(d time.Duration) Option {
	return func(b *Bank) {
		if d > 0 {
			b.persistTimeout = d
		}
	}
}

// New 创建寄存器存储，initial 长度必须等于布局大小
func New(layout Layout, initial []byte, opts ...Option) (*Bank, error) {
	if layout.Size <= 0 || layout.StartRW < 0 || layout.StartRW > layout.Size {
		return nil, fmt.Errorf("regbank: invalid layout size=%d startRW=%d", layout.Size, layout.StartRW)
	}
	if len(initial) != layout.Size {
		return nil, fmt.Errorf("regbank: initial values len %d != size %d", len(initial), layout.Size)
	}
	b := &Bank{
		layout:         layout,
		regs:           append([]byte(nil), initial...),
		persistTimeout: 2 * time.Second,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Size 寄存器总数
func (b *Bank) Size() int { return b.layout.Size }

// StartRW 读写区起始地址
func (b *Bank) StartRW() int { return b.layout.StartRW }

// Read 读取 [addr, addr+count) 的副本
func (b *Bank) Read(addr, count int) ([]byte, error) {
	if count <= 0 || addr < 0 || addr+count > b.layout.Size {
		return nil, &RangeError{Op: "read", Addr: addr, Count: count, Reason: "outside bank"}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]byte, count)
	copy(out, b.regs[addr:addr+count])
	return out, nil
}

// Byte 读取单个寄存器，越界返回 0
func (b *Bank) Byte(addr int) byte {
	if addr < 0 || addr >= b.layout.Size {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.regs[addr]
}

// Snapshot 返回全部寄存器副本
func (b *Bank) Snapshot() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]byte(nil), b.regs...)
}

// Bound 返回地址的取值约束；只读区或未声明的地址返回 false
func (b *Bank) Bound(addr int) (Bound, bool) {
	if addr < b.layout.StartRW || addr >= b.layout.Size {
		return Bound{}, false
	}
	bound, ok := b.layout.Bounds[addr]
	return bound, ok
}

// Write 写入 data 到 [addr, addr+len)。
// 任一字节不满足约束则整体拒绝，不产生部分写入。
func (b *Bank) Write(addr int, data []byte) error {
	if err := b.check(addr, data); err != nil {
		return err
	}
	b.mu.Lock()
	copy(b.regs[addr:], data)
	b.mu.Unlock()

	b.persist(addr, data)
	return nil
}

func (b *Bank) check(addr int, data []byte) error {
	count := len(data)
	switch {
	case count == 0:
		return &RangeError{Op: "write", Addr: addr, Count: count, Reason: "empty write"}
	case addr < 0 || addr+count > b.layout.Size:
		return &RangeError{Op: "write", Addr: addr, Count: count, Reason: "outside bank"}
	case addr < b.layout.StartRW:
		return &RangeError{Op: "write", Addr: addr, Count: count, Reason: "read-only region"}
	}
	for i, v := range data {
		bound, ok := b.Bound(addr + i)
		if !ok {
			return &RangeError{Op: "write", Addr: addr, Count: count,
				Reason: fmt.Sprintf("addr %d has no bound", addr+i)}
		}
		if !bound.Contains(v) {
			return &RangeError{Op: "write", Addr: addr, Count: count,
				Reason: fmt.Sprintf("value %d at addr %d outside [%d,%d]", v, addr+i, bound.Min, bound.Max)}
		}
	}
	return nil
}

func (b *Bank) persist(addr int, data []byte) {
	if b.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.persistTimeout)
	defer cancel()
	if err := b.persister.Persist(ctx, addr, append([]byte(nil), data...)); err != nil {
		// 持久化失败不回滚内存值，下次上电沿用旧值
		b.logger.Warn("persist registers failed",
			zap.Int("addr", addr),
			zap.Int("count", len(data)),
			zap.Error(err))
	}
}

// Load 从持久化钩子恢复读写区；缺失或越界的值保留默认
func (b *Bank) Load(ctx context.Context) (int, error) {
	if b.persister == nil {
		return 0, nil
	}
	saved, err := b.persister.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load persisted registers: %w", err)
	}
	applied := 0
	b.mu.Lock()
	defer b.mu.Unlock()
	for addr, v := range saved {
		bound, ok := b.Bound(addr)
		if !ok || !bound.Contains(v) {
			b.logger.Warn("skip persisted register",
				zap.Int("addr", addr),
				zap.Uint8("value", v))
			continue
		}
		b.regs[addr] = v
		applied++
	}
	return applied, nil
}
