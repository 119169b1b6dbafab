package bridge

import (
	"errors"
	"sync/atomic"
)

// Mode 桥接模式
type Mode int32

const (
	// ModeRelay 总线字节原样转发给主机
	ModeRelay Mode = iota
	// ModeDivert 总线字节写入捕获缓冲，供本地处理
	ModeDivert
)

func (m Mode) String() string {
	switch m {
	case ModeRelay:
		return "relay"
	case ModeDivert:
		return "divert"
	default:
		return "unknown"
	}
}

// ErrModeBusy 已有事务持有 Divert，不支持嵌套
var ErrModeBusy = errors.New("bridge mode already diverted")

// ModeController 两态切换：Relay <-> Divert
type ModeController struct {
	mode     atomic.Int32
	onChange func(Mode)
}

// NewModeController 创建模式控制器，初始为 Relay
func NewModeController(onChange func(Mode)) *ModeController {
	return &ModeController{onChange: onChange}
}

// Mode 返回当前模式（总线接收路径调用）
func (c *ModeController) Mode() Mode {
	return Mode(c.mode.Load())
}

// Acquire Relay -> Divert；已处于 Divert 时返回 ErrModeBusy
func (c *ModeController) Acquire() error {
	if !c.mode.CompareAndSwap(int32(ModeRelay), int32(ModeDivert)) {
		return ErrModeBusy
	}
	c.notify(ModeDivert)
	return nil
}

// Release 无条件恢复 Relay，调用方应 defer
func (c *ModeController) Release() {
	if c.mode.Swap(int32(ModeRelay)) != int32(ModeRelay) {
		c.notify(ModeRelay)
	}
}

func (c *ModeController) notify(m Mode) {
	if c.onChange != nil {
		c.onChange(m)
	}
}
