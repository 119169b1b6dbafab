// Package host 主机侧传输：USB CDC 串口、伪终端与端点缓冲写入
package host

import (
	"io"
	"sync"
)

// DefaultEndpointSize USB 全速批量端点大小
const DefaultEndpointSize = 64

// Writer 主机发送缓冲，实现 bridge.Host。
// 缓冲满一个端点即自动提交；Relay 路径与命令处理路径共用同一 Writer，由互斥锁保证不在缓冲内交错。
type Writer struct {
	mu      sync.Mutex
	target  io.Writer
	buf     []byte
	size    int
	commits int
}

// NewWriter 创建发送缓冲；target 为 nil 时丢弃输出
func NewWriter(target io.Writer, endpointSize int) *Writer {
	if endpointSize <= 0 {
		endpointSize = DefaultEndpointSize
	}
	return &Writer{
		target: target,
		buf:    make([]byte, 0, endpointSize),
		size:   endpointSize,
	}
}

// SetTarget 切换输出目标（TCP 主机断开重连时使用），未提交字节被丢弃
func (w *Writer) SetTarget(target io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = target
	w.buf = w.buf[:0]
}

// SendByte 追加单字节
func (w *Writer) SendByte(c byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.append([]byte{c})
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush 提交缓冲中的剩余字节
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commit()
}

// Pending 未提交字节数
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

// Commits 已提交的端点包数
func (w *Writer) Commits() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commits
}

func (w *Writer) append(p []byte) error {
	for len(p) > 0 {
		n := copy(w.buf[len(w.buf):w.size], p)
		w.buf = w.buf[:len(w.buf)+n]
		p = p[n:]
		if len(w.buf) == w.size {
			if err := w.commit(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) commit() error {
	if len(w.buf) == 0 {
		return nil
	}
	defer func() { w.buf = w.buf[:0] }()
	if w.target == nil {
		return nil
	}
	w.commits++
	_, err := w.target.Write(w.buf)
	return err
}
