package bridge

import "sync"

// CaptureWriter 总线接收路径可见的视图：只能追加
type CaptureWriter interface {
	Append(p []byte) int
}

// CaptureReader 事务处理路径可见的视图：复位、查询、读取
type CaptureReader interface {
	Reset()
	Len() int
	Snapshot(n int) []byte
	Notify() <-chan struct{}
	Cap() int
}

// CaptureBuffer 有界单生产者/单消费者捕获缓冲。
// 生产者只追加，消费者只在事务边界复位、在达到目标长度或超时后读取。
type CaptureBuffer struct {
	mu      sync.Mutex
	buf     []byte
	dropped uint64
	notify  chan struct{}
}

var (
	_ CaptureWriter = (*CaptureBuffer)(nil)
	_ CaptureReader = (*CaptureBuffer)(nil)
)

// NewCaptureBuffer 创建容量为 capacity 的捕获缓冲
func NewCaptureBuffer(capacity int) *CaptureBuffer {
	return &CaptureBuffer{
		buf:    make([]byte, 0, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Append 追加字节，超出容量的部分丢弃；返回实际接收的字节数
func (c *CaptureBuffer) Append(p []byte) int {
	c.mu.Lock()
	room := cap(c.buf) - len(c.buf)
	n := len(p)
	if n > room {
		c.dropped += uint64(n - room)
		n = room
	}
	c.buf = append(c.buf, p[:n]...)
	c.mu.Unlock()

	if n > 0 {
		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
	return n
}

// Reset 清空缓冲，丢弃上一次事务迟到的字节
func (c *CaptureBuffer) Reset() {
	c.mu.Lock()
	c.buf = c.buf[:0]
	c.mu.Unlock()
	select {
	case <-c.notify:
	default:
	}
}

// Len 当前已捕获字节数
func (c *CaptureBuffer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Cap 容量
func (c *CaptureBuffer) Cap() int { return cap(c.buf) }

// Snapshot 复制前 n 个字节（不足时返回全部）
func (c *CaptureBuffer) Snapshot(n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > len(c.buf) {
		n = len(c.buf)
	}
	return append([]byte(nil), c.buf[:n]...)
}

// Notify 有新字节到达时可读
func (c *CaptureBuffer) Notify() <-chan struct{} { return c.notify }

// Dropped 累计丢弃的溢出字节数
func (c *CaptureBuffer) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
