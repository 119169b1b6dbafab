package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/axbridge/internal/protocol/ax"
	"github.com/taoyao-code/axbridge/internal/regbank"
)

const testBridgeID = 0xFD

// fakeClock 手动推进的时钟；After 立即把时间推进 d 并触发，超时路径因此是确定性的
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// blockingClock 的 After 永不触发
type blockingClock struct{ *fakeClock }

func (c *blockingClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

// countingClock 记录 After 调用次数，计时器永不触发
type countingClock struct {
	*fakeClock
	mu     sync.Mutex
	afters int
}

func (c *countingClock) After(time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.afters++
	c.mu.Unlock()
	return make(chan time.Time)
}

func (c *countingClock) Afters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.afters
}

// device 模拟舵机：给定请求返回应答字节（nil 表示不应答）
type device func(addr, count byte) []byte

func respond(id byte, regs []byte) device {
	return func(addr, count byte) []byte {
		raw, _ := ax.Encode(id, ax.StatusNone, regs[addr:int(addr)+int(count)])
		return raw
	}
}

func corrupt(d device) device {
	return func(addr, count byte) []byte {
		raw := d(addr, count)
		raw[len(raw)-1] ^= 0x5A
		return raw
	}
}

func truncate(d device, n int) device {
	return func(addr, count byte) []byte {
		return d(addr, count)[:n]
	}
}

// fakeBus 半双工总线模拟：切回接收方向时把应答注入桥接器
type fakeBus struct {
	mu         sync.Mutex
	bridge     *Bridge
	devices    map[byte]device
	dir        Direction
	directions []Direction
	written    [][]byte
	pending    []byte
	// relayEcho 透传帧的应答（Relay 模式下经接收路径回到主机）
	relayEcho []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{devices: make(map[byte]device)}
}

func (b *fakeBus) SetDirection(d Direction) error {
	b.mu.Lock()
	b.dir = d
	b.directions = append(b.directions, d)
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	if d == DirectionReceive && len(pending) > 0 {
		b.bridge.OnBusBytes(pending)
	}
	return nil
}

func (b *fakeBus) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.written = append(b.written, append([]byte(nil), p...))
	f, err := ax.Parse(p)
	if err != nil {
		return len(p), nil
	}
	if f.Code == ax.InstReadData && len(f.Params) == 2 {
		if dev, ok := b.devices[f.ID]; ok {
			b.pending = dev(f.Params[0], f.Params[1])
		}
		return len(p), nil
	}
	b.pending = b.relayEcho
	return len(p), nil
}

func (b *fakeBus) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.written)
}

// recordingHost 记录主机侧输出与提交边界
type recordingHost struct {
	mu         sync.Mutex
	pending    []byte
	out        []byte
	flushes    int
	maxPending int
}

func (h *recordingHost) SendByte(c byte) error {
	_, err := h.Write([]byte{c})
	return err
}

func (h *recordingHost) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, p...)
	if len(h.pending) > h.maxPending {
		h.maxPending = len(h.pending)
	}
	return len(p), nil
}

func (h *recordingHost) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = append(h.out, h.pending...)
	h.pending = nil
	h.flushes++
	return nil
}

func (h *recordingHost) Output() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.out...)
}

type fixture struct {
	bank   *regbank.Bank
	bus    *fakeBus
	host   *recordingHost
	clock  *fakeClock
	bridge *Bridge
}

func newFixture(t *testing.T, flushThreshold int) *fixture {
	t.Helper()
	return newFixtureWithClock(t, flushThreshold, nil)
}

// newFixtureWithClock clock 为 nil 时使用 fixture 自带的 fakeClock
func newFixtureWithClock(t *testing.T, flushThreshold int, clock Clock) *fixture {
	t.Helper()
	layout := regbank.DefaultLayout()
	initial := layout.Defaults(
		regbank.Identity{ModelNumber: 0x2AB0, FirmwareVersion: 4, BridgeID: testBridgeID},
		map[int]byte{regbank.AddrBusTimeout: 50, regbank.AddrHostFrameTimeout: 20, regbank.AddrBusReadTimeout: 100},
	)
	bank, err := regbank.New(layout, initial)
	require.NoError(t, err)

	f := &fixture{bank: bank, bus: newFakeBus(), host: &recordingHost{}, clock: newFakeClock()}
	if clock == nil {
		clock = f.clock
	}
	f.bridge = New(bank, f.bus, f.host, 0, Options{
		Clock:          clock,
		Tick:           time.Millisecond,
		FlushThreshold: flushThreshold,
		Logger:         zaptest.NewLogger(t),
	})
	f.bus.bridge = f.bridge
	return f
}
