package regbank

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPersister 内存持久化（测试用）
type memPersister struct {
	mu     sync.Mutex
	saved  map[int]byte
	writes int
	err    error
}

func (p *memPersister) Load(_ context.Context) (map[int]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[int]byte, len(p.saved))
	for k, v := range p.saved {
		out[k] = v
	}
	return out, nil
}

func (p *memPersister) Persist(_ context.Context, addr int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	if p.err != nil {
		return p.err
	}
	if p.saved == nil {
		p.saved = make(map[int]byte)
	}
	for i, v := range data {
		p.saved[addr+i] = v
	}
	return nil
}

func newTestBank(t *testing.T, opts ...Option) *Bank {
	t.Helper()
	layout := DefaultLayout()
	initial := layout.Defaults(Identity{ModelNumber: 0x2AB0, FirmwareVersion: 4, BridgeID: 0xFD},
		map[int]byte{AddrBusTimeout: 50, AddrHostFrameTimeout: 50, AddrBusReadTimeout: 100})
	b, err := New(layout, initial, opts...)
	require.NoError(t, err)
	return b
}

func TestNew_InvalidInitial(t *testing.T) {
	_, err := New(DefaultLayout(), make([]byte, 3))
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	b := newTestBank(t)

	tests := []struct {
		name    string
		addr    int
		count   int
		want    []byte
		wantErr bool
	}{
		{"身份信息", 0, 4, []byte{0xB0, 0x2A, 4, 0xFD}, false},
		{"超时寄存器", 4, 3, []byte{50, 50, 100}, false},
		{"末尾单字节", 15, 1, []byte{0}, false},
		{"count为0", 0, 0, nil, true},
		{"越过末尾", 15, 2, nil, true},
		{"整体越界", 16, 1, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Read(tt.addr, tt.count)
			if tt.wantErr {
				assert.True(t, IsRangeError(err), "err=%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRead_ReturnsCopy(t *testing.T) {
	b := newTestBank(t)
	got, err := b.Read(4, 1)
	require.NoError(t, err)
	got[0] = 0x99
	assert.Equal(t, byte(50), b.Byte(4))
}

func TestWrite_Scenario(t *testing.T) {
	b := newTestBank(t)

	err := b.Write(4, []byte{5})
	assert.True(t, IsRangeError(err), "5 < 10 must be rejected")

	require.NoError(t, b.Write(4, []byte{50}))
	got, err := b.Read(4, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{50}, got)
}

func TestWrite_Rejections(t *testing.T) {
	tests := []struct {
		name string
		addr int
		data []byte
	}{
		{"只读区", 3, []byte{1}},
		{"跨越只读边界", 2, []byte{1, 2, 3}},
		{"空写入", 4, nil},
		{"越过末尾", 15, []byte{1, 2}},
		{"超出上限", 5, []byte{255}},
		{"多字节中有一个越界", 4, []byte{20, 30, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBank(t)
			before := b.Snapshot()
			err := b.Write(tt.addr, tt.data)
			var re *RangeError
			require.True(t, errors.As(err, &re), "err=%v", err)
			assert.Equal(t, "write", re.Op)
			assert.Equal(t, before, b.Snapshot(), "bank must be unchanged")
		})
	}
}

func TestWrite_MultiByteAcrossBounds(t *testing.T) {
	b := newTestBank(t)
	require.NoError(t, b.Write(5, []byte{10, 254, 0, 255}))
	got, err := b.Read(5, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 254, 0, 255}, got)
}

func TestWrite_AddressWithoutBound(t *testing.T) {
	layout := Layout{Size: 8, StartRW: 4, Bounds: map[int]Bound{4: {Min: 10, Max: 254}, 5: FullRange}}
	b, err := New(layout, make([]byte, 8))
	require.NoError(t, err)

	assert.NoError(t, b.Write(4, []byte{10, 1}))
	assert.True(t, IsRangeError(b.Write(5, []byte{1, 2})), "addr 6 has no descriptor")
	assert.Equal(t, byte(1), b.Byte(5))
}

func TestWrite_Persists(t *testing.T) {
	p := &memPersister{}
	b := newTestBank(t, WithPersister(p))

	require.NoError(t, b.Write(4, []byte{60, 70}))
	assert.Equal(t, map[int]byte{4: 60, 5: 70}, p.saved)

	_ = b.Write(4, []byte{1})
	assert.Equal(t, 1, p.writes, "rejected writes are not persisted")
}

func TestWrite_PersistFailureKeepsValue(t *testing.T) {
	p := &memPersister{err: errors.New("store down")}
	b := newTestBank(t, WithPersister(p))
	require.NoError(t, b.Write(4, []byte{60}))
	assert.Equal(t, byte(60), b.Byte(4))
}

func TestLoad(t *testing.T) {
	p := &memPersister{saved: map[int]byte{4: 80, 5: 3, 2: 9, 7: 42}}
	b := newTestBank(t, WithPersister(p))

	n, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, byte(80), b.Byte(4))
	assert.Equal(t, byte(50), b.Byte(5), "out of bound value keeps default")
	assert.Equal(t, byte(4), b.Byte(2), "read-only region is never loaded")
	assert.Equal(t, byte(42), b.Byte(7))
}

func TestLoad_Error(t *testing.T) {
	b := newTestBank(t, WithPersister(&memPersister{err: errors.New("boom")}))
	_, err := b.Load(context.Background())
	assert.Error(t, err)
}
