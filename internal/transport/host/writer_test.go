package host

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type packetRecorder struct {
	packets [][]byte
	err     error
}

func (r *packetRecorder) Write(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.packets = append(r.packets, append([]byte(nil), p...))
	return len(p), nil
}

func TestWriter_AutoCommitOnFullEndpoint(t *testing.T) {
	rec := &packetRecorder{}
	w := NewWriter(rec, 4)

	n, err := w.Write([]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, [][]byte{{1, 2, 3, 4}}, rec.packets)
	assert.Equal(t, 2, w.Pending())

	require.NoError(t, w.SendByte(7))
	require.NoError(t, w.Flush())
	assert.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6, 7}}, rec.packets)
	assert.Zero(t, w.Pending())
	assert.Equal(t, 2, w.Commits())

	// 空缓冲 Flush 不产生空包
	require.NoError(t, w.Flush())
	assert.Len(t, rec.packets, 2)
}

func TestWriter_DefaultEndpointSize(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, 0)
	_, err := w.Write(make([]byte, DefaultEndpointSize+1))
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpointSize, out.Len())
	assert.Equal(t, 1, w.Pending())
}

func TestWriter_NilTargetDiscards(t *testing.T) {
	w := NewWriter(nil, 4)
	_, err := w.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Zero(t, w.Pending())
	assert.Zero(t, w.Commits())
}

func TestWriter_SetTargetDropsPending(t *testing.T) {
	first, second := &packetRecorder{}, &packetRecorder{}
	w := NewWriter(first, 8)
	_, _ = w.Write([]byte{1, 2})
	w.SetTarget(second)
	_, _ = w.Write([]byte{3})
	require.NoError(t, w.Flush())

	assert.Empty(t, first.packets)
	assert.Equal(t, [][]byte{{3}}, second.packets)
}

func TestWriter_TargetError(t *testing.T) {
	rec := &packetRecorder{err: errors.New("broken pipe")}
	w := NewWriter(rec, 2)
	_, err := w.Write([]byte{1, 2, 3})
	require.Error(t, err)
	assert.Equal(t, 0, w.Pending(), "failed packet is not retried")
}
