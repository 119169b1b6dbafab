package ax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		expected byte
	}{
		{"空数据", []byte{}, 0xFF},
		{"PING 应答", []byte{0x01, 0x02, 0x00}, 0xFC},
		{"累加溢出", []byte{0xFD, 0x06, 0x00, 0x0A, 0x0B, 0xFF, 0xFF}, byte(255 - (0xFD+0x06+0x0A+0x0B+0xFF+0xFF)%256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Checksum(tt.body))
		})
	}
}

func TestValidate_EncodedFrames(t *testing.T) {
	frames := [][]byte{
		EncodeReadCommand(1, 0x24, 2),
		EncodeReadCommand(0xFD, 0, 4),
	}
	for _, payload := range [][]byte{nil, {0x00}, {0x0A, 0x0B, 0xFF, 0xFF}, make([]byte, MaxParams)} {
		raw, err := EncodeStatus(0xFD, StatusNone, payload)
		require.NoError(t, err)
		frames = append(frames, raw)
	}
	for _, raw := range frames {
		assert.True(t, Validate(raw), "frame % X", raw)
	}
}

func TestValidate_SingleByteMutation(t *testing.T) {
	raw, err := EncodeStatus(0xFD, StatusNone, []byte{0x10, 0x20, 0x30})
	require.NoError(t, err)

	// id..checksum 范围内任意单字节改动都不会是 256 的整数倍
	for pos := 2; pos < len(raw); pos++ {
		for delta := 1; delta < 256; delta++ {
			mutated := append([]byte(nil), raw...)
			mutated[pos] += byte(delta)
			if Validate(mutated) {
				t.Fatalf("mutation at %d by %d still valid: % X", pos, delta, mutated)
			}
		}
	}
}

func TestValidate_Short(t *testing.T) {
	assert.False(t, Validate(nil))
	assert.False(t, Validate([]byte{0xFF, 0xFF, 0x01, 0x02, 0xFC}))
}

func TestAccumulator_MatchesChecksum(t *testing.T) {
	body := []byte{0xFD, 0x06, 0x00, 0x0A, 0x0B, 0xFF, 0xFF}
	var acc Accumulator
	for _, b := range body {
		acc.Add(b)
	}
	assert.Equal(t, Checksum(body), acc.Checksum())
}
