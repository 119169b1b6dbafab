package ax

import "errors"

var (
	ErrShortFrame  = errors.New("short frame")
	ErrBadHeader   = errors.New("bad header")
	ErrBadLength   = errors.New("bad length")
	ErrBadChecksum = errors.New("bad checksum")
)

// Parse 解析一帧（严格校验：头部、长度、校验和）
func Parse(raw []byte) (*Frame, error) {
	if len(raw) < Overhead {
		return nil, ErrShortFrame
	}
	if raw[0] != HeaderByte || raw[1] != HeaderByte {
		return nil, ErrBadHeader
	}
	length := int(raw[3])
	if length < 2 || length+4 != len(raw) {
		return nil, ErrBadLength
	}
	if !Validate(raw) {
		return nil, ErrBadChecksum
	}
	params := make([]byte, length-2)
	copy(params, raw[HeaderSize:len(raw)-1])
	return &Frame{ID: raw[2], Code: raw[4], Params: params}, nil
}

// StreamDecoder 处理半包/粘包的流式解码器
type StreamDecoder struct {
	buf     []byte
	dropped int // 校验失败或长度异常而丢弃的候选帧数
}

// NewStreamDecoder 创建流式解码器
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{buf: make([]byte, 0, MaxFrameSize)}
}

// Feed 追加数据并尽可能解出多帧
func (d *StreamDecoder) Feed(p []byte) []*Frame {
	if len(p) == 0 {
		return nil
	}
	d.buf = append(d.buf, p...)
	var frames []*Frame

	for {
		start := indexHeader(d.buf)
		if start < 0 {
			// 无头部标记，保留最后1字节以应对跨边界的 0xFF
			if n := len(d.buf); n > 0 {
				if d.buf[n-1] == HeaderByte {
					d.buf = append(d.buf[:0], HeaderByte)
				} else {
					d.buf = d.buf[:0]
				}
			}
			return frames
		}
		if start > 0 {
			d.buf = append(d.buf[:0], d.buf[start:]...)
		}
		if len(d.buf) < 4 {
			return frames
		}
		// id 不可能为 0xFF：多余的标记字节，滑动1字节重新同步
		if d.buf[2] == HeaderByte {
			d.buf = append(d.buf[:0], d.buf[1:]...)
			continue
		}
		length := int(d.buf[3])
		if length < 2 {
			d.dropped++
			d.buf = append(d.buf[:0], d.buf[1:]...)
			continue
		}
		total := length + 4
		if len(d.buf) < total {
			return frames
		}
		fr, err := Parse(d.buf[:total])
		if err != nil {
			d.dropped++
			d.buf = append(d.buf[:0], d.buf[1:]...)
			continue
		}
		frames = append(frames, fr)
		d.buf = append(d.buf[:0], d.buf[total:]...)
		if len(d.buf) == 0 {
			return frames
		}
	}
}

// Buffered 返回尚未组成完整帧的字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) }

// Reset 丢弃未完成的半包
func (d *StreamDecoder) Reset() { d.buf = d.buf[:0] }

// Dropped 返回累计丢弃的候选帧数
func (d *StreamDecoder) Dropped() int { return d.dropped }

// indexHeader 返回缓冲区中下一个 0xFF 0xFF 开始位置
func indexHeader(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == HeaderByte && b[i+1] == HeaderByte {
			return i
		}
	}
	return -1
}
