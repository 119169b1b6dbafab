package ax

// Frame 协议帧
// Code 在下行为指令码，在上行为状态/错误码
type Frame struct {
	ID     byte
	Code   byte
	Params []byte
}

// Length 返回 len 字段值（参数个数 + 2）
func (f *Frame) Length() byte {
	return byte(len(f.Params) + 2)
}

// Bytes 编码为线缆字节
func (f *Frame) Bytes() ([]byte, error) {
	return Encode(f.ID, f.Code, f.Params)
}

// IsBroadcast 判断是否为广播帧
func (f *Frame) IsBroadcast() bool {
	return f.ID == BroadcastID
}
