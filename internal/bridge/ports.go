package bridge

// Direction 半双工总线方向
type Direction int

const (
	DirectionReceive Direction = iota
	DirectionTransmit
)

func (d Direction) String() string {
	if d == DirectionTransmit {
		return "transmit"
	}
	return "receive"
}

// Bus 总线物理驱动：方向切换与字节发送；接收通过 Bridge.OnBusBytes 回调注入
type Bus interface {
	SetDirection(d Direction) error
	Write(p []byte) (int, error)
}

// Host 主机侧传输：发送字节与立即提交
type Host interface {
	SendByte(b byte) error
	Write(p []byte) (int, error)
	Flush() error
}
