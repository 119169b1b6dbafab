package ax

// 帧布局：0xFF 0xFF | id | len | code | params[len-2] | checksum
const (
	HeaderByte = 0xFF

	// BroadcastID 广播地址，不参与寄存器地址校验
	BroadcastID = 0xFE
	// MaxDeviceID 单播地址上限（含）
	MaxDeviceID = 0xFD

	// MaxParams 单帧参数上限（len 字段为单字节）
	MaxParams = 253
	// HeaderSize 头部：2 字节标记 + id + len + code
	HeaderSize = 5
	// Overhead 头部加末尾校验和
	Overhead = HeaderSize + 1
	// MaxFrameSize 最大帧长度
	MaxFrameSize = Overhead + MaxParams
)

// 指令码（下行）
const (
	InstPing      byte = 0x01
	InstReadData  byte = 0x02
	InstWriteData byte = 0x03
	InstRegWrite  byte = 0x04
	InstAction    byte = 0x05
	InstReset     byte = 0x06
	InstSyncWrite byte = 0x83
	InstSyncRead  byte = 0x84
)

// 状态码（上行 error 字段，按位）
const (
	StatusNone         byte = 0x00
	StatusInputVoltage byte = 0x01
	StatusAngleLimit   byte = 0x02
	StatusOverheating  byte = 0x04
	StatusRange        byte = 0x08
	StatusChecksum     byte = 0x10
	StatusOverload     byte = 0x20
	StatusInstruction  byte = 0x40
)

// SentinelByte 批量读中无响应设备的填充值
const SentinelByte byte = 0xFF
