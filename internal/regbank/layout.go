package regbank

// 寄存器地址表
const (
	// 只读
	AddrModelNumberL    = 0
	AddrModelNumberH    = 1
	AddrFirmwareVersion = 2
	AddrBridgeID        = 3

	// 读写
	AddrBusTimeout       = 4 // 总线事务超时（tick 数）
	AddrHostFrameTimeout = 5 // 主机侧半包超时（tick 数）
	AddrBusReadTimeout   = 6 // 总线串口读超时（tick 数）

	// DefaultSize 寄存器总数，7..15 预留
	DefaultSize = 16
	// DefaultStartRW 读写区起始地址
	DefaultStartRW = AddrBusTimeout
)

// Bound 单个地址允许写入的闭区间
type Bound struct {
	Min byte `json:"min"`
	Max byte `json:"max"`
}

// Contains 判断 v 是否在 [Min, Max] 内
func (b Bound) Contains(v byte) bool {
	return v >= b.Min && v <= b.Max
}

// FullRange 未声明约束的地址使用整字节范围
var FullRange = Bound{Min: 0x00, Max: 0xFF}

// Layout 寄存器布局：大小、只读前缀与每个读写地址的取值范围
type Layout struct {
	Size    int
	StartRW int
	Bounds  map[int]Bound
}

// DefaultLayout 返回桥接设备的标准布局
func DefaultLayout() Layout {
	bounds := make(map[int]Bound, DefaultSize-DefaultStartRW)
	for addr := DefaultStartRW; addr < DefaultSize; addr++ {
		bounds[addr] = FullRange
	}
	timeout := Bound{Min: 10, Max: 254}
	bounds[AddrBusTimeout] = timeout
	bounds[AddrHostFrameTimeout] = timeout
	bounds[AddrBusReadTimeout] = timeout
	return Layout{Size: DefaultSize, StartRW: DefaultStartRW, Bounds: bounds}
}

// Identity 只读区内容
type Identity struct {
	ModelNumber     uint16
	FirmwareVersion byte
	BridgeID        byte
}

// Defaults 按布局生成初始寄存器值：只读区写入身份信息，读写区取 rw 中的默认值
func (l Layout) Defaults(id Identity, rw map[int]byte) []byte {
	regs := make([]byte, l.Size)
	put := func(addr int, v byte) {
		if addr < len(regs) {
			regs[addr] = v
		}
	}
	put(AddrModelNumberL, byte(id.ModelNumber))
	put(AddrModelNumberH, byte(id.ModelNumber>>8))
	put(AddrFirmwareVersion, id.FirmwareVersion)
	put(AddrBridgeID, id.BridgeID)
	for addr, v := range rw {
		if addr >= l.StartRW && addr < l.Size {
			regs[addr] = v
		}
	}
	return regs
}
