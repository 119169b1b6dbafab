package ax

// Sum 按字节累加（高位溢出丢弃）
func Sum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Checksum 计算校验和：255 - (id+len+code+params) mod 256
// body 为 id 起到参数末尾（不含头部标记与校验字节）
func Checksum(body []byte) byte {
	return 0xFF - Sum(body)
}

// Validate 校验一帧的结构完整性。
// 覆盖范围为 id 字段到校验字节（含），和必须为 0xFF；不解析指令或状态语义。
func Validate(raw []byte) bool {
	if len(raw) < Overhead {
		return false
	}
	return Sum(raw[2:]) == 0xFF
}

// Accumulator 流式校验和累加器，用于边发送边计算的场景
type Accumulator struct {
	sum byte
}

// Add 累加若干字节
func (a *Accumulator) Add(b ...byte) {
	for _, v := range b {
		a.sum += v
	}
}

// Checksum 返回当前累加值对应的校验字节
func (a *Accumulator) Checksum() byte {
	return 0xFF - a.sum
}
