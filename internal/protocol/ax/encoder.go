package ax

import "fmt"

// Encode 构造一帧完整数据
func Encode(id, code byte, params []byte) ([]byte, error) {
	if len(params) > MaxParams {
		return nil, fmt.Errorf("ax: %d params exceed limit %d", len(params), MaxParams)
	}
	buf := make([]byte, 0, Overhead+len(params))
	buf = append(buf, HeaderByte, HeaderByte, id, byte(len(params)+2), code)
	buf = append(buf, params...)
	buf = append(buf, Checksum(buf[2:]))
	return buf, nil
}

// EncodeStatus 构造桥接设备自身的状态应答帧，payload 可为空
func EncodeStatus(bridgeID, status byte, payload []byte) ([]byte, error) {
	return Encode(bridgeID, status, payload)
}

// EncodeReadCommand 构造 READ_DATA 请求：params = [addr, count]
func EncodeReadCommand(targetID, addr, count byte) []byte {
	return []byte{
		HeaderByte, HeaderByte, targetID, 4, InstReadData, addr, count,
		Checksum([]byte{targetID, 4, InstReadData, addr, count}),
	}
}

// ResponseSize 返回读取 count 字节时设备应答帧的总长度
func ResponseSize(count int) int {
	return count + Overhead
}

// Payload 截取应答帧的参数区；调用方需保证 raw 已通过 Validate
func Payload(raw []byte) []byte {
	if len(raw) < Overhead {
		return nil
	}
	return raw[HeaderSize : len(raw)-1]
}
