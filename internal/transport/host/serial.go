package host

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// OpenSerial 打开 USB CDC 串口（gadget tty 或 USB 转串口）。
// readTimeout > 0 时读超时返回 0 字节，分发循环借此检查退出信号。
func OpenSerial(path string, baudRate int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("host: open %s: %w", path, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("host: set read timeout: %w", err)
		}
	}
	return port, nil
}
