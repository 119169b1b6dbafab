//go:build !linux

package host

import "errors"

// PTY 仅 Linux 支持
type PTY struct{}

// OpenPTY 非 Linux 平台不可用
func OpenPTY(string) (*PTY, error) {
	return nil, errors.New("host: pty transport requires linux")
}

func (p *PTY) Name() string              { return "" }
func (p *PTY) Read([]byte) (int, error)  { return 0, errors.ErrUnsupported }
func (p *PTY) Write([]byte) (int, error) { return 0, errors.ErrUnsupported }
func (p *PTY) Close() error              { return nil }
