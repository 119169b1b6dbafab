//go:build linux

package host

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PTY 伪终端主机端：桥接器读写 master，主机程序打开 Name() 指向的从端
type PTY struct {
	master *os.File
	tty    *os.File
	link   string
}

// OpenPTY 创建原始模式伪终端；link 非空时在该路径创建指向从端的符号链接
func OpenPTY(link string) (*PTY, error) {
	master, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("host: open pty: %w", err)
	}
	p := &PTY{master: master, tty: tty}
	if err := makeRaw(int(tty.Fd())); err != nil {
		p.Close()
		return nil, err
	}
	if link != "" {
		_ = os.Remove(link)
		if err := os.Symlink(tty.Name(), link); err != nil {
			p.Close()
			return nil, fmt.Errorf("host: link %s: %w", link, err)
		}
		p.link = link
	}
	return p, nil
}

// makeRaw 关闭回显、行缓冲与字符转换，保证二进制帧原样通过
func makeRaw(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("host: get termios: %w", err)
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("host: set termios: %w", err)
	}
	return nil
}

// Name 从端设备路径
func (p *PTY) Name() string {
	if p.link != "" {
		return p.link
	}
	return p.tty.Name()
}

func (p *PTY) Read(b []byte) (int, error)  { return p.master.Read(b) }
func (p *PTY) Write(b []byte) (int, error) { return p.master.Write(b) }

// Close 关闭 master 与从端并移除符号链接
func (p *PTY) Close() error {
	err := p.master.Close()
	if cerr := p.tty.Close(); err == nil {
		err = cerr
	}
	if p.link != "" {
		_ = os.Remove(p.link)
	}
	return err
}
