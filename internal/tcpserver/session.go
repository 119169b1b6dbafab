package tcpserver

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session 一个主机 TCP 会话，实现 io.ReadWriteCloser。
// 每次 Read 前刷新读超时，超时以 net.Error 返回，调用方据此检查退出信号。
type Session struct {
	id           string
	c            net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration

	closeOnce sync.Once
	doneC     chan struct{}
}

func newSession(c net.Conn, readTimeout, writeTimeout time.Duration) *Session {
	return &Session{
		id:           uuid.NewString(),
		c:            c,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		doneC:        make(chan struct{}),
	}
}

// ID 会话唯一标识
func (s *Session) ID() string { return s.id }

// RemoteAddr 远端地址
func (s *Session) RemoteAddr() net.Addr { return s.c.RemoteAddr() }

func (s *Session) Read(p []byte) (int, error) {
	if s.readTimeout > 0 {
		_ = s.c.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	return s.c.Read(p)
}

func (s *Session) Write(p []byte) (int, error) {
	if s.writeTimeout > 0 {
		_ = s.c.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.c.Write(p)
}

// Close 关闭连接（可重复调用）
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.doneC)
		err = s.c.Close()
	})
	return err
}

// Done 会话关闭通知
func (s *Session) Done() <-chan struct{} { return s.doneC }
