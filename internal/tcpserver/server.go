// Package tcpserver 主机侧 TCP 接入（ser2net 风格）：同一时刻只服务一个主机连接
package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config TCP 接入配置
type Config struct {
	Addr string
	// MaxConnections 并发主机连接数，桥接器只有一条总线，默认 1
	MaxConnections int
	// AcquireTimeout 等待连接许可的时间，超时即拒绝
	AcquireTimeout time.Duration
	AcceptRate     int
	AcceptBurst    int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Handler 处理一个主机会话，返回即关闭连接
type Handler func(ctx context.Context, s *Session)

// Server TCP 主机接入
type Server struct {
	cfg     Config
	ln      net.Listener
	wg      sync.WaitGroup
	stopC   chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	handler Handler
	logger  *zap.Logger

	limiter     *ConnectionLimiter
	rateLimiter *RateLimiter

	// 可选指标回调
	onAccept func(result string)
}

// New 创建 TCP 接入
func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 100 * time.Millisecond
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		stopC:       make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		limiter:     NewConnectionLimiter(cfg.MaxConnections, cfg.AcquireTimeout),
		rateLimiter: NewRateLimiter(cfg.AcceptRate, cfg.AcceptBurst),
	}
}

// SetHandler 设置会话处理函数
func (s *Server) SetHandler(h Handler) { s.handler = h }

// SetMetricsCallback 设置接入结果回调（accepted / rejected_limit / rejected_rate）
func (s *Server) SetMetricsCallback(onAccept func(result string)) { s.onAccept = onAccept }

// Addr 实际监听地址
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("tcp host listener started", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				select {
				case <-s.stopC:
					return
				default:
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}
			s.accept(conn)
		}
	}()
	return nil
}

func (s *Server) accept(c net.Conn) {
	remote := c.RemoteAddr().String()
	if !s.rateLimiter.Allow() {
		s.reject(c, "rejected_rate", nil)
		return
	}
	if err := s.limiter.Acquire(s.ctx, remote); err != nil {
		s.reject(c, "rejected_limit", err)
		return
	}
	s.report("accepted")

	sess := newSession(c, s.cfg.ReadTimeout, s.cfg.WriteTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.limiter.Release(remote)
		defer sess.Close()

		log := s.logger.With(zap.String("session", sess.ID()), zap.String("remote", remote))
		log.Info("host connected")
		if s.handler != nil {
			s.handler(s.ctx, sess)
		}
		log.Info("host disconnected")
	}()
}

func (s *Server) reject(c net.Conn, result string, err error) {
	s.report(result)
	fields := []zap.Field{
		zap.String("remote", c.RemoteAddr().String()),
		zap.String("reason", result),
	}
	var le *SessionLimitError
	if errors.As(err, &le) {
		fields = append(fields, zap.Strings("holders", le.Holders))
	}
	s.logger.Warn("host connection rejected", fields...)
	_ = c.Close()
}

func (s *Server) report(result string) {
	if s.onAccept != nil {
		s.onAccept(result)
	}
}

// ActiveConnections 当前会话数
func (s *Server) ActiveConnections() int { return s.limiter.Current() }

// MaxConnections 会话上限
func (s *Server) MaxConnections() int { return s.limiter.MaxConnections() }

// GetLimiterStats 连接限流统计
func (s *Server) GetLimiterStats() LimiterStats { return s.limiter.Stats() }

// GetRateLimiterStats 接入速率统计
func (s *Server) GetRateLimiterStats() RateLimiterStats { return s.rateLimiter.Stats() }

// Shutdown 优雅关闭监听，取消会话并等待退出
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stopC:
		return errors.New("tcpserver: already shut down")
	default:
	}
	close(s.stopC)
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
