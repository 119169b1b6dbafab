package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/bridge"
	cfgpkg "github.com/taoyao-code/axbridge/internal/config"
	"github.com/taoyao-code/axbridge/internal/metrics"
	"github.com/taoyao-code/axbridge/internal/tcpserver"
	"github.com/taoyao-code/axbridge/internal/transport/host"
)

// HostTransport 主机侧传输：发送缓冲交给桥接器，接收流交给分发器
type HostTransport struct {
	Kind   string
	Writer *host.Writer
	// TCP 仅在 tcp 接入时非 nil
	TCP *tcpserver.Server

	stream  io.ReadWriteCloser
	running atomic.Bool
	logger  *zap.Logger
}

// OpenHost 按配置打开主机传输
func OpenHost(cfg cfgpkg.HostConfig, m *metrics.BridgeMetrics, logger *zap.Logger) (*HostTransport, error) {
	ht := &HostTransport{Kind: cfg.Kind, logger: logger.Named("host")}

	switch cfg.Kind {
	case cfgpkg.HostSerial:
		port, err := host.OpenSerial(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
		if err != nil {
			return nil, err
		}
		ht.stream = port
		logger.Info("host serial opened", zap.String("port", cfg.Port))

	case cfgpkg.HostPTY:
		p, err := host.OpenPTY(cfg.Port)
		if err != nil {
			return nil, err
		}
		ht.stream = p
		logger.Info("host pty opened", zap.String("device", p.Name()))

	case cfgpkg.HostTCP:
		ht.TCP = tcpserver.New(tcpserver.Config{
			Addr:           cfg.TCP.Addr,
			MaxConnections: cfg.TCP.MaxConnections,
			AcceptRate:     cfg.TCP.AcceptRate,
			AcceptBurst:    cfg.TCP.AcceptBurst,
			ReadTimeout:    cfg.TCP.ReadTimeout,
			WriteTimeout:   cfg.TCP.WriteTimeout,
		}, logger.Named("tcp"))
		if m != nil {
			ht.TCP.SetMetricsCallback(func(result string) {
				if result == "accepted" {
					m.HostSessionTotal.Inc()
				}
			})
		}

	default:
		return nil, fmt.Errorf("unknown host kind %q", cfg.Kind)
	}

	// 无 TCP 主机连接时输出被丢弃
	var target io.Writer
	if ht.stream != nil {
		target = ht.stream
	}
	ht.Writer = host.NewWriter(target, cfg.EndpointSize)
	return ht, nil
}

// Running 主机处理循环是否在运行
func (ht *HostTransport) Running() bool { return ht.running.Load() }

// Serve 运行主机处理循环直到 ctx 结束
func (ht *HostTransport) Serve(ctx context.Context, br *bridge.Bridge) error {
	ht.running.Store(true)
	defer ht.running.Store(false)

	if ht.TCP == nil {
		err := br.Serve(ctx, ht.stream)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ht.TCP.SetHandler(func(sctx context.Context, s *tcpserver.Session) {
		ht.Writer.SetTarget(s)
		defer ht.Writer.SetTarget(nil)
		if err := br.Serve(sctx, s); err != nil && sctx.Err() == nil {
			ht.logger.Info("host session ended", zap.String("session", s.ID()), zap.Error(err))
		}
	})
	if err := ht.TCP.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Close 关闭主机传输
func (ht *HostTransport) Close(ctx context.Context) error {
	var errs []error
	if ht.TCP != nil {
		errs = append(errs, ht.TCP.Shutdown(ctx))
	}
	if ht.stream != nil {
		errs = append(errs, ht.stream.Close())
	}
	return errors.Join(errs...)
}
