package bootstrap

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/api"
	"github.com/taoyao-code/axbridge/internal/api/middleware"
	"github.com/taoyao-code/axbridge/internal/app"
	"github.com/taoyao-code/axbridge/internal/bridge"
	cfgpkg "github.com/taoyao-code/axbridge/internal/config"
	"github.com/taoyao-code/axbridge/internal/health"
	"github.com/taoyao-code/axbridge/internal/httpserver"
	"github.com/taoyao-code/axbridge/internal/metrics"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

// Run 统一启动流程：依赖就绪后再打开总线与主机，收到信号后按相反顺序关闭
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	log.Info("starting axbridge", zap.String("version", Version), zap.String("env", cfg.App.Env))

	// ========== 阶段1: 基础组件 ==========
	reg, bm := app.NewMetrics()
	ready := health.New()

	// ========== 阶段2: 寄存器（可选 Redis 持久化）==========
	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	bank, err := app.NewRegisterBank(cfg.Registers, redisClient, log.Named("regbank"))
	if err != nil {
		return err
	}

	// ========== 阶段3: 总线与主机传输 ==========
	busPort, err := app.OpenBus(cfg.Bus, bank, log)
	if err != nil {
		log.Error("open bus failed", zap.Error(err))
		return err
	}
	defer busPort.Close()
	ready.SetBusReady(true)

	ht, err := app.OpenHost(cfg.Host, bm, log)
	if err != nil {
		log.Error("open host transport failed", zap.Error(err))
		return err
	}

	br := bridge.New(bank, busPort, ht.Writer, cfg.Bus.CaptureSize, bridge.Options{
		Tick:           cfg.Bus.Tick,
		FlushThreshold: cfg.Host.FlushThreshold,
		Logger:         log.Named("bridge"),
		Metrics:        bm,
	})
	log.Info("bridge initialized",
		zap.Uint8("bridge_id", br.State.BridgeID()),
		zap.Duration("bus_timeout", br.Tx.Timeout()),
		zap.Duration("frame_timeout", br.Dispatcher.FrameTimeout()))

	// ========== 阶段4: HTTP ==========
	healthAgg := app.NewHealthAggregator(busPort, br, ht)
	app.AddRedisChecker(healthAgg, redisClient)

	regHandler := api.NewRegistersHandler(bank, br.Mode, br.Tx, log.Named("api"))
	authCfg := middleware.AuthConfig{Enabled: cfg.HTTP.Auth.Enabled, APIKeys: cfg.HTTP.Auth.APIKeys}

	var metricsHandler = metrics.Handler(reg)
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, ready.Ready,
		app.HealthRoutes(healthAgg),
		func(r *gin.Engine) { api.RegisterRoutes(r, regHandler, authCfg, log) },
	)
	httpSrv.Run(log)

	// ========== 阶段5: 总线接收与主机处理循环 ==========
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errC := make(chan error, 2)
	go func() {
		if err := busPort.Serve(ctx, br.OnBusBytes); err != nil {
			errC <- err
		}
	}()
	go func() {
		ready.SetHostReady(true)
		defer ready.SetHostReady(false)
		if err := ht.Serve(ctx, br); err != nil {
			errC <- err
		}
	}()
	log.Info("axbridge running", zap.String("host", ht.Kind), zap.String("bus", cfg.Bus.Port))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errC:
		log.Error("bridge loop failed", zap.Error(runErr))
		cancel()
	}

	// ========== 关闭 ==========
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := ht.Close(sctx); err != nil {
		log.Warn("host close", zap.Error(err))
	}
	log.Info("axbridge stopped")

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
