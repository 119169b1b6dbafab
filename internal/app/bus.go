package app

import (
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/axbridge/internal/config"
	"github.com/taoyao-code/axbridge/internal/regbank"
	"github.com/taoyao-code/axbridge/internal/transport/bus"
)

// OpenBus 打开总线串口；读超时取自寄存器 6（tick 数）
func OpenBus(cfg cfgpkg.BusConfig, bank *regbank.Bank, logger *zap.Logger) (*bus.SerialBus, error) {
	tick := cfg.Tick
	if tick <= 0 {
		tick = time.Millisecond
	}
	readTimeout := time.Duration(bank.Byte(regbank.AddrBusReadTimeout)) * tick

	b, err := bus.Open(bus.Config{
		Port:            cfg.Port,
		BaudRate:        cfg.BaudRate,
		ReadChunk:       cfg.ReadChunk,
		ReadTimeout:     readTimeout,
		RTSTransmitHigh: cfg.RTSTransmitHigh,
		Drain:           cfg.Drain,
	}, logger.Named("bus"))
	if err != nil {
		return nil, err
	}
	logger.Info("bus opened",
		zap.String("port", cfg.Port),
		zap.Int("baud", cfg.BaudRate),
		zap.Duration("read_timeout", readTimeout))
	return b, nil
}
