package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/axbridge/internal/config"
	"github.com/taoyao-code/axbridge/internal/regbank"
	redisstorage "github.com/taoyao-code/axbridge/internal/storage/redis"
)

// NewRegisterBank 按配置创建本地寄存器，启用 Redis 时恢复已保存的值
func NewRegisterBank(cfg cfgpkg.RegistersConfig, redisClient *redisstorage.Client, logger *zap.Logger) (*regbank.Bank, error) {
	layout := regbank.DefaultLayout()
	initial := layout.Defaults(regbank.Identity{
		ModelNumber:     cfg.ModelNumber,
		FirmwareVersion: cfg.FirmwareVersion,
		BridgeID:        cfg.BridgeID,
	}, cfg.RWDefaults())

	opts := []regbank.Option{regbank.WithLogger(logger)}
	if redisClient != nil {
		opts = append(opts, regbank.WithPersister(redisstorage.NewRegisterStore(redisClient)))
	}
	bank, err := regbank.New(layout, initial, opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := bank.Load(ctx)
	if err != nil {
		// 读取失败沿用默认值继续启动
		logger.Warn("load persisted registers failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("persisted registers restored", zap.Int("count", n))
	}
	return bank, nil
}
