package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/taoyao-code/axbridge/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/axbridge/internal/config"
	"github.com/taoyao-code/axbridge/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "config file (default: $AXB_CONFIG or configs/bridge.yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(bootstrap.Version)
		return
	}

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 运行直到收到信号
	if err := bootstrap.Run(cfg, logger); err != nil {
		logger.Error("axbridge exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
