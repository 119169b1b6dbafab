package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig 运维 HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Auth         APIAuthConfig `mapstructure:"auth"`
}

// APIAuthConfig 寄存器写入等接口的 API Key 认证
type APIAuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// 主机接入方式
const (
	HostSerial = "serial"
	HostPTY    = "pty"
	HostTCP    = "tcp"
)

// HostTCPConfig TCP 主机接入
type HostTCPConfig struct {
	Addr           string        `mapstructure:"addr"`
	MaxConnections int           `mapstructure:"maxConnections"`
	AcceptRate     int           `mapstructure:"acceptRate"`
	AcceptBurst    int           `mapstructure:"acceptBurst"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
}

// HostConfig 主机侧传输配置
type HostConfig struct {
	// Kind serial | pty | tcp
	Kind string `mapstructure:"kind"`
	// Port serial: 设备路径；pty: 从端符号链接路径（可空）
	Port           string        `mapstructure:"port"`
	BaudRate       int           `mapstructure:"baudRate"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	FlushThreshold int           `mapstructure:"flushThreshold"`
	EndpointSize   int           `mapstructure:"endpointSize"`
	TCP            HostTCPConfig `mapstructure:"tcp"`
}

// BusConfig 舵机总线串口配置
type BusConfig struct {
	Port      string `mapstructure:"port"`
	BaudRate  int    `mapstructure:"baudRate"`
	ReadChunk int    `mapstructure:"readChunk"`
	// Tick 超时寄存器计时单位
	Tick            time.Duration `mapstructure:"tick"`
	RTSTransmitHigh bool          `mapstructure:"rtsTransmitHigh"`
	Drain           bool          `mapstructure:"drain"`
	// CaptureSize 捕获缓冲容量，0 取最大帧长度
	CaptureSize int `mapstructure:"captureSize"`
}

// RegistersConfig 本地寄存器初始值
type RegistersConfig struct {
	ModelNumber     uint16 `mapstructure:"modelNumber"`
	FirmwareVersion uint8  `mapstructure:"firmwareVersion"`
	BridgeID        uint8  `mapstructure:"bridgeID"`
	// Defaults 可写寄存器默认值，地址 -> 值
	Defaults map[int]int `mapstructure:"defaults"`
}

// RedisConfig 寄存器持久化
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	KeyPrefix    string        `mapstructure:"keyPrefix"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// Config 顶层配置结构
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Host      HostConfig      `mapstructure:"host"`
	Bus       BusConfig       `mapstructure:"bus"`
	Registers RegistersConfig `mapstructure:"registers"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 AXB_CONFIG 读取；否则回退到 configs/bridge.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("AXB_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("bridge")
		v.SetConfigType("yaml")
	}

	// 默认值
	setDefaults(v)

	// 环境变量覆盖：前缀 AXB_，并将点号替换为下划线
	v.SetEnvPrefix("AXB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查取值组合
func (c *Config) Validate() error {
	switch c.Host.Kind {
	case HostSerial, HostPTY, HostTCP:
	default:
		return fmt.Errorf("config: unknown host.kind %q", c.Host.Kind)
	}
	if c.Host.Kind == HostSerial && c.Host.Port == "" {
		return errors.New("config: host.port is required for serial host")
	}
	if c.Host.TCP.MaxConnections > 1 {
		return errors.New("config: host.tcp.maxConnections > 1 is not supported, the bus serves one host")
	}
	if c.Bus.Port == "" {
		return errors.New("config: bus.port is required")
	}
	if c.Registers.BridgeID >= 0xFE {
		return fmt.Errorf("config: registers.bridgeID 0x%02X collides with broadcast", c.Registers.BridgeID)
	}
	if c.HTTP.Auth.Enabled && len(c.HTTP.Auth.APIKeys) == 0 {
		return errors.New("config: http.auth.enabled requires http.auth.apiKeys")
	}
	for addr, val := range c.Registers.Defaults {
		if val < 0 || val > 0xFF {
			return fmt.Errorf("config: registers.defaults[%d]=%d out of byte range", addr, val)
		}
	}
	return nil
}

// RWDefaults 可写寄存器默认值（字节形式）
func (c RegistersConfig) RWDefaults() map[int]byte {
	out := make(map[int]byte, len(c.Defaults))
	for addr, val := range c.Defaults {
		out[addr] = byte(val)
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "axbridge")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.auth.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/axbridge.log")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("host.kind", HostSerial)
	v.SetDefault("host.port", "/dev/ttyGS0")
	v.SetDefault("host.baudRate", 1000000)
	v.SetDefault("host.readTimeout", "100ms")
	v.SetDefault("host.flushThreshold", 64)
	v.SetDefault("host.endpointSize", 64)
	v.SetDefault("host.tcp.addr", ":7001")
	v.SetDefault("host.tcp.maxConnections", 1)
	v.SetDefault("host.tcp.acceptRate", 5)
	v.SetDefault("host.tcp.acceptBurst", 10)
	v.SetDefault("host.tcp.readTimeout", "1s")
	v.SetDefault("host.tcp.writeTimeout", "1s")

	v.SetDefault("bus.port", "/dev/ttyS1")
	v.SetDefault("bus.baudRate", 1000000)
	v.SetDefault("bus.readChunk", 64)
	v.SetDefault("bus.tick", "100us")
	v.SetDefault("bus.rtsTransmitHigh", true)
	v.SetDefault("bus.drain", true)
	v.SetDefault("bus.captureSize", 0)

	v.SetDefault("registers.modelNumber", 0x2AB0)
	v.SetDefault("registers.firmwareVersion", 1)
	v.SetDefault("registers.bridgeID", 0xFD)
	v.SetDefault("registers.defaults", map[string]int{"4": 50, "5": 50, "6": 100})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyPrefix", "axbridge")
	v.SetDefault("redis.poolSize", 4)
	v.SetDefault("redis.minIdleConns", 1)
	v.SetDefault("redis.dialTimeout", "2s")
	v.SetDefault("redis.readTimeout", "1s")
	v.SetDefault("redis.writeTimeout", "1s")
}
