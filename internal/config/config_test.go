package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "axbridge", cfg.App.Name)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, HostSerial, cfg.Host.Kind)
	assert.Equal(t, 64, cfg.Host.FlushThreshold)
	assert.Equal(t, 100*time.Microsecond, cfg.Bus.Tick)
	assert.Equal(t, uint8(0xFD), cfg.Registers.BridgeID)
	assert.Equal(t, uint16(0x2AB0), cfg.Registers.ModelNumber)
	assert.Equal(t, map[int]byte{4: 50, 5: 50, 6: 100}, cfg.Registers.RWDefaults())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
host:
  kind: tcp
  tcp:
    addr: 127.0.0.1:9000
bus:
  port: /dev/ttyUSB0
  baudRate: 57600
registers:
  bridgeID: 200
`)
	t.Setenv("AXB_BUS_BAUDRATE", "115200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, HostTCP, cfg.Host.Kind)
	assert.Equal(t, "127.0.0.1:9000", cfg.Host.TCP.Addr)
	assert.Equal(t, 1, cfg.Host.TCP.MaxConnections)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Bus.Port)
	assert.Equal(t, 115200, cfg.Bus.BaudRate)
	assert.Equal(t, uint8(200), cfg.Registers.BridgeID)
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	t.Setenv("AXB_CONFIG", writeConfig(t, "app:\n  name: bench\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bench", cfg.App.Name)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Host: HostConfig{Kind: HostSerial, Port: "/dev/ttyGS0"},
			Bus:  BusConfig{Port: "/dev/ttyS1"},
			Registers: RegistersConfig{
				BridgeID: 0xFD,
				Defaults: map[int]int{4: 50},
			},
		}
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"未知主机类型", func(c *Config) { c.Host.Kind = "usb" }},
		{"串口主机缺少路径", func(c *Config) { c.Host.Port = "" }},
		{"缺少总线串口", func(c *Config) { c.Bus.Port = "" }},
		{"桥接地址为广播", func(c *Config) { c.Registers.BridgeID = 0xFE }},
		{"默认值越界", func(c *Config) { c.Registers.Defaults[7] = 300 }},
		{"多个TCP主机", func(c *Config) { c.Host.TCP.MaxConnections = 2 }},
		{"认证缺少Key", func(c *Config) { c.HTTP.Auth.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
