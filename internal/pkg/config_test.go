package pkg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitCommon 测试 InitCommon 函数
func TestInitCommon(t *testing.T) {
	tempDir := t.TempDir()

	common := `
version: "1.0.0"
my_custom_config: "custom_value"
log:
  log_path: ./logs/regmap.log
  max_size: 512
  max_backups: 10
  max_age: 30
  compress: true
  level: debug
transport:
  type: udp
  para:
    addr: "10.0.0.5:8192"
    timeout: 200ms
    retries: 3
`
	// 子目录中的文件也会被合并
	subDir := filepath.Join(tempDir, "sinks")
	require.NoError(t, os.MkdirAll(subDir, 0o755))
	sinks := `
sinks:
  - type: prometheus
    enable: true
  - type: mqtt
    enable: false
    para:
      broker: "127.0.0.1"
engines:
  - name: UdpEngineServer0
  - name: UdpEngineServer1
    offset: 0x100
simulate:
  values:
    - path: Root.UdpEngineServer.ServerRemotePort
      value: 50000
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "common.yaml"), []byte(common), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sinks.yml"), []byte(sinks), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "README.txt"), []byte("ignored"), 0o644))

	config, err := InitCommon(tempDir)
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", config.Version)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, 512, config.Log.MaxSize)
	assert.Equal(t, "udp", config.Transport.Type)
	assert.Equal(t, "10.0.0.5:8192", config.Transport.Para["addr"])
	assert.Equal(t, "custom_value", config.Others["my_custom_config"])

	require.Len(t, config.Sinks, 2)
	enabled := config.EnabledSinks()
	require.Len(t, enabled, 1)
	assert.Equal(t, "prometheus", enabled[0].Type)

	// 变量路径中的 . 不会被当作 key 分隔符, 大小写也保持不变
	require.Len(t, config.Simulate.Values, 1)
	assert.Equal(t, "Root.UdpEngineServer.ServerRemotePort", config.Simulate.Values[0].Path)
	assert.Equal(t, uint64(50000), config.Simulate.Values[0].Value)
	assert.Equal(t, []EngineConfig{{Name: "UdpEngineServer0"}, {Name: "UdpEngineServer1", Offset: 0x100}}, config.Engines)
}

func TestInitCommon_Defaults(t *testing.T) {
	config, err := InitCommon(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "memory", config.Transport.Type)
	assert.Equal(t, ":8080", config.API.Addr)
	assert.Equal(t, "127.0.0.1:8192", config.Simulate.Listen)
}

// TestInitCommonConfigFileNotFound 测试 InitCommon 函数当配置目录不存在时的错误处理
func TestInitCommonConfigFileNotFound(t *testing.T) {
	_, err := InitCommon("/invalid/path")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "访问路径 /invalid/path"), err.Error())
}

func TestInitCommon_InvalidType(t *testing.T) {
	tempDir := t.TempDir()
	content := `
log:
  max_age: "not_a_number"
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "bad.yaml"), []byte(content), 0o644))

	_, err := InitCommon(tempDir)
	assert.Error(t, err)
}

// TestWithConfigAndConfigFromContext 测试 WithConfig 和 ConfigFromContext 函数
func TestWithConfigAndConfigFromContext(t *testing.T) {
	testConfig := &Config{
		Version:   "1.0.0",
		Transport: TransportConfig{Type: "udp"},
	}
	ctx := WithConfig(context.Background(), testConfig)

	extracted := ConfigFromContext(ctx)
	assert.Same(t, testConfig, extracted)

	// 未挂载配置时返回空配置而不是 nil
	assert.NotNil(t, ConfigFromContext(context.Background()))
}

func TestPointString(t *testing.T) {
	p := Point{
		Device: "Root.UdpEngineServer",
		Field:  map[string]uint64{"ServerRemotePort": 50000, "ServerRemoteIp": 3232235777},
		Ts:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	assert.Equal(t,
		"Point(Device=Root.UdpEngineServer, Field={ServerRemoteIp: 3232235777, ServerRemotePort: 50000}, Ts=2024-01-02T03:04:05Z)",
		p.String())
}
