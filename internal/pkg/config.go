package pkg

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config 是整个程序的配置项
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Transport TransportConfig `mapstructure:"transport"`
	Sinks     []SinkConfig    `mapstructure:"sinks"`
	API       APIConfig       `mapstructure:"api"`
	Engines   []EngineConfig  `mapstructure:"engines"`
	Simulate  SimulateConfig  `mapstructure:"simulate"`
	Version   string          `mapstructure:"version"`
	Others    map[string]any  `mapstructure:",remain"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	LogPath    string `mapstructure:"log_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
}

// TransportConfig 寄存器访问后端配置, Para 由具体后端自行解析
type TransportConfig struct {
	Type string         `mapstructure:"type"` // memory|udp
	Para map[string]any `mapstructure:"para"`
}

// SinkConfig 快照导出配置
type SinkConfig struct {
	Type   string         `mapstructure:"type"`   // log|mqtt|prometheus
	Enable bool           `mapstructure:"enable"` // 是否启用
	Para   map[string]any `mapstructure:"para"`   // 自定义配置项
}

// APIConfig HTTP 接口配置
type APIConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
}

// EngineConfig 挂载在 Root 下的一个 UdpEngineServer
type EngineConfig struct {
	Name   string `mapstructure:"name"`
	Offset uint64 `mapstructure:"offset"` // 相对 Root 的字节偏移
}

// SimulateConfig 模拟硬件配置, 用于 serve 命令
type SimulateConfig struct {
	Listen string        `mapstructure:"listen"`
	Size   uint64        `mapstructure:"size"` // 模拟地址空间大小, 0 表示不限制
	Values []PresetValue `mapstructure:"values"`
}

// PresetValue 模拟硬件中变量的初始值。
// 使用列表而不是 map, 因为 viper 会把 map 的 key 全部转为小写
type PresetValue struct {
	Path  string `mapstructure:"path"`
	Value uint64 `mapstructure:"value"`
}

// EnabledSinks 返回启用的导出配置
func (c *Config) EnabledSinks() []SinkConfig {
	out := make([]SinkConfig, 0, len(c.Sinks))
	for _, s := range c.Sinks {
		if s.Enable {
			out = append(out, s)
		}
	}
	return out
}

// InitCommon 用于初始化全局配置
func InitCommon(configDir string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::")) // 设置 key 分隔符为 ::，因为默认的 . 会和 IP 地址、变量路径冲突
	v.AddConfigPath(configDir)
	v.AutomaticEnv() // 读取环境变量
	setDefaults(v)
	// 遍历配置目录及其子目录中的所有文件
	err := filepath.WalkDir(configDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("访问路径 %s 失败: %w", filePath, err)
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(filePath)
		// 只处理 .yaml 或 .yml 文件
		if ext == ".yaml" || ext == ".yml" {
			v.SetConfigFile(filePath)
			// 读取并合并配置文件 (会覆盖之前的配置)
			if err := v.MergeInConfig(); err != nil {
				return fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var common Config
	// 反序列化到结构体
	if err := v.Unmarshal(&common); err != nil {
		return nil, fmt.Errorf("反序列化配置失败: %w", err)
	}
	return &common, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log::level", "info")
	v.SetDefault("transport::type", "memory")
	v.SetDefault("api::addr", ":8080")
	v.SetDefault("simulate::listen", "127.0.0.1:8192")
}
