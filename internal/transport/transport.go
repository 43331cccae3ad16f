package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"regmap/internal/pkg"
)

// Transport 是寄存器访问后端的通用接口, 每次调用对应一次读/写事务
type Transport interface {
	// Read 从 addr 开始读取 len(p) 个字节
	Read(ctx context.Context, addr uint64, p []byte) error
	// Write 从 addr 开始写入 p
	Write(ctx context.Context, addr uint64, p []byte) error
	Close() error
}

var (
	ErrBusRange  = errors.New("访问地址越界")
	ErrSizeLimit = errors.New("事务长度超过上限")
	ErrBadFrame  = errors.New("无效的数据帧")
	ErrTimeout   = errors.New("事务超时")
	ErrClosed    = errors.New("transport 已关闭")
)

// FactoryFunc 代表一个寄存器访问后端的工厂函数
type FactoryFunc func(ctx context.Context) (Transport, error)

// Factories 全局工厂映射，用于注册不同后端类型的构造函数
var Factories = make(map[string]FactoryFunc)

// Register 注册一个后端
func Register(transportType string, factory FactoryFunc) {
	Factories[transportType] = factory
}

// New 根据配置创建寄存器访问后端
func New(ctx context.Context) (Transport, error) {
	config := pkg.ConfigFromContext(ctx)
	factoryTypes := make([]string, 0, len(Factories))
	for key := range Factories {
		factoryTypes = append(factoryTypes, key)
	}
	sort.Strings(factoryTypes)
	pkg.LoggerFromContext(ctx).Debug("Transport Factory:", zap.Strings("Factories", factoryTypes))

	factory, ok := Factories[config.Transport.Type]
	if !ok {
		return nil, fmt.Errorf("未找到后端类型: %s", config.Transport.Type)
	}
	t, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化后端 %s 失败: %w", config.Transport.Type, err)
	}
	return t, nil
}

// configPara 返回后端的自定义配置项
func configPara(ctx context.Context) map[string]any {
	return pkg.ConfigFromContext(ctx).Transport.Para
}

// decodePara 将自定义配置项解析到结构体, 支持 "200ms" 形式的时间字段
func decodePara(para map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("创建解码器失败: %w", err)
	}
	if err := decoder.Decode(para); err != nil {
		return fmt.Errorf("配置文件解析失败: %w", err)
	}
	return nil
}
