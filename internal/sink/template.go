package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"regmap/internal/device"
	"regmap/internal/pkg"
)

// Template 定义了所有导出目标的通用接口
type Template interface {
	Type() string
	Publish(point pkg.Point) error
	Close() error
}

// FactoryFunc 代表一个导出目标的工厂函数, para 为该目标的自定义配置项
type FactoryFunc func(ctx context.Context, para map[string]any) (Template, error)

// Factories 全局工厂映射，用于注册不同导出类型的构造函数
var Factories = make(map[string]FactoryFunc)

// Register 注册一个导出目标
func Register(sinkType string, factory FactoryFunc) {
	Factories[sinkType] = factory
}

type rootKey struct{}

// WithRoot 将设备树存入 context, 供需要主动读取的导出目标使用
func WithRoot(ctx context.Context, root *device.Root) context.Context {
	return context.WithValue(ctx, rootKey{}, root)
}

// RootFromContext 从 context 中提取设备树
func RootFromContext(ctx context.Context) (*device.Root, bool) {
	root, ok := ctx.Value(rootKey{}).(*device.Root)
	return root, ok
}

// Collection 代表已启用的导出目标集合
type Collection []Template

// New 按配置初始化所有已启用的导出目标
func New(ctx context.Context) (Collection, error) {
	log := pkg.LoggerFromContext(ctx)
	factoryTypes := make([]string, 0, len(Factories))
	for key := range Factories {
		factoryTypes = append(factoryTypes, key)
	}
	sort.Strings(factoryTypes)
	log.Debug("Sink Factory:", zap.Strings("Factories", factoryTypes))

	collection := make(Collection, 0)
	for _, sinkConfig := range pkg.ConfigFromContext(ctx).EnabledSinks() {
		factory, exists := Factories[sinkConfig.Type]
		if !exists {
			_ = collection.Close()
			return nil, fmt.Errorf("未找到导出类型: %s", sinkConfig.Type)
		}
		log.Info(fmt.Sprintf("===正在启动Sink: %s===", sinkConfig.Type))
		s, err := factory(ctx, sinkConfig.Para)
		if err != nil {
			_ = collection.Close()
			return nil, fmt.Errorf("初始化导出 %s 失败: %w", sinkConfig.Type, err)
		}
		collection = append(collection, s)
	}
	return collection, nil
}

// Publish 将数据点依次发送到所有导出目标, 单个目标失败不影响其他目标
func (c Collection) Publish(points []pkg.Point) error {
	var errs []error
	for _, s := range c {
		for _, point := range points {
			if err := s.Publish(point); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Type(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Find 返回指定类型的导出目标
func (c Collection) Find(sinkType string) (Template, bool) {
	for _, s := range c {
		if s.Type() == sinkType {
			return s, true
		}
	}
	return nil, false
}

// Close 关闭所有导出目标
func (c Collection) Close() error {
	var errs []error
	for _, s := range c {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Type(), err))
		}
	}
	return errors.Join(errs...)
}
