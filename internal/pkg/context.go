package pkg

import (
	"context"

	"go.uber.org/zap"
)

// 定义不导出的 key 类型，避免 context key 冲突
type (
	configKey  struct{}
	loggerKey  struct{}
	errChanKey struct{}
)

var nopLogger = zap.NewNop()

// WithConfig 将配置指针存入 context 中
func WithConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey{}, config)
}

// ConfigFromContext 从 context 中提取配置指针, 不存在时返回空配置
func ConfigFromContext(ctx context.Context) *Config {
	if config, ok := ctx.Value(configKey{}).(*Config); ok {
		return config
	}
	return &Config{}
}

// WithLogger 将 zap.Logger 存入 context 中
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithLoggerAndModule 将带有模块信息的 zap.Logger 存入 context 中
func WithLoggerAndModule(ctx context.Context, logger *zap.Logger, module string) context.Context {
	return WithLogger(ctx, logger.With(zap.String("module", module)))
}

// LoggerFromContext 从 context 中提取 logger, 不存在时返回 no-op logger
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return nopLogger
}

// WithErrChan 将全局错误通道存入 context 中
func WithErrChan(ctx context.Context, errChan chan error) context.Context {
	return context.WithValue(ctx, errChanKey{}, errChan)
}

// ErrChanFromContext 从 context 中提取错误通道
func ErrChanFromContext(ctx context.Context) chan<- error {
	if errChan, ok := ctx.Value(errChanKey{}).(chan error); ok {
		return errChan
	}
	return nil
}

// ReportErr 非阻塞地上报后台错误, 通道满或不存在时只记录日志
func ReportErr(ctx context.Context, err error) {
	errChan := ErrChanFromContext(ctx)
	if errChan == nil {
		LoggerFromContext(ctx).Error("后台任务出错", zap.Error(err))
		return
	}
	select {
	case errChan <- err:
	default:
		LoggerFromContext(ctx).Error("错误通道已满, 丢弃错误", zap.Error(err))
	}
}
