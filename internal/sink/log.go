package sink

import (
	"context"

	"go.uber.org/zap"
	"regmap/internal/pkg"
)

func init() {
	Register("log", NewLogSink)
}

// LogSink 将数据点写入日志
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink 使用 context 中的 logger 创建日志导出
func NewLogSink(ctx context.Context, _ map[string]any) (Template, error) {
	return &LogSink{logger: pkg.LoggerFromContext(ctx).With(zap.String("sink_type", "log"))}, nil
}

func (l *LogSink) Type() string { return "log" }

// Publish 以结构化字段输出数据点
func (l *LogSink) Publish(point pkg.Point) error {
	l.logger.Info("导出数据点",
		zap.String("device", point.Device),
		zap.Any("field", point.Field),
		zap.Time("ts", point.Ts),
	)
	return nil
}

// Close 刷新日志缓冲, 标准输出上的 Sync 错误忽略
func (l *LogSink) Close() error {
	_ = l.logger.Sync()
	return nil
}
